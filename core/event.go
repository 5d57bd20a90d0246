package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the closed set of lifecycle notifications an executor
// run can emit. Projection layers switch exhaustively over this type; kinds
// added later fall into the projection default arm and are dropped rather
// than breaking consumers.
type EventKind int

const (
	// EventIterationStart marks the beginning of a reasoning iteration.
	EventIterationStart EventKind = iota
	// EventStepSuccess marks a completed reasoning step.
	EventStepSuccess
	// EventStepRetry marks a failed step that will be attempted again.
	EventStepRetry
	// EventMemoryUpdate records a turn folded into conversation memory.
	EventMemoryUpdate
	// EventTerminalError marks an unrecoverable run failure.
	EventTerminalError
	// EventRunSuccess marks a run that produced a final answer.
	EventRunSuccess
)

// String returns the canonical wire tag for the kind.
func (k EventKind) String() string {
	switch k {
	case EventIterationStart:
		return "start"
	case EventStepSuccess, EventRunSuccess:
		return "success"
	case EventStepRetry:
		return "retry"
	case EventMemoryUpdate:
		return "update"
	case EventTerminalError:
		return "error"
	default:
		return "unknown"
	}
}

// LifecycleEvent is an immutable notification of run progress or failure.
// Events are produced in strict chronological order within a run and must be
// treated as read-only after emission.
type LifecycleEvent struct {
	ID        string    // Unique event identifier
	Kind      EventKind // Closed variant tag
	Key       string    // MemoryUpdate: memory key (turn role or tool name)
	Value     string    // MemoryUpdate: rendered value
	Explain   string    // TerminalError: human-readable explanation
	Timestamp time.Time // Emission time (UTC)
}

// NewID generates a new unique identifier for events and sessions.
func NewID() string { return uuid.NewString() }

func newEvent(kind EventKind) LifecycleEvent {
	return LifecycleEvent{ID: NewID(), Kind: kind, Timestamp: time.Now().UTC()}
}

// NewIterationStartEvent marks the start of a reasoning iteration.
func NewIterationStartEvent() LifecycleEvent { return newEvent(EventIterationStart) }

// NewStepSuccessEvent marks a successfully completed step.
func NewStepSuccessEvent() LifecycleEvent { return newEvent(EventStepSuccess) }

// NewStepRetryEvent marks a failed step scheduled for retry.
func NewStepRetryEvent() LifecycleEvent { return newEvent(EventStepRetry) }

// NewRunSuccessEvent marks a run that reached a final answer.
func NewRunSuccessEvent() LifecycleEvent { return newEvent(EventRunSuccess) }

// NewMemoryUpdateEvent records a memory mutation with its key and rendered
// value.
func NewMemoryUpdateEvent(key, value string) LifecycleEvent {
	e := newEvent(EventMemoryUpdate)
	e.Key = key
	e.Value = value
	return e
}

// NewTerminalErrorEvent records an unrecoverable run failure.
func NewTerminalErrorEvent(explain string) LifecycleEvent {
	e := newEvent(EventTerminalError)
	e.Explain = explain
	return e
}
