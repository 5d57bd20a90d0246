// Package trace projects executor lifecycle events into the structured
// record log returned to buffered chat callers.
package trace

import "github.com/quorvus/datachat/core"

// Record is one projected lifecycle entry as it appears on the wire.
type Record struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

// Collector is an order-preserving append sink for lifecycle events. It is
// used by a single run and needs no locking.
type Collector struct {
	records []Record
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Project appends the projection of one event. Recognized kinds map to fixed
// record shapes; unrecognized kinds are dropped silently so new emissions
// never break existing consumers.
func (c *Collector) Project(ev core.LifecycleEvent) {
	switch ev.Kind {
	case core.EventMemoryUpdate:
		c.records = append(c.records, Record{Type: "update", Key: ev.Key, Message: ev.Value})
	case core.EventTerminalError:
		c.records = append(c.records, Record{Type: "error", Message: ev.Explain})
	case core.EventStepRetry:
		c.records = append(c.records, Record{Type: "retry", Message: "retrying the action..."})
	case core.EventIterationStart:
		c.records = append(c.records, Record{Type: "start", Message: "starting new iteration"})
	case core.EventStepSuccess, core.EventRunSuccess:
		c.records = append(c.records, Record{Type: "success", Message: "success"})
	default:
	}
}

// Records returns the projected log in emission order, never nil.
func (c *Collector) Records() []Record {
	if c.records == nil {
		return []Record{}
	}
	return c.records
}
