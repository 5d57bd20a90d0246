package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quorvus/datachat/core"
	"github.com/quorvus/datachat/logging"
	"github.com/quorvus/datachat/memory"
	"github.com/quorvus/datachat/model"
	"github.com/quorvus/datachat/tool"
)

// Failure reasons carried by RunError.
const (
	ReasonBudgetExhausted = "budget_exhausted"
	ReasonCanceled        = "canceled"
	ReasonInvalidRequest  = "invalid_request"
)

// RunError is the terminal failure of a run.
type RunError struct {
	Reason string
	Err    error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// DefaultInstructions steer the model toward tool-grounded answers.
const DefaultInstructions = "You are a data assistant. Answer questions using the available tools. " +
	"Inspect table metadata before writing queries, and base every answer on actual tool results rather than assumptions."

// Request describes one executor run. Everything the run touches is passed
// in explicitly; the executor itself holds no conversation state.
type Request struct {
	Prompt string
	Memory *memory.TokenMemory
	Budget core.ExecutionBudget
}

// Outcome is the terminal result of a run: the final answer text or the
// error that ended it.
type Outcome struct {
	Text string
	Err  error
}

// Options configure an Executor.
type Options struct {
	Instructions string
	Logger       logging.Logger
}

// Executor drives model/tool iterations for a single agent configuration.
// It is stateless across runs and safe for concurrent use.
type Executor struct {
	model        model.Model
	tools        map[string]tool.Tool
	defs         []model.ToolDefinition
	instructions string
	logger       logging.Logger
}

// New creates an Executor over a model and a tool set.
func New(m model.Model, tools []tool.Tool, optFns ...func(o *Options)) *Executor {
	opts := Options{Instructions: DefaultInstructions, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	byName := make(map[string]tool.Tool, len(tools))
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return &Executor{
		model:        m,
		tools:        byName,
		defs:         defs,
		instructions: opts.Instructions,
		logger:       opts.Logger,
	}
}

// Run executes the loop and returns a lifecycle event channel plus a
// single-value outcome channel. The event channel is closed when the run
// terminates; the outcome is buffered so it can be read afterwards.
func (e *Executor) Run(ctx context.Context, req Request) (<-chan core.LifecycleEvent, <-chan Outcome) {
	events := make(chan core.LifecycleEvent, 100)
	outcome := make(chan Outcome, 1)

	go func() {
		defer close(events)
		defer close(outcome)
		outcome <- e.run(ctx, req, events, nil)
	}()

	return events, outcome
}

// Stream executes the loop forwarding partial answer text as it is
// generated. The chunk channel is closed on termination; the error channel
// carries at most one error.
func (e *Executor) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errCh)

		events := make(chan core.LifecycleEvent, 100)
		go func() {
			// The streaming surface has no event consumer.
			for range events {
			}
		}()

		out := e.run(ctx, req, events, func(delta string) {
			select {
			case <-ctx.Done():
			case chunks <- delta:
			}
		})
		close(events)
		if out.Err != nil {
			errCh <- out.Err
		}
	}()

	return chunks, errCh
}

// run is the shared loop. onDelta, when non-nil, receives partial answer
// text and switches the model into streaming mode.
func (e *Executor) run(ctx context.Context, req Request, events chan<- core.LifecycleEvent, onDelta func(string)) Outcome {
	if req.Memory == nil {
		err := &RunError{Reason: ReasonInvalidRequest, Err: fmt.Errorf("memory is required")}
		events <- core.NewTerminalErrorEvent(err.Error())
		return Outcome{Err: err}
	}
	if err := req.Budget.Validate(); err != nil {
		rerr := &RunError{Reason: ReasonInvalidRequest, Err: err}
		events <- core.NewTerminalErrorEvent(rerr.Error())
		return Outcome{Err: rerr}
	}

	// Transcript carries tool call identifiers for provider threading;
	// memory keeps only the durable user/assistant exchange.
	transcript := req.Memory.Contents()
	req.Memory.Add("user", req.Prompt)
	transcript = append(transcript, core.NewTextContent("user", req.Prompt))
	events <- core.NewMemoryUpdateEvent("user", req.Prompt)

	tracker := core.NewBudgetTracker(req.Budget)

	for {
		if err := ctx.Err(); err != nil {
			return e.fail(events, &RunError{Reason: ReasonCanceled, Err: err})
		}
		if err := tracker.StartIteration(); err != nil {
			return e.fail(events, &RunError{Reason: ReasonBudgetExhausted, Err: err})
		}
		events <- core.NewIterationStartEvent()

		resp, abandoned, rerr := e.modelStep(ctx, &transcript, tracker, events, onDelta)
		if rerr != nil {
			return e.fail(events, rerr)
		}
		if abandoned {
			// Too many failures for this turn; start a fresh iteration.
			continue
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Content.Text()
			req.Memory.Add("assistant", text)
			events <- core.NewMemoryUpdateEvent("assistant", text)
			events <- core.NewStepSuccessEvent()
			events <- core.NewRunSuccessEvent()
			return Outcome{Text: text}
		}

		transcript = append(transcript, resp.Content)
		for _, call := range calls {
			result, rerr := e.executeCall(ctx, call, tracker, events)
			if rerr != nil {
				return e.fail(events, rerr)
			}
			transcript = append(transcript, core.Content{
				Role: "tool",
				Parts: []core.Part{core.FunctionResponsePart{
					FunctionResponse: core.FunctionResponse{ID: call.ID, Name: call.Name, Response: result},
				}},
			})
			events <- core.NewMemoryUpdateEvent(call.Name, result)
		}
		events <- core.NewStepSuccessEvent()
	}
}

func (e *Executor) fail(events chan<- core.LifecycleEvent, err *RunError) Outcome {
	events <- core.NewTerminalErrorEvent(err.Error())
	return Outcome{Err: err}
}

// modelStep performs one model turn, retrying hard failures until the step
// is abandoned or the budget terminates the run. Each failure is folded into
// the transcript so subsequent attempts see what went wrong.
func (e *Executor) modelStep(ctx context.Context, transcript *[]core.Content, tracker *core.BudgetTracker, events chan<- core.LifecycleEvent, onDelta func(string)) (model.Response, bool, *RunError) {
	for {
		resp, err := e.modelTurn(ctx, *transcript, onDelta != nil, onDelta)
		if err == nil {
			return resp, false, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return model.Response{}, false, &RunError{Reason: ReasonCanceled, Err: cerr}
		}
		e.logger.Warn("model turn failed", "error", err)
		*transcript = append(*transcript, core.NewTextContent("user",
			fmt.Sprintf("The previous attempt failed with: %v. Adjust and try again.", err)))

		events <- core.NewStepRetryEvent()
		abandon, berr := tracker.RecordRetry()
		if berr != nil {
			return model.Response{}, false, &RunError{Reason: ReasonBudgetExhausted, Err: berr}
		}
		if abandon {
			return model.Response{}, true, nil
		}
	}
}

// modelTurn performs one generation, collecting partial text and returning
// the final response chunk. In streaming mode the final answer text not
// already delivered through partials is forwarded before returning, so
// models that emit only a buffered final response still produce a stream.
func (e *Executor) modelTurn(ctx context.Context, transcript []core.Content, stream bool, onDelta func(string)) (model.Response, error) {
	respCh, errCh := e.model.Generate(ctx, model.Request{
		Instructions: e.instructions,
		Contents:     transcript,
		Tools:        e.defs,
		Stream:       stream,
	})

	var final *model.Response
	delivered := 0
	for resp := range respCh {
		if resp.Partial {
			if onDelta != nil {
				if text := resp.Content.Text(); text != "" {
					delivered += len(text)
					onDelta(text)
				}
			}
			continue
		}
		r := resp
		final = &r
	}
	if err := <-errCh; err != nil {
		return model.Response{}, err
	}
	if final == nil {
		return model.Response{}, fmt.Errorf("model produced no final response")
	}
	if onDelta != nil && len(final.Content.FunctionCalls()) == 0 {
		if text := final.Content.Text(); len(text) > delivered {
			onDelta(text[delivered:])
		}
	}
	return *final, nil
}

// executeCall runs a single tool call with retries charged against the
// budget. Soft tool failures are rendered into the result so the model can
// correct itself; only hard errors consume retries. A non-nil RunError
// terminates the run.
func (e *Executor) executeCall(ctx context.Context, call core.FunctionCall, tracker *core.BudgetTracker, events chan<- core.LifecycleEvent) (string, *RunError) {
	t, ok := e.tools[call.Name]
	if !ok {
		return fmt.Sprintf("tool %q is not available", call.Name), nil
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("invalid arguments for tool %q: %v", call.Name, err), nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", &RunError{Reason: ReasonCanceled, Err: err}
		}

		start := time.Now()
		result, err := t.Call(ctx, args)
		logging.LogToolCall(e.logger, call.Name, time.Since(start), err)
		if err == nil {
			return renderResult(result), nil
		}

		events <- core.NewStepRetryEvent()
		abandon, berr := tracker.RecordRetry()
		if berr != nil {
			return "", &RunError{Reason: ReasonBudgetExhausted, Err: berr}
		}
		if abandon {
			return fmt.Sprintf("tool %q failed: %v", call.Name, err), nil
		}
	}
}

// renderResult flattens a tool result into model-consumable text.
func renderResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return ""
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(raw)
}
