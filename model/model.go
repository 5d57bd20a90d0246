// Package model defines the reasoning capability boundary: a normalized
// request/response contract over LLM providers plus a scriptable mock for
// tests. The executor treats everything behind the Model interface as an
// opaque capability.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/quorvus/datachat/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the executor.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions
	Contents     []core.Content   `json:"contents"`     // Conversation history
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. The response
// channel is closed when the turn completes; the error channel carries at
// most one error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockTurn scripts one Generate call of a MockModel.
type MockTurn struct {
	Text  string              // Final text (ignored when Calls or Err set)
	Calls []core.FunctionCall // Tool calls emitted instead of text
	Err   error               // Injected provider failure
}

// MockModel is a scriptable in-memory Model for tests. Each Generate call
// consumes the next scripted turn; once the script is exhausted it echoes the
// last user message.
type MockModel struct {
	mu    sync.Mutex
	info  Info
	turns []MockTurn
	calls int
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// Script appends turns to the playback queue.
func (m *MockModel) Script(turns ...MockTurn) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
	return m
}

// Calls reports how many Generate calls have been made.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockModel) next(req Request) MockTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.turns) > 0 {
		turn := m.turns[0]
		m.turns = m.turns[1:]
		return turn
	}
	var last string
	for _, c := range req.Contents {
		if c.Role == "user" {
			last = c.Text()
		}
	}
	return MockTurn{Text: fmt.Sprintf("Mock response to: %s", last)}
}

// Generate implements Model. Streaming requests emit per-character partial
// chunks before the final response, mirroring provider behavior.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		turn := m.next(req)
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		if len(turn.Calls) > 0 {
			parts := make([]core.Part, 0, len(turn.Calls))
			for _, fc := range turn.Calls {
				parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
			}
			respCh <- Response{
				Content:      core.Content{Role: "assistant", Parts: parts},
				FinishReason: "tool_calls",
			}
			return
		}

		if req.Stream {
			for _, r := range turn.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.NewTextContent("assistant", string(r)),
				}:
				}
			}
		}
		respCh <- Response{
			Content:      core.NewTextContent("assistant", turn.Text),
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
