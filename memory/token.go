package memory

import (
	"sync"

	"github.com/quorvus/datachat/core"
)

// Turn is a single conversation entry.
type Turn struct {
	Role    string `json:"role"`           // user, assistant or tool
	Name    string `json:"name,omitempty"` // tool name for tool turns
	Content string `json:"content"`
	Tokens  int    `json:"tokens"` // Estimated token cost of Content
}

// Estimator approximates the token cost of a piece of text.
type Estimator func(s string) int

// DefaultEstimator is a cheap character heuristic (roughly four characters
// per token for English text).
func DefaultEstimator(s string) int { return len(s)/4 + 1 }

// TokenMemory is an ordered, append-only conversation history bounded by a
// token ceiling. Once the running estimate exceeds the ceiling the oldest
// turns are evicted first; the most recently appended turn is never evicted
// even if it alone exceeds the ceiling. Safe for concurrent access.
type TokenMemory struct {
	mu        sync.Mutex
	maxTokens int
	estimate  Estimator
	turns     []Turn
	tokens    int
}

// Options configure a TokenMemory.
type Options struct {
	// MaxTokens is the eviction ceiling. Non-positive falls back to the default.
	MaxTokens int
	// Estimator overrides the token cost heuristic.
	Estimator Estimator
}

// DefaultMaxTokens is the ceiling applied when none is configured.
const DefaultMaxTokens = 4000

// NewTokenMemory creates an empty memory with optional overrides.
func NewTokenMemory(optFns ...func(o *Options)) *TokenMemory {
	opts := Options{MaxTokens: DefaultMaxTokens, Estimator: DefaultEstimator}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Estimator == nil {
		opts.Estimator = DefaultEstimator
	}
	return &TokenMemory{maxTokens: opts.MaxTokens, estimate: opts.Estimator}
}

// Add appends a user or assistant turn.
func (m *TokenMemory) Add(role, content string) {
	m.append(Turn{Role: role, Content: content})
}

// AddToolResult appends a tool turn carrying the named tool's rendered output.
func (m *TokenMemory) AddToolResult(name, content string) {
	m.append(Turn{Role: "tool", Name: name, Content: content})
}

func (m *TokenMemory) append(turn Turn) {
	turn.Tokens = m.estimate(turn.Content)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turn)
	m.tokens += turn.Tokens

	// Oldest-first eviction; always keep the turn just appended.
	for m.tokens > m.maxTokens && len(m.turns) > 1 {
		m.tokens -= m.turns[0].Tokens
		m.turns = m.turns[1:]
	}
}

// Turns returns a defensive copy of the history in order.
func (m *TokenMemory) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Contents renders the history as model-ready content. Tool turns become
// function response parts so provider adapters can thread them correctly.
func (m *TokenMemory) Contents() []core.Content {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Content, 0, len(m.turns))
	for _, turn := range m.turns {
		if turn.Role == "tool" {
			out = append(out, core.Content{
				Role: "tool",
				Parts: []core.Part{core.FunctionResponsePart{
					FunctionResponse: core.FunctionResponse{Name: turn.Name, Response: turn.Content},
				}},
			})
			continue
		}
		out = append(out, core.NewTextContent(turn.Role, turn.Content))
	}
	return out
}

// TokenCount returns the current token estimate of the retained history.
func (m *TokenMemory) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

// Len returns the number of retained turns.
func (m *TokenMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}
