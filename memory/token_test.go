package memory

import (
	"fmt"
	"testing"
)

func TestTokenMemory_AppendOrder(t *testing.T) {
	m := NewTokenMemory()
	m.Add("user", "first")
	m.Add("assistant", "second")
	m.AddToolResult("lookup", "third")

	turns := m.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "first" || turns[1].Content != "second" || turns[2].Content != "third" {
		t.Fatalf("order not preserved: %+v", turns)
	}
	if turns[2].Role != "tool" || turns[2].Name != "lookup" {
		t.Fatalf("tool turn malformed: %+v", turns[2])
	}
}

func TestTokenMemory_EvictsOldestFirst(t *testing.T) {
	// One token per character makes the ceiling easy to reason about.
	m := NewTokenMemory(func(o *Options) {
		o.MaxTokens = 10
		o.Estimator = func(s string) int { return len(s) }
	})

	m.Add("user", "aaaa")      // 4
	m.Add("assistant", "bbbb") // 8
	m.Add("user", "cccc")      // 12 -> evict "aaaa"

	turns := m.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected eviction down to 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "bbbb" {
		t.Fatalf("expected oldest turn evicted, head is %q", turns[0].Content)
	}
	if m.TokenCount() != 8 {
		t.Fatalf("token count not maintained, got %d", m.TokenCount())
	}
}

func TestTokenMemory_KeepsLatestOversizedTurn(t *testing.T) {
	m := NewTokenMemory(func(o *Options) {
		o.MaxTokens = 5
		o.Estimator = func(s string) int { return len(s) }
	})
	m.Add("user", "short")
	m.Add("user", "way too long for the ceiling")

	turns := m.Turns()
	if len(turns) != 1 || turns[0].Content != "way too long for the ceiling" {
		t.Fatalf("latest turn must survive eviction: %+v", turns)
	}
}

func TestTokenMemory_ContentsRendering(t *testing.T) {
	m := NewTokenMemory()
	m.Add("user", "question")
	m.AddToolResult("warehouse_query", `{"rows":1}`)

	contents := m.Contents()
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" || contents[0].Text() != "question" {
		t.Fatalf("user content malformed: %+v", contents[0])
	}
	resps := contents[1].FunctionResponses()
	if len(resps) != 1 || resps[0].Name != "warehouse_query" {
		t.Fatalf("tool content malformed: %+v", contents[1])
	}
}

func TestTokenMemory_TurnsCopyIsolation(t *testing.T) {
	m := NewTokenMemory()
	m.Add("user", "hello")
	turns := m.Turns()
	turns[0].Content = "mutated"
	if m.Turns()[0].Content != "hello" {
		t.Fatal("Turns must return a defensive copy")
	}
}

func TestTokenMemory_ConcurrentAppend(t *testing.T) {
	m := NewTokenMemory(func(o *Options) { o.MaxTokens = 1 << 20 })
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				m.Add("user", fmt.Sprintf("g%d-%d", n, j))
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	if m.Len() != 800 {
		t.Fatalf("expected 800 turns, got %d", m.Len())
	}
}
