package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalChunkOrdersCallsByStreamIndex(t *testing.T) {
	calls := map[int64]*partialCall{
		2: {id: "c2", name: "third", args: "{}"},
		0: {id: "c0", name: "first", args: "{}"},
		1: {id: "c1", name: "second", args: "{}"},
	}

	resp := finalChunk("tool_calls", "", calls)
	require.False(t, resp.Partial)

	got := resp.Content.FunctionCalls()
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "second", got[1].Name)
	assert.Equal(t, "third", got[2].Name)
}

func TestFinalChunkKeepsAccumulatedText(t *testing.T) {
	resp := finalChunk("stop", "hello", nil)
	assert.Equal(t, "hello", resp.Content.Text())
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Empty(t, resp.Content.FunctionCalls())
}
