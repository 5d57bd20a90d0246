package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quorvus/datachat/tool"
)

func TestIsReadOnlyQuery(t *testing.T) {
	cases := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM t", true},
		{"  select * from t", true},
		{"\n\tSeLeCt 1", true},
		{"SHOW TABLES", true},
		{"desc finance_operating_statement", true},
		{"DROP TABLE x", false},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET a = 1", false},
		{"DELETE FROM t", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsReadOnlyQuery(tc.query), "query %q", tc.query)
	}
}

func TestTool_RejectsNonReadOnly(t *testing.T) {
	// nil pool: the guard must fire before any connection use.
	wh := New(nil)

	out, err := wh.Call(context.Background(), map[string]any{
		"action": string(ActionQuery),
		"query":  "DROP TABLE accounts",
	})
	assert.NoError(t, err)
	result := out.(tool.Output)
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid query. Only SELECT queries are allowed.", result.Error)
}

func TestTool_QueryRequiresText(t *testing.T) {
	wh := New(nil)

	_, err := wh.Call(context.Background(), map[string]any{"action": string(ActionQuery)})
	var toolErr *tool.ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, tool.CodeValidation, toolErr.Code)
	}
}

func TestTool_InvalidAction(t *testing.T) {
	wh := New(nil)

	_, err := wh.Call(context.Background(), map[string]any{"action": "TRUNCATE"})
	var toolErr *tool.ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, tool.CodeValidation, toolErr.Code)
	}
}

func TestTool_ConnectionRequired(t *testing.T) {
	wh := New(nil)

	_, err := wh.Call(context.Background(), map[string]any{"action": string(ActionGetMetadata)})
	var toolErr *tool.ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, tool.CodeConnection, toolErr.Code)
	}

	_, err = wh.Call(context.Background(), map[string]any{
		"action": string(ActionQuery),
		"query":  "SELECT 1",
	})
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, tool.CodeConnection, toolErr.Code)
	}
}

func TestTool_ParametersSchema(t *testing.T) {
	wh := New(nil)
	schema := wh.Parameters()

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "action")
	assert.Contains(t, props, "query")

	action := props["action"].(map[string]any)
	assert.ElementsMatch(t, []any{"GET_METADATA", "QUERY"}, action["enum"])
	assert.Equal(t, []string{"action"}, schema["required"])
}
