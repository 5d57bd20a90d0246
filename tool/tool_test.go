package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quorvus/datachat/internal/util"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
	D string `json:"d" enum:"X|Y"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.Contains(t, props, "d")

	// Required only includes non-pointer, non-omitempty exported fields.
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a", "d"}, req)

	dSchema := props["d"].(map[string]any)
	assert.Equal(t, []any{"X", "Y"}, dSchema["enum"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
			"mode": map[string]any{
				"type": "string",
				"enum": []any{"A", "B"},
			},
		},
		// []any mirrors the JSON decoded schema shape
		"required": []any{"x"},
	}

	assert.NoError(t, util.ValidateParameters(map[string]any{"x": 5}, schema))
	assert.NoError(t, util.ValidateParameters(map[string]any{"x": float64(5), "mode": "A"}, schema))

	err := util.ValidateParameters(map[string]any{}, schema)
	var vErr *util.ValidationError
	if assert.ErrorAs(t, err, &vErr) {
		assert.Equal(t, "x", vErr.Field)
	}

	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	if assert.ErrorAs(t, err, &vErr) {
		assert.Contains(t, vErr.Message, "expected type integer")
	}

	err = util.ValidateParameters(map[string]any{"x": 1, "mode": "C"}, schema)
	if assert.ErrorAs(t, err, &vErr) {
		assert.Equal(t, "mode", vErr.Field)
	}
}

// -------------------- FunctionTool Tests --------------------

func sumParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Success(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Calculate the sum of two numbers", sumParams(),
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})

	result, err := sum.Call(context.Background(), map[string]any{"a": float64(2), "b": float64(3)})
	assert.NoError(t, err)
	assert.Equal(t, float64(5), result)
}

func TestFunctionTool_ValidationFailure(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Calculate the sum of two numbers", sumParams(),
		func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })

	_, err := sum.Call(context.Background(), map[string]any{"a": float64(2)})
	var toolErr *ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, CodeValidation, toolErr.Code)
		assert.Equal(t, "calculate_sum", toolErr.Tool)
	}
}

func TestFunctionTool_ExecutionFailure(t *testing.T) {
	boom := NewFunctionTool("boom", "always fails", map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		})

	_, err := boom.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, CodeExecution, toolErr.Code)
		assert.Contains(t, toolErr.Message, "backend unavailable")
	}
}

func TestFunctionTool_PreservesToolError(t *testing.T) {
	custom := NewToolError("custom", "rejected", "QUERY_REJECTED")
	tl := NewFunctionTool("custom", "returns custom code", map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) { return nil, custom })

	_, err := tl.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, "QUERY_REJECTED", toolErr.Code)
	}
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Q string `json:"q" description:"query text"`
	}
	tl := NewFunctionToolFromStruct("search", "search things", args{},
		func(_ context.Context, a map[string]any) (any, error) { return a["q"], nil })

	_, err := tl.Call(context.Background(), map[string]any{})
	assert.Error(t, err, "missing required q")

	out, err := tl.Call(context.Background(), map[string]any{"q": "hello"})
	assert.NoError(t, err)
	assert.Equal(t, "hello", out)
}
