// Package tool implements the function calling subsystem that lets the
// executor invoke structured capabilities with schema validated arguments and
// consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/quorvus/datachat/internal/util"
)

// Tool defines a callable capability the reasoning process may invoke.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions (snake_case names)
//   - Define a proper JSON schema for parameters
//   - Be stateless per call and safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to the model
	// so it understands when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool. Arguments are decoded JSON validated against
	// the tool's schema before the call. The returned value must be
	// JSON-serializable.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Output is the uniform result envelope shared by the bound tools.
type Output struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Results any    `json:"results,omitempty"`
}

// ValidationError represents parameter validation errors with detailed
// information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeConnection = "CONNECTION_ERROR"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
