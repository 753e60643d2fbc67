package agent

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for gateway operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeLLMUnavailable indicates the LLM service failed or is not configured.
	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	// ErrCodeToolExecutionFailed indicates a tool could not produce a result.
	ErrCodeToolExecutionFailed ErrorCode = "TOOL_EXECUTION_FAILED"
	// ErrCodeToolBudgetExhausted indicates a turn used every completion round.
	ErrCodeToolBudgetExhausted ErrorCode = "TOOL_BUDGET_EXHAUSTED"
	// ErrCodeSessionNotFound indicates the session does not exist.
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// ErrToolNotFound is returned for a tool call naming an unregistered tool.
var ErrToolNotFound = errors.New("tool not found")

// AIError represents a structured error for gateway operations.
type AIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value any) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *AIError) GetCode() ErrorCode {
	return e.Code
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// LLMUnavailable creates an LLM unavailable error.
func LLMUnavailable(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeLLMUnavailable, Message: msg, Cause: cause}
}

// ToolExecutionFailed creates a tool failure error.
func ToolExecutionFailed(tool string, cause error) *AIError {
	return &AIError{
		Code:    ErrCodeToolExecutionFailed,
		Message: fmt.Sprintf("tool %s failed", tool),
		Cause:   cause,
	}
}

// ToolBudgetExhausted creates a budget exhausted error.
func ToolBudgetExhausted(rounds int) *AIError {
	return (&AIError{
		Code:    ErrCodeToolBudgetExhausted,
		Message: fmt.Sprintf("no final answer after %d completion rounds", rounds),
	}).WithContext("rounds", rounds)
}

// SessionNotFound creates a session not found error.
func SessionNotFound(id string) *AIError {
	return &AIError{
		Code:    ErrCodeSessionNotFound,
		Message: fmt.Sprintf("session not found: %s", id),
	}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *AIError {
	return &AIError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with a code.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// FromContext classifies a context error, or returns nil for any other error.
func FromContext(err error) *AIError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout("operation timed out", err)
	case errors.Is(err, context.Canceled):
		return ContextCanceled(err)
	default:
		return nil
	}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}

// UserMessage returns the text shown to a user for a failed turn.
func UserMessage(err error) string {
	var aiErr *AIError
	if !errors.As(err, &aiErr) {
		return "Something went wrong while processing your request. Please try again."
	}
	switch aiErr.Code {
	case ErrCodeInvalidArgument:
		return aiErr.Message
	case ErrCodeLLMUnavailable:
		return "The AI service is temporarily unavailable. Please try again in a moment."
	case ErrCodeTimeout:
		return "The request took too long to complete. Please try again."
	case ErrCodeContextCanceled:
		return "The request was canceled."
	case ErrCodeSessionNotFound:
		return "This conversation no longer exists. Please start a new one."
	case ErrCodeToolBudgetExhausted:
		return BudgetExhaustedMessage
	default:
		return "Something went wrong while processing your request. Please try again."
	}
}
