// Package tools implements the warehouse tools the agent exposes to the model
// and runs them with retry, fallback and metrics reporting.
package tools

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/skillgate/plugin/ai/metrics"
)

// Tool defines the interface for executable tools.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string
	// Description tells the model when to call the tool.
	Description() string
	// InputType returns the JSON schema of the arguments.
	InputType() map[string]any
	// Run executes the tool with the JSON-encoded arguments.
	Run(ctx context.Context, input string) (*Result, error)
}

// Mutator is implemented by tools that change stored state. Their calls run
// at most once per execution.
type Mutator interface {
	Mutates() bool
}

// Mutates reports whether running t changes stored state.
func Mutates(t Tool) bool {
	m, ok := t.(Mutator)
	return ok && m.Mutates()
}

// RowReporter is implemented by tools whose output is a set of warehouse
// query rows.
type RowReporter interface {
	ReportsRows() bool
}

// ReportsRows reports whether t returns warehouse query rows.
func ReportsRows(t Tool) bool {
	r, ok := t.(RowReporter)
	return ok && r.ReportsRows()
}

// Result represents the output of a tool execution. Output is the JSON text
// handed back to the model.
type Result struct {
	Output  string `json:"output"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
}

// ResilientToolExecutor provides retry and fallback capabilities for tool execution.
type ResilientToolExecutor struct {
	maxRetries     int
	retryDelay     time.Duration
	timeout        time.Duration
	metricsService metrics.MetricsService
	fallbackRules  map[string]FallbackFunc
}

// ExecutorOption configures a ResilientToolExecutor.
type ExecutorOption func(*ResilientToolExecutor)

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *ResilientToolExecutor) {
		e.maxRetries = n
	}
}

// WithRetryDelay sets the delay between retry attempts.
func WithRetryDelay(d time.Duration) ExecutorOption {
	return func(e *ResilientToolExecutor) {
		e.retryDelay = d
	}
}

// WithTimeout sets the timeout for each execution attempt.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *ResilientToolExecutor) {
		e.timeout = d
	}
}

// WithFallbackRules sets custom fallback rules.
// The rules map is copied to avoid concurrent modification issues.
func WithFallbackRules(rules map[string]FallbackFunc) ExecutorOption {
	return func(e *ResilientToolExecutor) {
		e.fallbackRules = copyFallbackRules(rules)
	}
}

// copyFallbackRules creates a copy of the fallback rules map.
func copyFallbackRules(src map[string]FallbackFunc) map[string]FallbackFunc {
	if src == nil {
		return nil
	}
	dst := make(map[string]FallbackFunc, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// NewResilientToolExecutor creates a new ResilientToolExecutor with the given options.
func NewResilientToolExecutor(metricsService metrics.MetricsService, opts ...ExecutorOption) *ResilientToolExecutor {
	e := &ResilientToolExecutor{
		maxRetries:     2,
		retryDelay:     500 * time.Millisecond,
		timeout:        10 * time.Second,
		metricsService: metricsService,
		fallbackRules:  copyFallbackRules(DefaultFallbackRules),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs the tool with retry and fallback support.
// It attempts to execute the tool, retrying on transient errors.
// If all attempts fail, it executes the fallback strategy if available.
func (e *ResilientToolExecutor) Execute(ctx context.Context, tool Tool, input string) (*Result, error) {
	res := e.ExecuteDetailed(ctx, tool, input)
	if res.UsedFallback {
		return res.Result, res.FallbackError
	}
	return res.Result, res.Error
}

// ExecutionResult contains detailed information about a tool execution.
type ExecutionResult struct {
	Result        *Result
	Error         error
	FallbackError error // Error from fallback execution, if any
	Attempts      int
	TotalLatency  time.Duration
	UsedFallback  bool
}

// ExecuteDetailed runs the tool and returns detailed execution information.
func (e *ResilientToolExecutor) ExecuteDetailed(ctx context.Context, tool Tool, input string) ExecutionResult {
	start := time.Now()
	var lastErr error
	toolName := tool.Name()
	attempts := 0

	// A write that timed out may still have committed.
	maxRetries := e.maxRetries
	if Mutates(tool) {
		maxRetries = 0
	}

attemptsLoop:
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Check if context is already cancelled
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break attemptsLoop
		}
		attempts++

		execCtx, cancel := context.WithTimeout(ctx, e.timeout)
		result, err := tool.Run(execCtx, input)
		cancel()

		if err == nil {
			e.recordMetrics(ctx, toolName, time.Since(start), true)
			slog.Debug("tool execution succeeded",
				slog.String("tool", toolName),
				slog.Int("attempt", attempts),
				slog.Duration("duration", time.Since(start)))
			return ExecutionResult{
				Result:       result,
				Attempts:     attempts,
				TotalLatency: time.Since(start),
			}
		}

		lastErr = err
		slog.Warn("tool execution failed",
			slog.String("tool", toolName),
			slog.Int("attempt", attempts),
			slog.String("error", err.Error()))

		if !e.isRetryable(err) {
			break attemptsLoop
		}

		// Wait before next retry (except on last attempt)
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break attemptsLoop
			case <-time.After(e.retryDelay):
			}
		}
	}

	e.recordMetrics(ctx, toolName, time.Since(start), false)

	if fallback, ok := e.fallbackRules[toolName]; ok {
		slog.Info("executing fallback strategy", slog.String("tool", toolName))
		result, fbErr := fallback(ctx, tool, input, lastErr)
		return ExecutionResult{
			Result:        result,
			Error:         lastErr,
			FallbackError: fbErr,
			Attempts:      attempts,
			TotalLatency:  time.Since(start),
			UsedFallback:  true,
		}
	}

	return ExecutionResult{
		Error:        lastErr,
		Attempts:     attempts,
		TotalLatency: time.Since(start),
	}
}

// isRetryable determines if an error should trigger a retry. Invalid
// arguments never succeed on a second attempt.
func (e *ResilientToolExecutor) isRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidInput) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

var transientPatterns = []string{
	"network",
	"timeout",
	"connection",
	"unavailable",
	"temporary",
	"retry",
	"eof",
	"database is locked",
}

// recordMetrics records tool execution metrics.
func (e *ResilientToolExecutor) recordMetrics(ctx context.Context, toolName string, duration time.Duration, success bool) {
	if e.metricsService != nil {
		e.metricsService.RecordToolCall(ctx, toolName, duration, success)
	}
}
