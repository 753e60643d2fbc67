package tools

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skillgate/plugin/ai/metrics"
)

var (
	errNetwork   = errors.New("network error")
	errPermanent = errors.New("permanent error")
)

// mockTool implements Tool for testing.
type mockTool struct {
	name      string
	runFunc   func(ctx context.Context, input string) (*Result, error)
	callCount int32
}

func (m *mockTool) Name() string {
	return m.name
}

func (m *mockTool) Description() string {
	return "mock tool " + m.name
}

func (m *mockTool) InputType() map[string]any {
	return map[string]any{"type": "object"}
}

func (m *mockTool) Run(ctx context.Context, input string) (*Result, error) {
	atomic.AddInt32(&m.callCount, 1)
	return m.runFunc(ctx, input)
}

func (m *mockTool) CallCount() int {
	return int(atomic.LoadInt32(&m.callCount))
}

func succeed(output string) func(context.Context, string) (*Result, error) {
	return func(context.Context, string) (*Result, error) {
		return &Result{Output: output, Success: true}, nil
	}
}

func TestResilientToolExecutor_Execute_Success(t *testing.T) {
	ctx := context.Background()
	metricsService := metrics.NewMockMetricsService()
	executor := NewResilientToolExecutor(metricsService)

	tool := &mockTool{name: "test_tool", runFunc: succeed("success")}

	result, err := executor.Execute(ctx, tool, "{}")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Output)
	assert.Equal(t, 1, tool.CallCount())

	calls := metricsService.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "test_tool", calls[0].ToolName)
	assert.True(t, calls[0].Success)
}

func TestResilientToolExecutor_Execute_RetryOnTransientError(t *testing.T) {
	ctx := context.Background()
	executor := NewResilientToolExecutor(metrics.NewMockMetricsService(),
		WithRetryDelay(10*time.Millisecond),
	)

	var calls int32
	tool := &mockTool{
		name: "test_tool",
		runFunc: func(context.Context, string) (*Result, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, errNetwork
			}
			return &Result{Output: "success after retry", Success: true}, nil
		},
	}

	result, err := executor.Execute(ctx, tool, "{}")
	require.NoError(t, err)
	assert.Equal(t, "success after retry", result.Output)
	assert.Equal(t, 3, tool.CallCount(), "1 original + 2 retries")
}

func TestResilientToolExecutor_Execute_NoRetryOnPermanentError(t *testing.T) {
	executor := NewResilientToolExecutor(metrics.NewMockMetricsService())
	tool := &mockTool{
		name: "test_tool",
		runFunc: func(context.Context, string) (*Result, error) {
			return nil, errPermanent
		},
	}

	_, err := executor.Execute(context.Background(), tool, "{}")
	require.Error(t, err)
	assert.Equal(t, 1, tool.CallCount())
}

// writeTool is a mockTool that changes state.
type writeTool struct {
	mockTool
}

func (w *writeTool) Mutates() bool { return true }

func TestResilientToolExecutor_Execute_NoRetryForStateChangingTool(t *testing.T) {
	executor := NewResilientToolExecutor(metrics.NewMockMetricsService(),
		WithRetryDelay(time.Millisecond),
	)
	tool := &writeTool{mockTool{
		name: "insert_record",
		runFunc: func(context.Context, string) (*Result, error) {
			return nil, errors.New("connection reset by peer")
		},
	}}
	require.True(t, Mutates(tool))

	res := executor.ExecuteDetailed(context.Background(), tool, "{}")
	require.Error(t, res.Error)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, tool.CallCount(), "a write that may have committed is never repeated")

	// The same error on a read-only tool is retried.
	read := &mockTool{name: "read_record", runFunc: tool.runFunc}
	res = executor.ExecuteDetailed(context.Background(), read, "{}")
	assert.Equal(t, 3, res.Attempts)
}

func TestResilientToolExecutor_Execute_NoRetryOnInvalidInput(t *testing.T) {
	executor := NewResilientToolExecutor(metrics.NewMockMetricsService(), WithRetryDelay(time.Millisecond))
	tool := &mockTool{
		name: "test_tool",
		runFunc: func(_ context.Context, input string) (*Result, error) {
			var v map[string]any
			return nil, decodeInput(input, &v)
		},
	}

	_, err := executor.Execute(context.Background(), tool, "{not json")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 1, tool.CallCount())
}

func TestResilientToolExecutor_Execute_FallbackOnFailure(t *testing.T) {
	executor := NewResilientToolExecutor(metrics.NewMockMetricsService(),
		WithFallbackRules(map[string]FallbackFunc{
			"test_tool": func(context.Context, Tool, string, error) (*Result, error) {
				return &Result{Output: "fallback result"}, nil
			},
		}),
		WithMaxRetries(0),
	)
	tool := &mockTool{
		name: "test_tool",
		runFunc: func(context.Context, string) (*Result, error) {
			return nil, errors.New("permanent failure")
		},
	}

	result, err := executor.Execute(context.Background(), tool, "{}")
	require.NoError(t, err)
	assert.Equal(t, "fallback result", result.Output)
}

func TestResilientToolExecutor_Execute_DefaultFallbackForBuiltinTool(t *testing.T) {
	executor := NewResilientToolExecutor(metrics.NewMockMetricsService(), WithMaxRetries(0))
	tool := &mockTool{
		name: QuerySalesDataName,
		runFunc: func(context.Context, string) (*Result, error) {
			return nil, errors.New("no such table: monthly_sales")
		},
	}

	result, err := executor.Execute(context.Background(), tool, "{}")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.JSONEq(t, `{"success":false,"error":"Sales data is temporarily unavailable."}`, result.Output)
}

func TestResilientToolExecutor_Execute_Timeout(t *testing.T) {
	executor := NewResilientToolExecutor(metrics.NewMockMetricsService(),
		WithTimeout(50*time.Millisecond),
		WithRetryDelay(10*time.Millisecond),
		WithMaxRetries(1),
	)
	tool := &mockTool{
		name: "slow_tool",
		runFunc: func(ctx context.Context, _ string) (*Result, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(200 * time.Millisecond):
				return &Result{Output: "completed", Success: true}, nil
			}
		},
	}

	_, err := executor.Execute(context.Background(), tool, "{}")
	require.Error(t, err)
	assert.GreaterOrEqual(t, tool.CallCount(), 2, "timeouts are retried")
}

func TestResilientToolExecutor_Execute_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := NewResilientToolExecutor(metrics.NewMockMetricsService())
	tool := &mockTool{name: "test_tool", runFunc: succeed("never")}

	res := executor.ExecuteDetailed(ctx, tool, "{}")
	assert.ErrorIs(t, res.Error, context.Canceled)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 0, tool.CallCount())
}

func TestResilientToolExecutor_ExecuteDetailed(t *testing.T) {
	ctx := context.Background()
	metricsService := metrics.NewMockMetricsService()
	executor := NewResilientToolExecutor(metricsService, WithRetryDelay(10*time.Millisecond))

	t.Run("Success", func(t *testing.T) {
		tool := &mockTool{name: "test_tool", runFunc: succeed("success")}

		result := executor.ExecuteDetailed(ctx, tool, "{}")
		assert.NoError(t, result.Error)
		assert.Equal(t, 1, result.Attempts)
		assert.False(t, result.UsedFallback)
	})

	t.Run("RetryThenSuccess", func(t *testing.T) {
		var calls int32
		tool := &mockTool{
			name: "test_tool",
			runFunc: func(context.Context, string) (*Result, error) {
				if atomic.AddInt32(&calls, 1) == 1 {
					return nil, errors.New("service unavailable")
				}
				return &Result{Output: "recovered", Success: true}, nil
			},
		}

		result := executor.ExecuteDetailed(ctx, tool, "{}")
		assert.NoError(t, result.Error)
		assert.Equal(t, 2, result.Attempts)
	})

	t.Run("FallbackUsed", func(t *testing.T) {
		exec := NewResilientToolExecutor(metricsService,
			WithFallbackRules(map[string]FallbackFunc{
				"fallback_tool": GenericFallback("fallback used"),
			}),
			WithMaxRetries(0),
		)
		tool := &mockTool{
			name: "fallback_tool",
			runFunc: func(context.Context, string) (*Result, error) {
				return nil, errors.New("always fails")
			},
		}

		result := exec.ExecuteDetailed(ctx, tool, "{}")
		assert.True(t, result.UsedFallback)
		assert.Error(t, result.Error)
		require.NotNil(t, result.Result)
		assert.JSONEq(t, `{"success":false,"error":"fallback used"}`, result.Result.Output)
	})
}

func TestFallbackRegistry(t *testing.T) {
	registry := NewFallbackRegistry()

	t.Run("DefaultRulesLoaded", func(t *testing.T) {
		for _, name := range []string{SearchProductsName, QueryInventoryDataName, CreateShipmentRequestName} {
			handler, ok := registry.Get(name)
			assert.True(t, ok, name)
			assert.NotNil(t, handler, name)
		}
	})

	t.Run("RegisterCustomHandler", func(t *testing.T) {
		registry.Register("custom_tool", GenericFallback("custom message"))

		handler, ok := registry.Get("custom_tool")
		require.True(t, ok)
		result, err := handler(context.Background(), nil, "", nil)
		require.NoError(t, err)
		assert.Contains(t, result.Output, "custom message")
	})

	t.Run("GetAll", func(t *testing.T) {
		assert.Len(t, registry.GetAll(), len(DefaultFallbackRules)+1)
	})
}

func TestDefaultFallbackRules_CoverBuiltinTools(t *testing.T) {
	registry := NewDefaultRegistry(nil, Options{})
	for _, name := range registry.Names() {
		_, ok := DefaultFallbackRules[name]
		assert.True(t, ok, "missing fallback for %s", name)
	}
	assert.Len(t, DefaultFallbackRules, len(registry.Names()))
}

func TestErrorAwareFallback(t *testing.T) {
	handler := ErrorAwareFallback("operation failed")

	t.Run("WithError", func(t *testing.T) {
		result, err := handler(context.Background(), nil, "", errors.New("network timeout"))
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.NotContains(t, result.Output, "network timeout")
		assert.Contains(t, result.Output, "operation failed")
	})

	t.Run("WithoutError", func(t *testing.T) {
		result, _ := handler(context.Background(), nil, "", nil)
		assert.Contains(t, result.Output, "operation failed")
	})
}

func TestExecutorOptions(t *testing.T) {
	metricsService := metrics.NewMockMetricsService()

	assert.Equal(t, 5, NewResilientToolExecutor(metricsService, WithMaxRetries(5)).maxRetries)
	assert.Equal(t, time.Second, NewResilientToolExecutor(metricsService, WithRetryDelay(time.Second)).retryDelay)
	assert.Equal(t, 30*time.Second, NewResilientToolExecutor(metricsService, WithTimeout(30*time.Second)).timeout)
}

func TestIsRetryable(t *testing.T) {
	e := NewResilientToolExecutor(nil)
	assert.False(t, e.isRetryable(nil))
	assert.False(t, e.isRetryable(errPermanent))
	assert.True(t, e.isRetryable(errNetwork))
	assert.True(t, e.isRetryable(errors.New("database is locked")))
	assert.True(t, e.isRetryable(context.DeadlineExceeded))
}
