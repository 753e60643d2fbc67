package tools

import (
	"context"
	"log/slog"
	"sync"
)

// FallbackFunc defines the signature for fallback handlers.
// It receives the context, the failed tool, the original input, and the error.
// It returns a graceful degradation result.
type FallbackFunc func(ctx context.Context, tool Tool, input string, err error) (*Result, error)

// DefaultFallbackRules maps every built-in tool to an error payload the model
// can read and explain to the user.
var DefaultFallbackRules = map[string]FallbackFunc{
	SearchProductsName:         ErrorAwareFallback("Product search is temporarily unavailable."),
	CompareProductsName:        ErrorAwareFallback("Product comparison is temporarily unavailable."),
	ProductRecommendationsName: ErrorAwareFallback("Product recommendations are temporarily unavailable."),
	QuerySalesDataName:         ErrorAwareFallback("Sales data is temporarily unavailable."),
	QueryInventoryDataName:     ErrorAwareFallback("Inventory data is temporarily unavailable."),
	QueryDealerDataName:        ErrorAwareFallback("Dealer data is temporarily unavailable."),
	ProactiveInsightsName:      ErrorAwareFallback("Insights are temporarily unavailable."),
	DetectAnomaliesName:        ErrorAwareFallback("Anomaly detection is temporarily unavailable."),
	DailyBriefingName:          ErrorAwareFallback("The daily briefing is temporarily unavailable."),
	SalesForecastName:          ErrorAwareFallback("Forecasting is temporarily unavailable."),
	AnalyzeTrendsName:          ErrorAwareFallback("Trend analysis is temporarily unavailable."),
	CreateShipmentRequestName:  ErrorAwareFallback("The shipment request was not created. Please try again."),
	GetShipmentRequestsName:    ErrorAwareFallback("Shipment requests are temporarily unavailable."),
}

// FallbackRegistry allows dynamic registration of fallback handlers.
type FallbackRegistry struct {
	mu       sync.RWMutex
	handlers map[string]FallbackFunc
}

// NewFallbackRegistry creates a new FallbackRegistry with default handlers.
func NewFallbackRegistry() *FallbackRegistry {
	r := &FallbackRegistry{
		handlers: make(map[string]FallbackFunc),
	}
	for k, v := range DefaultFallbackRules {
		r.handlers[k] = v
	}
	return r
}

// Register adds or replaces a fallback handler for the given tool.
func (r *FallbackRegistry) Register(toolName string, handler FallbackFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[toolName] = handler
}

// Get retrieves the fallback handler for the given tool.
func (r *FallbackRegistry) Get(toolName string) (FallbackFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[toolName]
	return handler, ok
}

// GetAll returns a copy of all registered handlers.
func (r *FallbackRegistry) GetAll() map[string]FallbackFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]FallbackFunc, len(r.handlers))
	for k, v := range r.handlers {
		result[k] = v
	}
	return result
}

// GenericFallback creates a fallback handler that reports message as the error.
func GenericFallback(message string) FallbackFunc {
	return func(_ context.Context, _ Tool, _ string, _ error) (*Result, error) {
		return ErrorResult(message), nil
	}
}

// ErrorAwareFallback creates a fallback that logs error details but returns a safe message.
// Error details are logged for debugging but not exposed to the model.
func ErrorAwareFallback(baseMessage string) FallbackFunc {
	return func(_ context.Context, tool Tool, _ string, err error) (*Result, error) {
		if err != nil {
			toolName := "unknown"
			if tool != nil {
				toolName = tool.Name()
			}
			slog.Warn("tool fallback triggered",
				slog.String("tool", toolName),
				slog.String("error", err.Error()),
			)
		}
		return ErrorResult(baseMessage), nil
	}
}
