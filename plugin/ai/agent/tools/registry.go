package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/store"
)

// Built-in tool names.
const (
	SearchProductsName         = "search_products"
	CompareProductsName        = "compare_products"
	ProductRecommendationsName = "get_product_recommendations"
	QuerySalesDataName         = "query_sales_data"
	QueryInventoryDataName     = "query_inventory_data"
	QueryDealerDataName        = "query_dealer_data"
	ProactiveInsightsName      = "get_proactive_insights"
	DetectAnomaliesName        = "detect_anomalies_realtime"
	DailyBriefingName          = "get_daily_briefing"
	SalesForecastName          = "get_sales_forecast"
	AnalyzeTrendsName          = "analyze_trends"
	CreateShipmentRequestName  = "create_shipment_request"
	GetShipmentRequestsName    = "get_shipment_requests"
)

// ErrInvalidInput marks argument errors that retrying cannot fix.
var ErrInvalidInput = errors.New("invalid tool input")

// Registry holds tools in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools *orderedmap.OrderedMap[string, Tool]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: orderedmap.New[string, Tool]()}
}

// Options configures the built-in tools.
type Options struct {
	// Embedder backs vector product search. Nil selects keyword matching.
	Embedder ai.EmbeddingService
	// Clock anchors relative periods such as last_month. Nil uses time.Now.
	Clock Clock
}

// NewDefaultRegistry registers every built-in tool over s.
func NewDefaultRegistry(s *store.Store, opts Options) *Registry {
	wh := newWarehouse(s, opts.Clock)
	r := NewRegistry()
	for _, t := range []Tool{
		NewSearchProductsTool(s, opts.Embedder),
		NewCompareProductsTool(s),
		NewProductRecommendationsTool(s, opts.Embedder),
		NewSalesDataTool(wh),
		NewInventoryDataTool(wh),
		NewDealerDataTool(wh),
		NewProactiveInsightsTool(wh),
		NewDetectAnomaliesTool(wh),
		NewDailyBriefingTool(wh),
		NewSalesForecastTool(wh),
		NewAnalyzeTrendsTool(wh),
		NewCreateShipmentRequestTool(s, opts.Clock),
		NewGetShipmentRequestsTool(s),
	} {
		// Names are distinct constants.
		_ = r.Register(t)
	}
	return r
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools.Get(t.Name()); ok {
		return errors.Errorf("tool %q already registered", t.Name())
	}
	r.tools.Set(t.Name(), t)
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.Get(name)
}

// Names lists tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Definitions returns the model-facing definitions of the named tools, in the
// order given. Unknown names are skipped. With no names every tool is listed.
func (r *Registry) Definitions(names ...string) []ai.ToolDefinition {
	if len(names) == 0 {
		names = r.Names()
	}
	defs := make([]ai.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			continue
		}
		params, err := json.Marshal(t.InputType())
		if err != nil {
			continue
		}
		defs = append(defs, ai.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return defs
}

// Run executes the named tool directly, without retries.
func (r *Registry) Run(ctx context.Context, name, input string) (*Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, errors.Errorf("unknown tool %q", name)
	}
	return t.Run(ctx, input)
}

// payload is a JSON object that keeps its field order.
type payload = orderedmap.OrderedMap[string, any]

func newPayload() *payload {
	return orderedmap.New[string, any]()
}

// JSONResult encodes v as a successful tool result.
func JSONResult(v any) (*Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tool output")
	}
	return &Result{Output: string(b), Success: true, Data: v}, nil
}

// ErrorResult is the {"success": false, "error": msg} payload.
func ErrorResult(msg string) *Result {
	p := newPayload()
	p.Set("success", false)
	p.Set("error", msg)
	b, _ := json.Marshal(p)
	return &Result{Output: string(b), Success: false}
}

// decodeInput unmarshals the model's arguments into v. An empty input is
// treated as "{}".
func decodeInput(input string, v any) error {
	if input == "" {
		input = "{}"
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return errors.Wrapf(ErrInvalidInput, "invalid JSON input: %v", err)
	}
	return nil
}
