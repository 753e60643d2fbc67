package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/hrygo/skillgate/store"
)

var shipmentStatuses = []string{store.ShipmentPending, store.ShipmentApproved, store.ShipmentShipped, store.ShipmentCompleted}

const (
	defaultShipmentQuantity    = 50
	defaultShipmentDestination = "Northeast"
)

// CreateShipmentRequestTool records a replenishment order.
type CreateShipmentRequestTool struct {
	store *store.Store
	clock Clock
}

// NewCreateShipmentRequestTool creates a new shipment request tool.
func NewCreateShipmentRequestTool(s *store.Store, clock Clock) *CreateShipmentRequestTool {
	return &CreateShipmentRequestTool{store: s, clock: clock}
}

// Name returns the tool name.
func (t *CreateShipmentRequestTool) Name() string {
	return CreateShipmentRequestName
}

// Description returns the tool description.
func (t *CreateShipmentRequestTool) Description() string {
	return "IMMEDIATELY create a shipment request when the user asks to replenish, restock or order inventory. Call directly without asking; it records a PENDING request."
}

// InputType returns the JSON schema for the tool arguments.
func (t *CreateShipmentRequestTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_name": map[string]any{"type": "string", "description": "Product to replenish, e.g. 'FS 111 R' or 'MS 271'"},
			"destination":  map[string]any{"type": "string", "description": "Target region (Northeast, Southeast, Midwest, Southwest, West)"},
			"quantity":     map[string]any{"type": "integer", "description": "Units to ship (default 50)"},
			"product_id":   map[string]any{"type": "string", "description": "Optional product ID"},
		},
		"required": []string{"product_name", "destination", "quantity"},
	}
}

// CreateShipmentRequestInput represents the tool arguments.
type CreateShipmentRequestInput struct {
	ProductName string `json:"product_name"`
	Destination string `json:"destination"`
	Quantity    int    `json:"quantity"`
	ProductID   string `json:"product_id"`
}

// Mutates reports that the tool inserts a shipment request row.
func (t *CreateShipmentRequestTool) Mutates() bool {
	return true
}

// Run executes the tool.
func (t *CreateShipmentRequestTool) Run(ctx context.Context, input string) (*Result, error) {
	var in CreateShipmentRequestInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}
	if in.ProductName == "" && in.ProductID == "" {
		return ErrorResult("product_name is required"), nil
	}
	if in.Quantity < 0 {
		return ErrorResult(fmt.Sprintf("quantity must be positive, got %d", in.Quantity)), nil
	}
	if in.Quantity > math.MaxInt32 {
		return ErrorResult(fmt.Sprintf("quantity must be at most %d, got %d", math.MaxInt32, in.Quantity)), nil
	}
	if in.Quantity == 0 {
		in.Quantity = defaultShipmentQuantity
	}
	if in.Destination == "" {
		in.Destination = defaultShipmentDestination
	}

	product, err := resolveProduct(ctx, t.store, firstNonEmpty(in.ProductID, in.ProductName))
	if err != nil {
		return nil, err
	}
	if product != nil {
		in.ProductID = product.ID
		if in.ProductName == "" {
			in.ProductName = product.Name
		}
	}

	now := t.clock.now()
	created, err := t.store.CreateShipmentRequest(ctx, &store.ShipmentRequest{
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
		Quantity:    int32(in.Quantity),
		Destination: in.Destination,
		Status:      store.ShipmentPending,
		Month:       int32(now.Month()),
		Year:        int32(now.Year()),
	})
	if err != nil {
		return nil, err
	}

	out := okPayload("")
	out.Set("message", "Shipment request created successfully")
	out.Set("shipment_request_id", created.ID)
	out.Set("product_name", created.ProductName)
	if created.ProductID != "" {
		out.Set("product_id", created.ProductID)
	} else {
		out.Set("product_id", nil)
	}
	out.Set("destination", created.Destination)
	out.Set("quantity", created.Quantity)
	out.Set("request_period", fmt.Sprintf("%d-%02d", created.Year, created.Month))
	out.Set("status", created.Status)
	return JSONResult(out)
}

// resolveProduct finds the catalog product whose ID or name matches query,
// ignoring case, spaces and dashes. A name may be given by its prefix, so
// "MS 271" finds "MS 271 Farm Boss". It returns nil when nothing matches.
func resolveProduct(ctx context.Context, s *store.Store, query string) (*store.Product, error) {
	key := productKey(query)
	if key == "" {
		return nil, nil
	}
	products, err := s.ListProducts(ctx, &store.FindProduct{})
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if productKey(p.ID) == key || productKey(p.Name) == key {
			return p, nil
		}
	}
	for _, p := range products {
		if strings.HasPrefix(productKey(p.Name), key) {
			return p, nil
		}
	}
	return nil, nil
}

func productKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GetShipmentRequestsTool lists replenishment orders, newest first.
type GetShipmentRequestsTool struct {
	store *store.Store
}

// NewGetShipmentRequestsTool creates a new shipment listing tool.
func NewGetShipmentRequestsTool(s *store.Store) *GetShipmentRequestsTool {
	return &GetShipmentRequestsTool{store: s}
}

// Name returns the tool name.
func (t *GetShipmentRequestsTool) Name() string {
	return GetShipmentRequestsName
}

// Description returns the tool description.
func (t *GetShipmentRequestsTool) Description() string {
	return "Query existing shipment requests to check the status or history of replenishment orders."
}

// InputType returns the JSON schema for the tool arguments.
func (t *GetShipmentRequestsTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":      map[string]any{"type": "string", "enum": shipmentStatuses},
			"destination": map[string]any{"type": "string", "description": "Destination region"},
			"limit":       map[string]any{"type": "integer", "description": "Maximum requests to return (default 10)"},
		},
	}
}

// GetShipmentRequestsInput represents the tool arguments.
type GetShipmentRequestsInput struct {
	Status      string `json:"status"`
	Destination string `json:"destination"`
	Limit       int    `json:"limit"`
}

// Run executes the tool.
func (t *GetShipmentRequestsTool) Run(ctx context.Context, input string) (*Result, error) {
	var in GetShipmentRequestsInput
	if err := decodeInput(input, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}

	find := &store.FindShipmentRequest{Limit: clampInt(in.Limit, 1, 100, 10)}
	if in.Status != "" {
		status := strings.ToUpper(in.Status)
		find.Status = &status
	}
	if in.Destination != "" {
		find.Destination = &in.Destination
	}
	list, err := t.store.ListShipmentRequests(ctx, find)
	if err != nil {
		return nil, err
	}

	out := okPayload("")
	out.Set("filters_applied", filters("status", in.Status, "destination", in.Destination))
	out.Set("row_count", len(list))
	out.Set("data", list)
	return JSONResult(out)
}
