package skill

import "regexp"

var (
	replenishVerb    = regexp.MustCompile(`\b(replenish|restock|resupply)\b`)
	shipmentCreation = regexp.MustCompile(`(create|place|initiate|submit|make).*(shipment|order|request)`)
	shipConfirmation = regexp.MustCompile(`(yes|ok|confirm|proceed|go ahead).*(replenish|restock|ship)`)
)

// Replenishment creates and tracks shipment requests. It scores on query
// intent rather than trigger specificity so explicit replenishment requests
// outrank product-code matches from the product skill.
type Replenishment struct {
	*Base
}

// NewReplenishment returns the replenishment coordinator skill.
func NewReplenishment() *Replenishment {
	return &Replenishment{Base: MustNew(Definition{
		Name:        ReplenishmentCoordinator,
		Description: "Create and manage shipment requests to replenish inventory",
		Priority:    30,
		Tools:       []string{"create_shipment_request", "get_shipment_requests", "query_inventory_data"},
		Patterns: []string{
			`^replenish\b`,
			`\breplenish\s+product\b`,
			`\breplenish\s+\w+\s+for\b`,
			`(yes|yeah|sure|ok|okay|confirm|confirmed|proceed|go ahead|do it|please do).*(replenish|restock|shipment|request|resupply|ship)`,
			`(yes|yeah|sure|ok|okay|confirm|confirmed|proceed|go ahead|do it|please do).*(create|initiate|submit|make).*(request|order)`,
			`(place|initiate|create|submit|make).*(expedited|urgent|emergency)?.*(shipment|request|replenish|restock|order)`,
			`expedited.*(replenish|order|shipment)`,
			`(replenish|restock|resupply).*(inventory|stock|product|order)`,
			`(send|ship|transfer).*(product|inventory|stock|units).*to`,
			`(check|show|list|view).*(shipment|replenishment).*(request|order|status)`,
			`pending.*(shipment|request|order)`,
			`request.*shipment`,
			`shipment.*request`,
			`replenishment.*(request|order)`,
			`restock.*order`,
			`(replenish|restock|order).*(for|product)`,
		},
		Prompt: `You are the replenishment coordinator. Your job is to create shipment requests by calling tools, not to give advice.
- When the user asks to replenish, restock or order a product, call create_shipment_request immediately.
- Call it once per product when several products are named.
- Defaults: destination "Northeast", quantity 50, priority "normal".
- Use get_shipment_requests to show the queue and query_inventory_data only to confirm stock.
After the tools return, list each request as: product, quantity, destination, request id, status.`,
	})}
}

// Confidence ignores the trigger and scores the query intent.
func (r *Replenishment) Confidence(_ *Trigger, query string) float64 {
	switch {
	case replenishVerb.MatchString(query):
		return 0.95
	case shipmentCreation.MatchString(query):
		return 0.90
	case shipConfirmation.MatchString(query):
		return 0.90
	default:
		return 0.75
	}
}
