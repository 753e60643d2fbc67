package store

// Shipment request statuses.
const (
	ShipmentPending   = "PENDING"
	ShipmentApproved  = "APPROVED"
	ShipmentShipped   = "SHIPPED"
	ShipmentCompleted = "COMPLETED"
)

// ShipmentRequest is a replenishment order for one product and destination.
type ShipmentRequest struct {
	ID          int64  `json:"shipment_request_id"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
	Month       int32  `json:"month"`
	Year        int32  `json:"year"`
	CreatedTs   int64  `json:"created_ts"`
}

// FindShipmentRequest specifies the conditions for finding shipment requests.
type FindShipmentRequest struct {
	Status      *string
	Destination *string
	Limit       int
}
