package models

// PositionSample is the latest known position of an order's delivery.
// Exactly one sample is retained per order - this is a live-tracking cache,
// not a trajectory log.
type PositionSample struct {
	OrderID         string      `json:"order_id"`
	Latitude        float64     `json:"latitude"`
	Longitude       float64     `json:"longitude"`
	Timestamp       int64       `json:"timestamp"`
	SourcePartnerID string      `json:"source_partner_id"`
	Status          OrderStatus `json:"status"` // order status snapshot at sample time
}
