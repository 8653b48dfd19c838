package models

// Event types pushed over live channels.
const (
	EventTypeLocation     = "location"
	EventTypeOrderCreated = "order_created"
	EventTypeOrderStatus  = "order_status"
)

// Event is a tagged message delivered to live subscribers.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// OrderLifecyclePayload is the payload of order_created and order_status events.
type OrderLifecyclePayload struct {
	OrderID   string      `json:"order_id"`
	Code      string      `json:"code"`
	Status    OrderStatus `json:"status"`
	PartnerID *string     `json:"partner_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}
