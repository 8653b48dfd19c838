package models

// PartnerLocation is a delivery partner's last reported GPS position.
type PartnerLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"` // server-side epoch seconds of the report
}

// DeliveryPartner is the registry's view of a partner: availability,
// current workload and last known location. All of it is transient state
// rebuilt from live reports after a restart; the partner's identity and
// vehicle details live on the users table.
type DeliveryPartner struct {
	ID           string           `json:"id"`
	IsAvailable  bool             `json:"is_available"`
	ActiveOrders int              `json:"active_orders"` // orders assigned and not yet in a terminal state
	Location     *PartnerLocation `json:"location,omitempty"`
}

// PartnerSummary is the public slice of a partner shown on tracking pages.
type PartnerSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	VehicleType *string `json:"vehicle_type,omitempty"`
	VehicleID   *string `json:"vehicle_id,omitempty"`
}
