package models

// Restaurant is the subset of a restaurant record the tracking subsystem
// cares about. Latitude/longitude are nullable: not every restaurant has
// stored coordinates, in which case assignment degrades to workload ordering.
type Restaurant struct {
	ID        string   `json:"id" db:"id"`
	OwnerID   string   `json:"owner_id" db:"owner_id"`
	Name      string   `json:"name" db:"name"`
	Address   string   `json:"address" db:"address"`
	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`
	CreatedAt int64    `json:"created_at" db:"created_at"`
}

// RestaurantSummary is the public slice of a restaurant shown on tracking pages.
type RestaurantSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}
