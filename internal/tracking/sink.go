package tracking

import "mealtrail-backend/internal/models"

// Sink is the outbound half of a live subscription. The store depends only on
// this interface, not on any transport, so the broadcaster can be exercised
// with in-memory sinks in tests while production uses WebSocket clients.
//
// Send must not block: a sink that cannot accept an event returns an error and
// the store drops the subscription. Delivery is best-effort, at-most-once per
// tick - a slow subscriber simply misses intermediate samples.
type Sink interface {
	Send(event models.Event) error
	Close()
}

// ChannelKey names a broadcast channel: a single order's feed, a restaurant
// owner's feed, or the admin-wide feed.
type ChannelKey string

// AdminChannel receives every order lifecycle event.
const AdminChannel ChannelKey = "admin"

func OrderChannel(orderID string) ChannelKey { return ChannelKey("order:" + orderID) }
func OwnerChannel(ownerID string) ChannelKey { return ChannelKey("owner:" + ownerID) }
