package websocket

import (
	"log"
	"net/http"

	"mealtrail-backend/internal/middleware"
	"mealtrail-backend/internal/services"
	"mealtrail-backend/internal/tracking"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// HandleTracking upgrades the connection and attaches it to a live channel.
//
// Channel selection: an `order` query parameter (public code or internal id)
// subscribes to that order's feed; otherwise owners get their restaurant feed
// and admins the admin-wide feed. The token travels as a query parameter
// because browsers cannot set headers on WebSocket handshakes.
func HandleTracking(svc *services.OrderService, store *tracking.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.ParseToken(r.URL.Query().Get("token"))
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var key tracking.ChannelKey
		if identifier := r.URL.Query().Get("order"); identifier != "" {
			order, err := svc.GetOrder(r.Context(), identifier)
			if err != nil {
				http.Error(w, "Order not found", http.StatusNotFound)
				return
			}
			key = tracking.OrderChannel(order.ID)
		} else {
			switch userClaims.Role {
			case "owner":
				key = tracking.OwnerChannel(userClaims.UserID)
			case "admin":
				key = tracking.AdminChannel
			default:
				http.Error(w, "order query parameter is required", http.StatusBadRequest)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(userClaims.UserID, conn, store)
		client.sub = store.Subscribe(key, client)
		if client.sub == nil {
			// The replay already failed; the sink is closed, drop the conn.
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()

		log.Printf("✅ Tracking subscriber attached: %s -> %s", userClaims.UserID, key)
	}
}
