package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"mealtrail-backend/internal/geo"
	"mealtrail-backend/internal/middleware"
	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/registry"
	"mealtrail-backend/internal/services"
	"mealtrail-backend/internal/tracking"
	"mealtrail-backend/pkg/utils"
)

type availabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

// SetAvailability flips the calling partner's availability flag.
func SetAvailability(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req availabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		reg.SetAvailability(userClaims.UserID, req.IsAvailable)
		log.Printf("🛵 Partner %s availability -> %t", userClaims.UserID, req.IsAvailable)

		partner, _ := reg.Get(userClaims.UserID)
		utils.RespondSuccess(w, partner)
	}
}

type locationReportRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	OrderID   *string `json:"order_id,omitempty"` // when set, the report also feeds that order's live channel
}

// ReportLocation records the calling partner's GPS position in the registry
// and, when the report names an order, publishes it to the order's live feed.
//
// The order path enforces two things before any state change: the caller must
// be the partner assigned to that order, and the order's position feed must
// not be owned by a running simulation.
func ReportLocation(svc *services.OrderService, reg *registry.Registry, store *tracking.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req locationReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		// Reject bad coordinates before any ownership claim or registry write.
		if !geo.IsFinite(req.Latitude) || !geo.IsFinite(req.Longitude) {
			utils.RespondError(w, http.StatusBadRequest, "Latitude and longitude must be finite numbers")
			return
		}

		var order *models.Order
		if req.OrderID != nil {
			var err error
			order, err = svc.GetOrder(r.Context(), *req.OrderID)
			if errors.Is(err, services.ErrOrderNotFound) {
				utils.RespondError(w, http.StatusNotFound, "Order not found")
				return
			}
			if err != nil {
				utils.RespondError(w, http.StatusInternalServerError, "Failed to load order")
				return
			}
			if order.AssignedPartnerID == nil || *order.AssignedPartnerID != userClaims.UserID {
				utils.RespondError(w, http.StatusForbidden, "You are not assigned to this order")
				return
			}
			if err := store.ClaimSource(order.ID, tracking.SourceDevice); err != nil {
				utils.RespondError(w, http.StatusConflict, "A simulation is currently driving this order's position")
				return
			}
		}

		if err := reg.ReportLocation(userClaims.UserID, req.Latitude, req.Longitude); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Latitude and longitude must be finite numbers")
			return
		}

		if order != nil {
			store.Publish(order.ID, models.PositionSample{
				OrderID:         order.ID,
				Latitude:        req.Latitude,
				Longitude:       req.Longitude,
				Timestamp:       time.Now().Unix(),
				SourcePartnerID: userClaims.UserID,
				Status:          order.Status,
			})
		}

		utils.RespondSuccess(w, map[string]interface{}{"reported_at": time.Now().Unix()})
	}
}

// GetPartners lists every registered partner with their live registry state,
// for the admin console.
func GetPartners(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partners := reg.All()
		log.Printf("📋 GetPartners: %d partner(s) in registry", len(partners))
		utils.RespondSuccess(w, partners)
	}
}
