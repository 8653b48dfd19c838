package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mealtrail-backend/internal/middleware"
	"mealtrail-backend/internal/services"
	"mealtrail-backend/internal/simulation"
	"mealtrail-backend/internal/tracking"
	"mealtrail-backend/pkg/utils"
)

type simulationRequest struct {
	OrderID string `json:"order_id"`
}

// StartSimulation begins a synthetic trip for an order when the partner's
// device has no real GPS feed. Only the assigned partner (or an admin) may
// start it, and the order must carry finite endpoints.
func StartSimulation(svc *services.OrderService, sim *simulation.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req simulationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
			utils.RespondError(w, http.StatusBadRequest, "order_id is required")
			return
		}

		order, err := svc.GetOrder(r.Context(), req.OrderID)
		if errors.Is(err, services.ErrOrderNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Order not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load order")
			return
		}

		if order.AssignedPartnerID == nil {
			utils.RespondError(w, http.StatusBadRequest, "Order has no assigned partner yet")
			return
		}
		if userClaims.Role != "admin" && *order.AssignedPartnerID != userClaims.UserID {
			utils.RespondError(w, http.StatusForbidden, "You are not assigned to this order")
			return
		}
		if order.Status.IsTerminal() {
			utils.RespondError(w, http.StatusBadRequest, "Order is already in a terminal state")
			return
		}

		err = sim.Start(order.ID, *order.AssignedPartnerID,
			order.RestaurantLat, order.RestaurantLng,
			order.DeliveryLat, order.DeliveryLng)
		if errors.Is(err, simulation.ErrBadEndpoints) {
			utils.RespondError(w, http.StatusBadRequest, "Order endpoints are not valid coordinates")
			return
		}
		if errors.Is(err, tracking.ErrSourceOwned) {
			utils.RespondError(w, http.StatusConflict, "A device feed is currently driving this order's position")
			return
		}
		if err != nil {
			log.Printf("❌ Failed to start simulation for order %s: %v", order.ID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to start simulation")
			return
		}

		utils.RespondSuccess(w, map[string]interface{}{"order_id": order.ID, "running": true})
	}
}

// StopSimulation cancels a running simulation. The order keeps whatever
// status the simulation last set.
func StopSimulation(svc *services.OrderService, sim *simulation.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req simulationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
			utils.RespondError(w, http.StatusBadRequest, "order_id is required")
			return
		}

		order, err := svc.GetOrder(r.Context(), req.OrderID)
		if errors.Is(err, services.ErrOrderNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Order not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load order")
			return
		}

		if userClaims.Role != "admin" &&
			(order.AssignedPartnerID == nil || *order.AssignedPartnerID != userClaims.UserID) {
			utils.RespondError(w, http.StatusForbidden, "You are not assigned to this order")
			return
		}

		stopped := sim.Stop(order.ID)
		utils.RespondSuccess(w, map[string]interface{}{"order_id": order.ID, "stopped": stopped})
	}
}
