package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mealtrail-backend/internal/middleware"
	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/services"
	"mealtrail-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// CreateOrder places a new order and triggers an immediate assignment attempt.
func CreateOrder(svc *services.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var input services.CreateOrderInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if input.RestaurantID == "" {
			utils.RespondError(w, http.StatusBadRequest, "restaurant_id is required")
			return
		}

		order, err := svc.CreateOrder(r.Context(), userClaims.UserID, input)
		if errors.Is(err, services.ErrRestaurantNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Restaurant not found")
			return
		}
		if err != nil {
			log.Printf("❌ Failed to create order: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create order")
			return
		}

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    order,
		})
	}
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

// UpdateOrderStatus moves an order through its lifecycle. Owners and admins
// can apply any transition; the assigned partner may only confirm delivery.
func UpdateOrderStatus(svc *services.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		order, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, services.ErrOrderNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Order not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load order")
			return
		}

		if userClaims.Role == "partner" {
			assigned := order.AssignedPartnerID != nil && *order.AssignedPartnerID == userClaims.UserID
			if !assigned || req.Status != models.OrderDelivered {
				utils.RespondError(w, http.StatusForbidden, "Partners may only mark their own orders delivered")
				return
			}
		}

		updated, err := svc.UpdateStatus(r.Context(), order.ID, req.Status)
		if errors.Is(err, services.ErrInvalidStatus) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid status transition")
			return
		}
		if err != nil {
			log.Printf("❌ Failed to update order %s: %v", order.ID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to update order")
			return
		}

		utils.RespondSuccess(w, updated)
	}
}
