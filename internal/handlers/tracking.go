package handlers

import (
	"errors"
	"net/http"

	"mealtrail-backend/internal/services"
	"mealtrail-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// GetTrackingSnapshot serves the on-demand tracking view for an order,
// addressed by public code or internal id. Late joiners call this before
// attaching to the live stream.
//
// An unresolvable identifier is a 404; an order that simply has no position
// yet is a 200 with a null position field.
func GetTrackingSnapshot(svc *services.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := svc.Snapshot(r.Context(), chi.URLParam(r, "identifier"))
		if errors.Is(err, services.ErrOrderNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Order not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to build tracking snapshot")
			return
		}

		utils.RespondSuccess(w, snapshot)
	}
}
