package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mealtrail-backend/internal/middleware"
	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/registry"
	"mealtrail-backend/internal/services"
	"mealtrail-backend/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRows struct {
	orders []models.Order
}

func (s stubRows) OrderByCode(ctx context.Context, code string) (models.Order, error) {
	for _, order := range s.orders {
		if order.Code == code {
			return order, nil
		}
	}
	return models.Order{}, sql.ErrNoRows
}

func (s stubRows) OrderByID(ctx context.Context, id string) (models.Order, error) {
	for _, order := range s.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return models.Order{}, sql.ErrNoRows
}

func (s stubRows) RestaurantByID(ctx context.Context, id string) (models.Restaurant, error) {
	return models.Restaurant{}, sql.ErrNoRows
}

func (s stubRows) UserByID(ctx context.Context, id string) (models.User, error) {
	return models.User{}, sql.ErrNoRows
}

func locationFixture() (*services.OrderService, *registry.Registry, *tracking.Store) {
	partnerID := "p1"
	rows := stubRows{orders: []models.Order{{
		ID:                "o1",
		Code:              "MT-DDDD4444",
		Status:            models.OrderConfirmed,
		AssignedPartnerID: &partnerID,
	}}}
	reg := registry.New()
	store := tracking.NewStore()
	svc := services.NewOrderServiceWithRows(rows, reg, store, nil)
	return svc, reg, store
}

func asPartner(req *http.Request, userID string) *http.Request {
	claims := middleware.UserClaims{UserID: userID, Role: "partner"}
	return req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, claims))
}

func TestReportLocationPublishesAndClaimsDevice(t *testing.T) {
	svc, reg, store := locationFixture()
	handler := ReportLocation(svc, reg, store)

	body := `{"latitude": 13.05, "longitude": 80.25, "order_id": "o1"}`
	req := asPartner(httptest.NewRequest("POST", "/api/partner/location", strings.NewReader(body)), "p1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	partner, ok := reg.Get("p1")
	require.True(t, ok)
	require.NotNil(t, partner.Location)
	assert.Equal(t, 13.05, partner.Location.Latitude)

	sample, ok := store.Latest("o1")
	require.True(t, ok)
	assert.Equal(t, "p1", sample.SourcePartnerID)

	// The device now owns the order's feed.
	assert.ErrorIs(t, store.ClaimSource("o1", tracking.SourceSimulator), tracking.ErrSourceOwned)
}

func TestReportLocationNotAssignedLeavesSourceUnclaimed(t *testing.T) {
	svc, reg, store := locationFixture()
	handler := ReportLocation(svc, reg, store)

	body := `{"latitude": 13.05, "longitude": 80.25, "order_id": "o1"}`
	req := asPartner(httptest.NewRequest("POST", "/api/partner/location", strings.NewReader(body)), "p2")
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	// The rejected report mutated nothing: no claim, no registry location.
	require.NoError(t, store.ClaimSource("o1", tracking.SourceSimulator))
	partner, _ := reg.Get("p2")
	assert.Nil(t, partner.Location)
}

func TestReportLocationBadPayloadLeavesSourceUnclaimed(t *testing.T) {
	svc, reg, store := locationFixture()
	handler := ReportLocation(svc, reg, store)

	// 1e999 overflows float64 and cannot decode.
	body := `{"latitude": 1e999, "longitude": 80.25, "order_id": "o1"}`
	req := asPartner(httptest.NewRequest("POST", "/api/partner/location", strings.NewReader(body)), "p1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, store.ClaimSource("o1", tracking.SourceSimulator))
	partner, _ := reg.Get("p1")
	assert.Nil(t, partner.Location)
}

func TestReportLocationSimulatorOwnedConflict(t *testing.T) {
	svc, reg, store := locationFixture()
	require.NoError(t, store.ClaimSource("o1", tracking.SourceSimulator))
	handler := ReportLocation(svc, reg, store)

	body := `{"latitude": 13.05, "longitude": 80.25, "order_id": "o1"}`
	req := asPartner(httptest.NewRequest("POST", "/api/partner/location", strings.NewReader(body)), "p1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	// Rejected before any state change: the registry saw nothing.
	partner, _ := reg.Get("p1")
	assert.Nil(t, partner.Location)
	_, ok := store.Latest("o1")
	assert.False(t, ok)
}
