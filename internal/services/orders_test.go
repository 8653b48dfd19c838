package services

import (
	"context"
	"database/sql"
	"testing"

	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/registry"
	"mealtrail-backend/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	orders      []models.Order
	restaurants map[string]models.Restaurant
	users       map[string]models.User
}

func (f *fakeRows) OrderByCode(ctx context.Context, code string) (models.Order, error) {
	for _, order := range f.orders {
		if order.Code == code {
			return order, nil
		}
	}
	return models.Order{}, sql.ErrNoRows
}

func (f *fakeRows) OrderByID(ctx context.Context, id string) (models.Order, error) {
	for _, order := range f.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return models.Order{}, sql.ErrNoRows
}

func (f *fakeRows) RestaurantByID(ctx context.Context, id string) (models.Restaurant, error) {
	if restaurant, ok := f.restaurants[id]; ok {
		return restaurant, nil
	}
	return models.Restaurant{}, sql.ErrNoRows
}

func (f *fakeRows) UserByID(ctx context.Context, id string) (models.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return models.User{}, sql.ErrNoRows
}

func newTestService(rows OrderRows) (*OrderService, *tracking.Store) {
	store := tracking.NewStore()
	return NewOrderServiceWithRows(rows, registry.New(), store, nil), store
}

func TestGetOrderResolvesCodeBeforeID(t *testing.T) {
	// One order's internal id collides with another order's public code;
	// the code interpretation must win.
	svc, _ := newTestService(&fakeRows{orders: []models.Order{
		{ID: "MT-COLLIDE", Code: "MT-AAAA1111"},
		{ID: "other-id", Code: "MT-COLLIDE"},
	}})

	order, err := svc.GetOrder(context.Background(), "MT-COLLIDE")
	require.NoError(t, err)
	assert.Equal(t, "other-id", order.ID)
}

func TestGetOrderFallsBackToID(t *testing.T) {
	svc, _ := newTestService(&fakeRows{orders: []models.Order{
		{ID: "order-1", Code: "MT-AAAA1111"},
	}})

	order, err := svc.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "MT-AAAA1111", order.Code)
}

func TestGetOrderNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeRows{})

	_, err := svc.GetOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSnapshotNullPositionUntilReported(t *testing.T) {
	lat, lng := 13.06, 80.25
	vehicle := "bike"
	partnerID := "p1"
	rows := &fakeRows{
		orders: []models.Order{{
			ID:                "o1",
			Code:              "MT-BBBB2222",
			RestaurantID:      "r1",
			AssignedPartnerID: &partnerID,
			Status:            models.OrderConfirmed,
			RestaurantLat:     lat,
			RestaurantLng:     lng,
		}},
		restaurants: map[string]models.Restaurant{
			"r1": {ID: "r1", OwnerID: "owner-1", Name: "Saravana Spice House", Latitude: &lat, Longitude: &lng},
		},
		users: map[string]models.User{
			"p1": {ID: "p1", Name: "Arjun", Role: "partner", VehicleType: &vehicle},
		},
	}
	svc, store := newTestService(rows)

	snapshot, err := svc.Snapshot(context.Background(), "MT-BBBB2222")
	require.NoError(t, err)
	assert.Equal(t, "o1", snapshot.Order.ID)
	require.NotNil(t, snapshot.Restaurant)
	assert.Equal(t, "Saravana Spice House", snapshot.Restaurant.Name)
	require.NotNil(t, snapshot.Partner)
	assert.Equal(t, "Arjun", snapshot.Partner.Name)
	// Found order with nothing reported yet: position is null, not an error.
	assert.Nil(t, snapshot.Position)

	store.Publish("o1", models.PositionSample{
		OrderID: "o1", Latitude: 13.07, Longitude: 80.26,
		SourcePartnerID: "p1", Status: models.OrderOutForDelivery,
	})

	snapshot, err = svc.Snapshot(context.Background(), "o1")
	require.NoError(t, err)
	require.NotNil(t, snapshot.Position)
	assert.Equal(t, 13.07, snapshot.Position.Latitude)
}

func TestSnapshotUnassignedOrderHasNoPartner(t *testing.T) {
	svc, _ := newTestService(&fakeRows{orders: []models.Order{
		{ID: "o1", Code: "MT-CCCC3333", RestaurantID: "r1", Status: models.OrderPending},
	}})

	snapshot, err := svc.Snapshot(context.Background(), "o1")
	require.NoError(t, err)
	assert.Nil(t, snapshot.Partner)
	assert.Nil(t, snapshot.Position)
}

func TestSnapshotNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeRows{})

	_, err := svc.Snapshot(context.Background(), "MT-MISSING1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
