package simulation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *memSink) Send(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memSink) Close() {}

func (s *memSink) samples() []models.PositionSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PositionSample, 0, len(s.events))
	for _, e := range s.events {
		if sample, ok := e.Payload.(models.PositionSample); ok {
			out = append(out, sample)
		}
	}
	return out
}

type fakeOrderUpdater struct {
	mu        sync.Mutex
	delivered []string
}

func (f *fakeOrderUpdater) AdvanceToOutForDelivery(ctx context.Context, orderID string) (models.OrderStatus, error) {
	return models.OrderOutForDelivery, nil
}

func (f *fakeOrderUpdater) MarkDelivered(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, orderID)
	return nil
}

func (f *fakeOrderUpdater) deliveredOrders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

// refusingOrderUpdater rejects delivery, the way the order service does for an
// order that reached a terminal state behind the simulator's back.
type refusingOrderUpdater struct {
	fakeOrderUpdater
}

func (f *refusingOrderUpdater) MarkDelivered(ctx context.Context, orderID string) error {
	return errors.New("order is cancelled")
}

const (
	fromLat = 13.08
	fromLng = 80.27
	toLat   = 13.09
	toLng   = 80.28
)

func TestPositionAtInterpolates(t *testing.T) {
	total := 120 * time.Second

	lat, lng := PositionAt(fromLat, fromLng, toLat, toLng, 0, total)
	assert.Equal(t, fromLat, lat)
	assert.Equal(t, fromLng, lng)

	lat, lng = PositionAt(fromLat, fromLng, toLat, toLng, 60*time.Second, total)
	assert.InDelta(t, 13.085, lat, 1e-9)
	assert.InDelta(t, 80.275, lng, 1e-9)

	lat, lng = PositionAt(fromLat, fromLng, toLat, toLng, 120*time.Second, total)
	assert.Equal(t, toLat, lat)
	assert.Equal(t, toLng, lng)

	// Past the trip end the position stays pinned at the destination.
	lat, lng = PositionAt(fromLat, fromLng, toLat, toLng, 300*time.Second, total)
	assert.Equal(t, toLat, lat)
	assert.Equal(t, toLng, lng)
}

func TestStartRejectsBadEndpoints(t *testing.T) {
	m := NewManager(tracking.NewStore(), &fakeOrderUpdater{})

	err := m.Start("o1", "p1", math.NaN(), fromLng, toLat, toLng)
	require.ErrorIs(t, err, ErrBadEndpoints)
	assert.False(t, m.Running("o1"))
}

func TestStartRejectedWhileDeviceOwnsFeed(t *testing.T) {
	store := tracking.NewStore()
	require.NoError(t, store.ClaimSource("o1", tracking.SourceDevice))

	m := NewManager(store, &fakeOrderUpdater{})
	err := m.Start("o1", "p1", fromLat, fromLng, toLat, toLng)
	require.ErrorIs(t, err, tracking.ErrSourceOwned)
	assert.False(t, m.Running("o1"))
}

func TestSimulationRunsToDelivered(t *testing.T) {
	store := tracking.NewStore()
	updater := &fakeOrderUpdater{}
	m := NewManagerWithTiming(store, updater, 60*time.Millisecond, 5*time.Millisecond)

	sink := &memSink{}
	store.Subscribe(tracking.OrderChannel("o1"), sink)

	require.NoError(t, m.Start("o1", "p1", fromLat, fromLng, toLat, toLng))
	assert.True(t, m.Running("o1"))

	require.Eventually(t, func() bool {
		return len(updater.deliveredOrders()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return !m.Running("o1")
	}, 2*time.Second, 5*time.Millisecond)

	samples := sink.samples()
	require.NotEmpty(t, samples)

	first := samples[0]
	assert.Equal(t, fromLat, first.Latitude)
	assert.Equal(t, fromLng, first.Longitude)
	assert.Equal(t, models.OrderOutForDelivery, first.Status)
	assert.Equal(t, "p1", first.SourcePartnerID)

	last := samples[len(samples)-1]
	assert.Equal(t, toLat, last.Latitude)
	assert.Equal(t, toLng, last.Longitude)
	assert.Equal(t, models.OrderDelivered, last.Status)

	// The completed run released ownership, a device feed may take over.
	require.NoError(t, store.ClaimSource("o1", tracking.SourceDevice))
}

func TestRefusedDeliveryNeverPublishesDeliveredSample(t *testing.T) {
	store := tracking.NewStore()
	m := NewManagerWithTiming(store, &refusingOrderUpdater{}, 40*time.Millisecond, 5*time.Millisecond)

	sink := &memSink{}
	store.Subscribe(tracking.OrderChannel("o1"), sink)

	require.NoError(t, m.Start("o1", "p1", fromLat, fromLng, toLat, toLng))

	require.Eventually(t, func() bool {
		return !m.Running("o1")
	}, 2*time.Second, 5*time.Millisecond)

	samples := sink.samples()
	require.NotEmpty(t, samples)
	for _, sample := range samples {
		assert.NotEqual(t, models.OrderDelivered, sample.Status)
	}
	assert.Equal(t, models.OrderOutForDelivery, samples[len(samples)-1].Status)
}

func TestStopCancelsRunAndReleasesSource(t *testing.T) {
	store := tracking.NewStore()
	m := NewManagerWithTiming(store, &fakeOrderUpdater{}, time.Hour, 10*time.Millisecond)

	require.NoError(t, m.Start("o1", "p1", fromLat, fromLng, toLat, toLng))
	require.True(t, m.Running("o1"))

	assert.True(t, m.Stop("o1"))
	assert.False(t, m.Running("o1"))
	assert.False(t, m.Stop("o1"))

	require.NoError(t, store.ClaimSource("o1", tracking.SourceDevice))
}

func TestRestartReplacesRunningSimulation(t *testing.T) {
	store := tracking.NewStore()
	m := NewManagerWithTiming(store, &fakeOrderUpdater{}, time.Hour, 5*time.Millisecond)

	sink := &memSink{}
	store.Subscribe(tracking.OrderChannel("o1"), sink)

	require.NoError(t, m.Start("o1", "p1", fromLat, fromLng, toLat, toLng))
	time.Sleep(25 * time.Millisecond)

	// Restart from a different origin. The first run's ticker must stop, so
	// after the restart settles no sample from the old endpoints appears.
	require.NoError(t, m.Start("o1", "p1", 13.20, 80.30, toLat, toLng))
	time.Sleep(25 * time.Millisecond)

	samples := sink.samples()
	require.GreaterOrEqual(t, len(samples), 2)
	seen := 0
	for _, sample := range samples[len(samples)-2:] {
		if sample.Latitude >= 13.09 {
			seen++
		}
	}
	assert.NotZero(t, seen, "expected recent samples from the restarted trip")
	assert.True(t, m.Running("o1"))

	m.StopAll()
	assert.False(t, m.Running("o1"))
}

func TestStopNeverRollsBackStatus(t *testing.T) {
	store := tracking.NewStore()
	updater := &fakeOrderUpdater{}
	m := NewManagerWithTiming(store, updater, time.Hour, 5*time.Millisecond)

	require.NoError(t, m.Start("o1", "p1", fromLat, fromLng, toLat, toLng))
	time.Sleep(15 * time.Millisecond)
	m.Stop("o1")

	sample, ok := store.Latest("o1")
	require.True(t, ok)
	// The dispatch transition stands even though the trip was cancelled.
	assert.Equal(t, models.OrderOutForDelivery, sample.Status)
	assert.Empty(t, updater.deliveredOrders())
}
