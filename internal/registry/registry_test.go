package registry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAvailabilityCreatesAndIsIdempotent(t *testing.T) {
	r := New()

	r.SetAvailability("p1", true)
	p, ok := r.Get("p1")
	require.True(t, ok)
	assert.True(t, p.IsAvailable)
	assert.Equal(t, 0, p.ActiveOrders)
	assert.Nil(t, p.Location)

	// Repeating the same toggle changes nothing.
	r.SetAvailability("p1", true)
	p, _ = r.Get("p1")
	assert.True(t, p.IsAvailable)

	r.SetAvailability("p1", false)
	p, _ = r.Get("p1")
	assert.False(t, p.IsAvailable)
}

func TestReportLocationRejectsNonFinite(t *testing.T) {
	r := New()
	r.SetAvailability("p1", true)

	require.ErrorIs(t, r.ReportLocation("p1", math.NaN(), 80.27), ErrBadCoordinates)
	require.ErrorIs(t, r.ReportLocation("p1", 13.08, math.Inf(1)), ErrBadCoordinates)

	// Rejected reports must not leave a partial location behind.
	p, _ := r.Get("p1")
	assert.Nil(t, p.Location)

	require.NoError(t, r.ReportLocation("p1", 13.08, 80.27))
	p, _ = r.Get("p1")
	require.NotNil(t, p.Location)
	assert.Equal(t, 13.08, p.Location.Latitude)
	assert.Equal(t, 80.27, p.Location.Longitude)
	assert.NotZero(t, p.Location.Timestamp)
}

func TestIncrementWorkloadClampsAtZero(t *testing.T) {
	r := New()

	r.IncrementWorkload("p1", 1)
	r.IncrementWorkload("p1", 1)
	p, _ := r.Get("p1")
	assert.Equal(t, 2, p.ActiveOrders)

	r.IncrementWorkload("p1", -1)
	r.IncrementWorkload("p1", -1)
	r.IncrementWorkload("p1", -1)
	p, _ = r.Get("p1")
	assert.Equal(t, 0, p.ActiveOrders)
}

func TestFindCandidatesFiltersByRadius(t *testing.T) {
	r := New()

	r.SetAvailability("near", true)
	require.NoError(t, r.ReportLocation("near", 13.05, 80.25))

	r.SetAvailability("far", true)
	require.NoError(t, r.ReportLocation("far", 14.50, 80.25)) // ~160 km north

	r.SetAvailability("offline", false)
	require.NoError(t, r.ReportLocation("offline", 13.05, 80.25))

	candidates := r.FindCandidates(13.0827, 80.2707, 20.0)
	require.Len(t, candidates, 1)
	assert.Equal(t, "near", candidates[0].ID)

	// Unbounded radius still excludes unavailable partners.
	candidates = r.FindCandidates(13.0827, 80.2707, math.Inf(1))
	assert.Len(t, candidates, 2)
}

func TestFindCandidatesDegradesOnBadOrigin(t *testing.T) {
	r := New()
	r.SetAvailability("p1", true)
	require.NoError(t, r.ReportLocation("p1", 13.05, 80.25))
	r.SetAvailability("p2", true)

	candidates := r.FindCandidates(math.NaN(), 80.27, 20.0)
	assert.Len(t, candidates, 2)
}

func TestFindCandidatesDegradesWhenNobodyLocated(t *testing.T) {
	r := New()
	r.SetAvailability("p1", true)
	r.SetAvailability("p2", true)

	// No partner has reported a location yet, so the radius filter would
	// return nothing. The scan degrades to all available partners instead.
	candidates := r.FindCandidates(13.0827, 80.2707, 20.0)
	assert.Len(t, candidates, 2)
}

func TestGetReturnsCopy(t *testing.T) {
	r := New()
	r.SetAvailability("p1", true)
	require.NoError(t, r.ReportLocation("p1", 13.05, 80.25))

	p, _ := r.Get("p1")
	p.Location.Latitude = 99.0
	p.IsAvailable = false

	fresh, _ := r.Get("p1")
	assert.Equal(t, 13.05, fresh.Location.Latitude)
	assert.True(t, fresh.IsAvailable)
}
