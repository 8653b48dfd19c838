package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKmZeroForSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(13.0827, 80.2707, 13.0827, 80.2707))
}

func TestDistanceKmIsSymmetric(t *testing.T) {
	d1 := DistanceKm(13.0827, 80.2707, 12.9716, 77.5946)
	d2 := DistanceKm(12.9716, 77.5946, 13.0827, 80.2707)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestDistanceKmKnownDistances(t *testing.T) {
	// One degree of latitude is roughly 111.2 km.
	d := DistanceKm(13.0, 80.0, 14.0, 80.0)
	assert.InDelta(t, 111.2, d, 0.5)

	// Chennai to Bangalore is about 290 km as the crow flies.
	d = DistanceKm(13.0827, 80.2707, 12.9716, 77.5946)
	assert.InDelta(t, 290.0, d, 5.0)
}

func TestDistanceKmNonFiniteCoordinates(t *testing.T) {
	assert.True(t, math.IsInf(DistanceKm(math.NaN(), 80.0, 13.0, 80.0), 1))
	assert.True(t, math.IsInf(DistanceKm(13.0, math.Inf(1), 13.0, 80.0), 1))
	assert.True(t, math.IsInf(DistanceKm(13.0, 80.0, math.NaN(), 80.0), 1))
	assert.True(t, math.IsInf(DistanceKm(13.0, 80.0, 13.0, math.Inf(-1)), 1))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(0))
	assert.True(t, IsFinite(-80.27))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(1)))
	assert.False(t, IsFinite(math.Inf(-1)))
}
