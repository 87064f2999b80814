package geo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplaceStaysWithinRadius(t *testing.T) {
	d := NewDisplacer(5.0, rand.NewSource(1))

	coords := [][2]float64{
		{37.5665, 126.9780}, // Seoul
		{-33.8688, 151.2093},
		{0, 0},
		{64.1466, -21.9426},
		{78.2232, 15.6267}, // high latitude, where flat-earth math drifts
	}

	for _, c := range coords {
		for i := 0; i < 10000; i++ {
			lat, lng := d.Displace(c[0], c[1])
			dist := DistanceKm(c[0], c[1], lat, lng)
			require.LessOrEqual(t, dist, 5.0, "displaced point outside radius")
			require.Greater(t, dist, 0.0, "displaced point equals input")
			require.LessOrEqual(t, lat, 90.0)
			require.GreaterOrEqual(t, lat, -90.0)
		}
	}
}

func TestDisplaceIsAreaUniform(t *testing.T) {
	d := NewDisplacer(5.0, rand.NewSource(42))

	// With area-uniform sampling the inner half-radius disk holds ~25%
	// of draws, not ~50% as radius-uniform sampling would give.
	const trials = 10000
	inner := 0
	for i := 0; i < trials; i++ {
		lat, lng := d.Displace(37.5665, 126.9780)
		if DistanceKm(37.5665, 126.9780, lat, lng) < 2.5 {
			inner++
		}
	}
	frac := float64(inner) / trials
	assert.InDelta(t, 0.25, frac, 0.03)
}

func TestDisplaceNearPoleDoesNotBlowUp(t *testing.T) {
	d := NewDisplacer(5.0, rand.NewSource(7))

	for i := 0; i < 1000; i++ {
		lat, lng := d.Displace(90, 0)
		assert.False(t, lat != lat, "lat is NaN")
		assert.False(t, lng != lng, "lng is NaN")
		assert.LessOrEqual(t, DistanceKm(90, 0, lat, lng), 5.0)
	}
}

func TestDisplaceDeterministicWithSeed(t *testing.T) {
	a := NewDisplacer(5.0, rand.NewSource(99))
	b := NewDisplacer(5.0, rand.NewSource(99))

	for i := 0; i < 100; i++ {
		lat1, lng1 := a.Displace(48.8566, 2.3522)
		lat2, lng2 := b.Displace(48.8566, 2.3522)
		require.Equal(t, lat1, lat2)
		require.Equal(t, lng1, lng2)
	}
}

func TestDefaultRadius(t *testing.T) {
	d := NewDisplacer(0, rand.NewSource(1))
	assert.Equal(t, DefaultRadiusKm, d.RadiusKm())
}
