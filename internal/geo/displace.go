// Package geo implements the coordinate privacy displacement: a flag's
// true location is replaced by a point drawn uniformly from a disk
// around it, so the published coordinate reads as "in the area" without
// revealing where the owner actually is.
package geo

import (
	"math"
	"math/rand"
	"sync"
)

// DefaultRadiusKm is the displacement disk radius used when no radius
// is configured.
const DefaultRadiusKm = 5.0

// earthRadiusKm is the sphere both the displacement and the distance
// math are computed on. Using one radius for both keeps the
// within-radius guarantee exact.
const earthRadiusKm = 6371.0

// Displacer draws displaced coordinates from an injected random
// source. Safe for concurrent use.
type Displacer struct {
	radiusKm float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDisplacer returns a Displacer with the given disk radius in
// kilometers. Tests pass a seeded source for reproducibility.
func NewDisplacer(radiusKm float64, src rand.Source) *Displacer {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Displacer{
		radiusKm: radiusKm,
		rnd:      rand.New(src),
	}
}

// RadiusKm returns the displacement disk radius.
func (d *Displacer) RadiusKm() float64 {
	return d.radiusKm
}

// Displace returns a coordinate displaced from (lat, lng) by a point
// chosen uniformly over the disk of the configured radius. Sampling is
// area-uniform: r = R*sqrt(u1), so points land denser toward the rim
// than radius-uniform sampling would. The displaced point is the
// great-circle destination at distance r and bearing theta, so the
// distance from the input is exactly r at every latitude.
func (d *Displacer) Displace(lat, lng float64) (float64, float64) {
	d.mu.Lock()
	u1 := d.rnd.Float64()
	u2 := d.rnd.Float64()
	d.mu.Unlock()

	delta := d.radiusKm * math.Sqrt(u1) / earthRadiusKm // angular distance, radians
	theta := 2 * math.Pi * u2

	phi := lat * math.Pi / 180.0
	lam := lng * math.Pi / 180.0

	sinPhi2 := math.Sin(phi)*math.Cos(delta) + math.Cos(phi)*math.Sin(delta)*math.Cos(theta)
	if sinPhi2 > 1 {
		sinPhi2 = 1
	} else if sinPhi2 < -1 {
		sinPhi2 = -1
	}
	phi2 := math.Asin(sinPhi2)
	lam2 := lam + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi),
		math.Cos(delta)-math.Sin(phi)*sinPhi2,
	)

	lat2 := phi2 * 180.0 / math.Pi
	lng2 := lam2 * 180.0 / math.Pi
	if lng2 > 180 {
		lng2 -= 360
	} else if lng2 < -180 {
		lng2 += 360
	}
	return lat2, lng2
}

// DistanceKm returns the great-circle distance between two coordinates
// in kilometers (haversine).
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := lat1 * math.Pi / 180.0
	p2 := lat2 * math.Pi / 180.0
	dLat := p2 - p1
	dLng := (lng2 - lng1) * math.Pi / 180.0

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLng / 2)
	vSin *= vSin

	h := hSin + math.Cos(p1)*math.Cos(p2)*vSin
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
