package routing

import (
	"math"
	"sync"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// enhancer implements the RouteEnhancer interface
type enhancer struct {
	config EnhancerConfig
	rand   RandomSource
	mu     sync.Mutex // guards rand, which is not safe for concurrent use
}

// NewEnhancer creates a RouteEnhancer drawing perturbations from rnd
func NewEnhancer(config EnhancerConfig, rnd RandomSource) RouteEnhancer {
	if config.NumPoints < 2 {
		config.NumPoints = 2
	}
	return &enhancer{
		config: config,
		rand:   rnd,
	}
}

// Enhance synthesizes road-like waypoints when the existing geometry is too sparse.
// This is a rendering fallback and never replaces authoritative geometry.
func (e *enhancer) Enhance(source, destination geo.Point, existing []geo.Point) []geo.Point {
	if len(existing) >= e.config.MinPoints {
		return existing
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.config.NumPoints
	points := make([]geo.Point, 0, n)
	points = append(points, source)

	dLat := destination.Latitude - source.Latitude
	dLng := destination.Longitude - source.Longitude

	// Offsets are applied perpendicular to the source->destination bearing
	perpendicular := math.Atan2(dLng, dLat) + math.Pi/2

	for i := 1; i < n-1; i++ {
		ratio := float64(i) / float64(n-1)

		lat := source.Latitude + dLat*ratio
		lng := source.Longitude + dLng*ratio

		// S-curve tapered to zero at both endpoints
		offset := math.Sin(ratio*math.Pi*e.config.CurveFrequency) * e.config.CurveIntensity * math.Sin(ratio*math.Pi)
		lat += math.Cos(perpendicular) * offset
		lng += math.Sin(perpendicular) * offset

		lat += (e.rand.Float64() - 0.5) * e.config.JitterDegrees
		lng += (e.rand.Float64() - 0.5) * e.config.JitterDegrees

		if e.config.GridSize > 0 && e.rand.Float64() < e.config.GridProbability {
			lat = math.Round(lat/e.config.GridSize) * e.config.GridSize
			lng = math.Round(lng/e.config.GridSize) * e.config.GridSize
		}

		points = append(points, geo.Point{Latitude: lat, Longitude: lng})
	}

	return append(points, destination)
}
