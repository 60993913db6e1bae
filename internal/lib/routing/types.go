package routing

import (
	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// RandomSource supplies uniformly distributed values in [0, 1).
// *math/rand/v2.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// EnhancerConfig tunes the synthetic waypoint generator
type EnhancerConfig struct {
	MinPoints       int     // Routes with at least this many points are returned unchanged
	NumPoints       int     // Total points in a synthesized route, endpoints included
	CurveIntensity  float64 // Peak lateral offset in degrees
	CurveFrequency  float64 // Number of S-curves across the route
	JitterDegrees   float64 // Width of the uniform jitter applied to each axis
	GridSize        float64 // Grid spacing in degrees used for snapping
	GridProbability float64 // Chance an interior point is snapped to the grid
}

// DefaultEnhancerConfig returns the tuning used for walking routes
func DefaultEnhancerConfig() EnhancerConfig {
	return EnhancerConfig{
		MinPoints:       5,
		NumPoints:       15,
		CurveIntensity:  0.002,
		CurveFrequency:  2.5,
		JitterDegrees:   0.0003,
		GridSize:        0.001,
		GridProbability: 0.4,
	}
}

// RouteEnhancer guarantees a minimum resolution for route geometry
type RouteEnhancer interface {
	// Enhance returns existing when it is dense enough, otherwise a
	// synthesized path from source to destination
	Enhance(source, destination geo.Point, existing []geo.Point) []geo.Point
}
