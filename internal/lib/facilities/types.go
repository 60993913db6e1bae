package facilities

import (
	"context"
	"fmt"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// Category identifies the kind of facility searched along a route
type Category string

const (
	Hospital Category = "hospital"
	Police   Category = "police"
	Liquor   Category = "liquor"
)

// Categories lists every category located for a route
var Categories = []Category{Hospital, Police, Liquor}

// PlaceType returns the upstream place type for the category
func (c Category) PlaceType() string {
	if c == Liquor {
		return "liquor_store"
	}
	return string(c)
}

// ParseCategory converts a string to a Category
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case Hospital, Police, Liquor:
		return Category(s), nil
	case "liquor_store":
		return Liquor, nil
	}
	return "", fmt.Errorf("unknown facility category %q", s)
}

// Candidate is a place returned by a nearby search, before route filtering
type Candidate struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
}

// Facility is a place confirmed to lie along a route
type Facility struct {
	Name              string    `json:"name"`
	Location          geo.Point `json:"location"`
	DistanceFromRoute float64   `json:"distance"` // meters, rounded
	Category          Category  `json:"category"`
}

// PlaceSearcher finds places of a category around a point
type PlaceSearcher interface {
	SearchNearby(ctx context.Context, center geo.Point, radiusMeters float64, category Category) ([]Candidate, error)
}

// Options control sampling, filtering and limits of a Locator
type Options struct {
	ProximityThreshold float64       // Max distance from route in meters
	SampleStride       int           // Search around every Nth route point
	SearchRadius       float64       // Nearby search radius around each sample in meters
	DedupRadius        float64       // Candidates closer than this are the same facility
	MaxResults         int           // Cap on facilities returned per category
	SampleTimeout      time.Duration // Bound on each nearby search
	MaxConcurrency     int           // Concurrent nearby searches per category
}

// DefaultOptions returns the walking route defaults
func DefaultOptions() Options {
	return Options{
		ProximityThreshold: 200,
		SampleStride:       10,
		SearchRadius:       300,
		DedupRadius:        50,
		MaxResults:         20,
		SampleTimeout:      5 * time.Second,
		MaxConcurrency:     4,
	}
}
