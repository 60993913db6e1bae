package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dpup/prefab/logging"

	"github.com/shaktipath/safepath/server/internal/clients/google"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// ErrQueryTooShort is returned for place searches under two characters
var ErrQueryTooShort = errors.New("search query must be at least 2 characters")

const minQueryLength = 2

// ReverseGeocoder resolves coordinates to an address; *opencage.Client satisfies it
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (string, error)
}

// TextSearcher finds places by free text; *google.PlacesClient satisfies it
type TextSearcher interface {
	SearchText(ctx context.Context, query string, near *geo.Point) ([]google.Place, error)
}

// GeocodeService serves place search and reverse geocoding
type GeocodeService struct {
	geocoder ReverseGeocoder
	places   TextSearcher
}

// NewGeocodeService creates a GeocodeService. A nil geocoder always uses the
// coordinate fallback.
func NewGeocodeService(geocoder ReverseGeocoder, places TextSearcher) *GeocodeService {
	return &GeocodeService{geocoder: geocoder, places: places}
}

// ReverseGeocode returns an address for p, or its coordinates formatted to four
// decimals when the lookup is unavailable or fails
func (s *GeocodeService) ReverseGeocode(ctx context.Context, p geo.Point) geo.Location {
	loc := geo.Location{Point: p, Address: CoordinateLabel(p)}
	if s.geocoder == nil {
		return loc
	}

	address, err := s.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		logging.Warnw(ctx, "Reverse geocoding failed, using coordinates",
			"lat", p.Latitude, "lng", p.Longitude, "error", err)
		return loc
	}
	loc.Address = address
	return loc
}

// SearchPlaces returns up to ten places matching query, biased toward near when set
func (s *GeocodeService) SearchPlaces(ctx context.Context, query string, near *geo.Point) ([]google.Place, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return nil, ErrQueryTooShort
	}

	places, err := s.places.SearchText(ctx, query, near)
	if err != nil {
		return nil, fmt.Errorf("failed to search places: %w", err)
	}
	return places, nil
}

// CoordinateLabel formats p as "lat, lng" with four decimals
func CoordinateLabel(p geo.Point) string {
	return fmt.Sprintf("%.4f, %.4f", p.Latitude, p.Longitude)
}

func addressOrCoordinates(address string, p geo.Point) string {
	if address != "" {
		return address
	}
	return CoordinateLabel(p)
}
