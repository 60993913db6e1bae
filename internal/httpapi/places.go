package httpapi

import (
	"errors"
	"net/http"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/services"
)

type placeSearchQuery struct {
	Query string   `json:"q" validate:"required,min=2,max=200"`
	Lat   *float64 `json:"lat" validate:"required_with=Lng,omitempty,latitude"`
	Lng   *float64 `json:"lng" validate:"required_with=Lat,omitempty,longitude"`
}

func (s *Server) handlePlaceSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := parseCoordinateQuery(w, r)
	if !ok {
		return
	}
	query := placeSearchQuery{Query: r.URL.Query().Get("q"), Lat: q.lat, Lng: q.lng}
	if !s.validateQuery(w, &query) {
		return
	}

	var near *geo.Point
	if query.Lat != nil && query.Lng != nil {
		near = &geo.Point{Latitude: *query.Lat, Longitude: *query.Lng}
	}

	places, err := s.geocode.SearchPlaces(r.Context(), query.Query, near)
	if errors.Is(err, services.ErrQueryTooShort) {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		internalError(w, r, "Place search failed", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Places", places)
}

type reverseGeocodeQuery struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	q, ok := parseCoordinateQuery(w, r)
	if !ok {
		return
	}
	query := reverseGeocodeQuery{Lat: q.lat, Lng: q.lng}
	if !s.validateQuery(w, &query) {
		return
	}

	loc := s.geocode.ReverseGeocode(r.Context(), geo.Point{Latitude: *query.Lat, Longitude: *query.Lng})
	respondWithSuccess(w, http.StatusOK, "Location", loc)
}

type coordinateQuery struct {
	lat, lng *float64
}

// parseCoordinateQuery reads the optional lat and lng query parameters
func parseCoordinateQuery(w http.ResponseWriter, r *http.Request) (coordinateQuery, bool) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed", []string{err.Error()})
		return coordinateQuery{}, false
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed", []string{err.Error()})
		return coordinateQuery{}, false
	}
	return coordinateQuery{lat: lat, lng: lng}, true
}
