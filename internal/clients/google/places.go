package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

const (
	nearbyResultLimit     = 20
	textSearchResultLimit = 10
	textSearchBiasMeters  = 50000.0
)

// PlacesClient provides access to Google Places API (New)
type PlacesClient struct {
	apiKey     string
	httpClient HTTPDoer
	baseURL    string
}

// Place is a text search hit
type Place struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Location geo.Point `json:"location"`
}

// NewPlacesClient creates a new Google Places API client
func NewPlacesClient(apiKey string) *PlacesClient {
	return NewPlacesClientWithHTTPDoer(apiKey, "https://places.googleapis.com", &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewPlacesClientWithHTTPDoer creates a places client with a custom transport
func NewPlacesClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *PlacesClient {
	return &PlacesClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
	}
}

// SearchNearby returns places of the category's type within radiusMeters of center
func (c *PlacesClient) SearchNearby(ctx context.Context, center geo.Point, radiusMeters float64, category facilities.Category) ([]facilities.Candidate, error) {
	requestBody := map[string]interface{}{
		"includedTypes":  []string{category.PlaceType()},
		"maxResultCount": nearbyResultLimit,
		"locationRestriction": map[string]interface{}{
			"circle": circle(center, radiusMeters),
		},
	}

	var response googlePlacesResponse
	if err := doJSON(ctx, c.httpClient, c.baseURL+"/v1/places:searchNearby", c.apiKey,
		"places.id,places.displayName,places.location", requestBody, &response); err != nil {
		return nil, fmt.Errorf("nearby search for %s: %w", category, err)
	}

	candidates := make([]facilities.Candidate, 0, len(response.Places))
	for _, p := range response.Places {
		candidates = append(candidates, facilities.Candidate{
			ID:       p.ID,
			Name:     p.DisplayName.Text,
			Location: p.Location.point(),
		})
	}
	return candidates, nil
}

// SearchText finds places matching query, biased toward near when it is set
func (c *PlacesClient) SearchText(ctx context.Context, query string, near *geo.Point) ([]Place, error) {
	requestBody := map[string]interface{}{
		"textQuery": query,
		"pageSize":  textSearchResultLimit,
	}
	if near != nil {
		requestBody["locationBias"] = map[string]interface{}{
			"circle": circle(*near, textSearchBiasMeters),
		}
	}

	var response googlePlacesResponse
	if err := doJSON(ctx, c.httpClient, c.baseURL+"/v1/places:searchText", c.apiKey,
		"places.id,places.displayName,places.formattedAddress,places.location", requestBody, &response); err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	places := make([]Place, 0, len(response.Places))
	for _, p := range response.Places {
		if len(places) == textSearchResultLimit {
			break
		}
		places = append(places, Place{
			ID:       p.ID,
			Name:     p.DisplayName.Text,
			Address:  p.FormattedAddress,
			Location: p.Location.point(),
		})
	}
	return places, nil
}

func circle(center geo.Point, radiusMeters float64) map[string]interface{} {
	return map[string]interface{}{
		"center": GoogleLatLng{Latitude: center.Latitude, Longitude: center.Longitude},
		"radius": radiusMeters,
	}
}

type googlePlacesResponse struct {
	Places []googlePlace `json:"places"`
}

type googlePlace struct {
	ID               string              `json:"id"`
	DisplayName      GoogleLocalizedText `json:"displayName"`
	FormattedAddress string              `json:"formattedAddress"`
	Location         GoogleLatLng        `json:"location"`
}
