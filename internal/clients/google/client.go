package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// ErrNoRoute is returned when the Routes API finds no walking route
var ErrNoRoute = errors.New("no routes found in response")

// HTTPDoer executes HTTP requests; *http.Client satisfies it
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to Google Routes API v2
type Client struct {
	apiKey     string
	httpClient HTTPDoer
	baseURL    string
}

// RouteData represents the processed walking route from Google Routes API
type RouteData struct {
	DurationSeconds int32
	DistanceMeters  int32
	DistanceText    string
	DurationText    string
	Polyline        string
	Steps           []Step
}

// Step is a single navigation instruction along the route
type Step struct {
	Instruction  string    `json:"instruction"`
	DistanceText string    `json:"distance"`
	DurationText string    `json:"duration"`
	Start        geo.Point `json:"start"`
	End          geo.Point `json:"end"`
}

// NewClient creates a new Google Routes API client
func NewClient(apiKey string) *Client {
	return NewClientWithHTTPDoer(apiKey, "https://routes.googleapis.com", &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewClientWithHTTPDoer creates a client with a custom transport, used by tests
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
	}
}

// ComputeWalkingRoute requests a walking route between two points
func (c *Client) ComputeWalkingRoute(ctx context.Context, origin, destination geo.Point) (*RouteData, error) {
	requestBody := map[string]interface{}{
		"origin":       waypoint(origin),
		"destination":  waypoint(destination),
		"travelMode":   "WALK",
		"languageCode": "en-IN",
		"units":        "METRIC",
	}

	// Field mask is required by the Routes API
	fieldMask := "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline,routes.localizedValues," +
		"routes.legs.steps.navigationInstruction,routes.legs.steps.localizedValues," +
		"routes.legs.steps.startLocation,routes.legs.steps.endLocation"

	var response GoogleRoutesResponse
	if err := doJSON(ctx, c.httpClient, c.baseURL+"/directions/v2:computeRoutes", c.apiKey, fieldMask, requestBody, &response); err != nil {
		return nil, err
	}

	if len(response.Routes) == 0 {
		return nil, ErrNoRoute
	}

	return c.processRouteResponse(response.Routes[0])
}

// processRouteResponse converts Google Routes API response to our RouteData format
func (c *Client) processRouteResponse(route GoogleRoute) (*RouteData, error) {
	durationSeconds, err := parseDuration(route.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration: %w", err)
	}

	data := &RouteData{
		DurationSeconds: durationSeconds,
		DistanceMeters:  route.DistanceMeters,
		Polyline:        route.Polyline.EncodedPolyline,
	}
	if route.LocalizedValues != nil {
		data.DistanceText = route.LocalizedValues.Distance.Text
		data.DurationText = route.LocalizedValues.Duration.Text
	}

	for _, leg := range route.Legs {
		for _, s := range leg.Steps {
			step := Step{
				Instruction:  "Continue",
				DistanceText: "0 m",
				DurationText: "0 mins",
				Start:        s.StartLocation.LatLng.point(),
				End:          s.EndLocation.LatLng.point(),
			}
			if s.NavigationInstruction != nil && s.NavigationInstruction.Instructions != "" {
				step.Instruction = s.NavigationInstruction.Instructions
			}
			if s.LocalizedValues != nil {
				if s.LocalizedValues.Distance.Text != "" {
					step.DistanceText = s.LocalizedValues.Distance.Text
				}
				if s.LocalizedValues.StaticDuration.Text != "" {
					step.DurationText = s.LocalizedValues.StaticDuration.Text
				}
			}
			data.Steps = append(data.Steps, step)
		}
	}

	return data, nil
}

// parseDuration parses Google's duration format like "450s" to seconds
func parseDuration(durationStr string) (int32, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if len(durationStr) > 1 && durationStr[len(durationStr)-1] == 's' {
		durationStr = durationStr[:len(durationStr)-1]
	}

	var seconds int32
	_, err := fmt.Sscanf(durationStr, "%d", &seconds)
	return seconds, err
}

func waypoint(p geo.Point) map[string]interface{} {
	return map[string]interface{}{
		"location": map[string]interface{}{
			"latLng": GoogleLatLng{Latitude: p.Latitude, Longitude: p.Longitude},
		},
	}
}

// doJSON posts body to url with the API key and field mask headers and decodes the response into out
func doJSON(ctx context.Context, doer HTTPDoer, url, apiKey, fieldMask string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Goog-Api-Key", apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GoogleRoutesResponse represents the API response structure
type GoogleRoutesResponse struct {
	Routes []GoogleRoute `json:"routes"`
}

// GoogleRoute represents a single route in the response
type GoogleRoute struct {
	Duration        string                `json:"duration"`
	DistanceMeters  int32                 `json:"distanceMeters"`
	Polyline        GooglePolyline        `json:"polyline"`
	LocalizedValues *GoogleRouteLocalized `json:"localizedValues,omitempty"`
	Legs            []GoogleRouteLeg      `json:"legs"`
}

// GooglePolyline represents the route polyline
type GooglePolyline struct {
	EncodedPolyline string `json:"encodedPolyline"`
}

// GoogleRouteLocalized holds human readable route totals
type GoogleRouteLocalized struct {
	Distance GoogleLocalizedText `json:"distance"`
	Duration GoogleLocalizedText `json:"duration"`
}

// GoogleLocalizedText is a localized display value
type GoogleLocalizedText struct {
	Text string `json:"text"`
}

// GoogleRouteLeg is one origin to destination leg
type GoogleRouteLeg struct {
	Steps []GoogleRouteStep `json:"steps"`
}

// GoogleRouteStep is a single step of a leg
type GoogleRouteStep struct {
	NavigationInstruction *struct {
		Maneuver     string `json:"maneuver"`
		Instructions string `json:"instructions"`
	} `json:"navigationInstruction,omitempty"`
	LocalizedValues *struct {
		Distance       GoogleLocalizedText `json:"distance"`
		StaticDuration GoogleLocalizedText `json:"staticDuration"`
	} `json:"localizedValues,omitempty"`
	StartLocation GoogleLocation `json:"startLocation"`
	EndLocation   GoogleLocation `json:"endLocation"`
}

// GoogleLocation wraps a lat/lng pair
type GoogleLocation struct {
	LatLng GoogleLatLng `json:"latLng"`
}

// GoogleLatLng is the Google wire representation of a coordinate
type GoogleLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l GoogleLatLng) point() geo.Point {
	return geo.Point{Latitude: l.Latitude, Longitude: l.Longitude}
}
