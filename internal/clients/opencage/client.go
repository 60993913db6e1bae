package opencage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// ErrNoResults is returned when OpenCage has no address for a coordinate
var ErrNoResults = errors.New("no geocoding results")

// HTTPDoer executes HTTP requests; *http.Client satisfies it
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the OpenCage geocoding API
type Client struct {
	apiKey     string
	httpClient HTTPDoer
	baseURL    string
}

// NewClient creates a new OpenCage API client
func NewClient(apiKey string) *Client {
	return NewClientWithHTTPDoer(apiKey, "https://api.opencagedata.com", &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewClientWithHTTPDoer creates a client with a custom transport
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
	}
}

// ReverseGeocode returns the formatted address of the best match for p
func (c *Client) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%f,%f", p.Latitude, p.Longitude))
	params.Set("key", c.apiKey)
	params.Set("limit", "1")
	params.Set("no_annotations", "1")

	requestURL := fmt.Sprintf("%s/geocode/v1/json?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusPaymentRequired:
		return "", fmt.Errorf("rate limit exceeded")
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("invalid API key")
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var response geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Results) == 0 || response.Results[0].Formatted == "" {
		return "", ErrNoResults
	}
	return response.Results[0].Formatted, nil
}

type geocodeResponse struct {
	Results []struct {
		Formatted  string `json:"formatted"`
		Confidence int    `json:"confidence"`
	} `json:"results"`
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}
