package geo

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Location is a point with an optional human readable address
type Location struct {
	Point
	Address string `json:"address,omitempty"`
}

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline"`
	Points          []Point `json:"points"`
}

// GeoUtils interface defines geographic calculation utilities
type GeoUtils interface {
	// Calculate great-circle distance between two points in meters
	PointToPoint(p1, p2 Point) (float64, error)

	// Calculate minimum distance from point to any polyline vertex in meters
	PointToPolyline(point Point, polyline Polyline) (float64, error)

	// Report whether point lies within thresholdMeters of the polyline,
	// along with the distance rounded to the meter
	IsNearRoute(point Point, route []Point, thresholdMeters float64) (bool, float64)

	// Decode Google polyline string to point sequence, empty on failure
	DecodePolyline(encoded string) []Point

	// Encode point sequence as a Google polyline string
	EncodePolyline(points []Point) string

	// Select every stride-th point, keeping the last point
	SamplePoints(points []Point, stride int) []Point

	// Filter points to those within specified distance of center point
	FilterPointsByDistance(points []Point, center Point, maxDistanceMeters float64) ([]Point, error)
}

// NewGeoUtils is implemented in geo.go
