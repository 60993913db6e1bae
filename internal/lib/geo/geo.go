package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadiusMeters is the mean Earth radius used by the Haversine formula
const EarthRadiusMeters = 6371000

var errInvalidCoordinates = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two validated points
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errInvalidCoordinates
	}
	return DistanceMeters(p1, p2), nil
}

// PointToPolyline calculates the vertex-based minimum distance from point to polyline
func (g *geoUtils) PointToPolyline(point Point, polyline Polyline) (float64, error) {
	if !isValidCoordinate(point) {
		return 0, errors.New("invalid point coordinates")
	}

	points := polyline.Points
	if len(points) == 0 && polyline.EncodedPolyline != "" {
		points = DecodePolyline(polyline.EncodedPolyline)
	}
	if len(points) == 0 {
		return 0, errors.New("polyline has no points")
	}

	return MinDistanceToPolyline(point, points), nil
}

// IsNearRoute delegates to the package level IsNearRoute
func (g *geoUtils) IsNearRoute(point Point, route []Point, thresholdMeters float64) (bool, float64) {
	return IsNearRoute(point, route, thresholdMeters)
}

// DecodePolyline delegates to the package level DecodePolyline
func (g *geoUtils) DecodePolyline(encoded string) []Point {
	return DecodePolyline(encoded)
}

// EncodePolyline delegates to the package level EncodePolyline
func (g *geoUtils) EncodePolyline(points []Point) string {
	return EncodePolyline(points)
}

// SamplePoints delegates to the package level SamplePoints
func (g *geoUtils) SamplePoints(points []Point, stride int) []Point {
	return SamplePoints(points, stride)
}

// FilterPointsByDistance filters points to those within specified distance of center point
func (g *geoUtils) FilterPointsByDistance(points []Point, center Point, maxDistanceMeters float64) ([]Point, error) {
	if !isValidCoordinate(center) {
		return nil, errors.New("invalid center point coordinates")
	}

	var filteredPoints []Point
	for _, point := range points {
		if !isValidCoordinate(point) {
			continue // Skip invalid points
		}
		if DistanceMeters(center, point) <= maxDistanceMeters {
			filteredPoints = append(filteredPoints, point)
		}
	}

	return filteredPoints, nil
}

// DistanceMeters calculates great-circle distance between two points using the Haversine formula
func DistanceMeters(a, b Point) float64 {
	if a.Latitude == b.Latitude && a.Longitude == b.Longitude {
		return 0
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dlat := (b.Latitude - a.Latitude) * math.Pi / 180
	dlon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// MinDistanceToPolyline returns the smallest distance from point to any vertex of path.
// Segments between vertices are not projected onto, so sparse paths overestimate.
func MinDistanceToPolyline(point Point, path []Point) float64 {
	minDistance := math.Inf(1)
	for _, vertex := range path {
		if d := DistanceMeters(point, vertex); d < minDistance {
			minDistance = d
		}
	}
	return minDistance
}

// IsNearRoute reports whether point is within thresholdMeters of the route.
// The returned distance is rounded to the nearest meter.
func IsNearRoute(point Point, route []Point, thresholdMeters float64) (bool, float64) {
	minDistance := MinDistanceToPolyline(point, route)
	return minDistance <= thresholdMeters, math.Round(minDistance)
}

// DecodePolyline decodes a Google encoded polyline. Decoding is best effort:
// an empty or malformed string yields an empty slice.
func DecodePolyline(encoded string) []Point {
	if encoded == "" {
		return []Point{}
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return []Point{}
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if !isValidCoordinate(points[i]) {
			return []Point{}
		}
	}

	return points
}

// EncodePolyline encodes points with five decimal places of precision
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// SamplePoints returns points[0], points[stride], ... and always the final
// point so the destination end of a route is searched too.
func SamplePoints(points []Point, stride int) []Point {
	if len(points) == 0 {
		return nil
	}
	if stride < 1 {
		stride = 1
	}

	samples := make([]Point, 0, len(points)/stride+2)
	for i := 0; i < len(points); i += stride {
		samples = append(samples, points[i])
	}
	if (len(points)-1)%stride != 0 {
		samples = append(samples, points[len(points)-1])
	}
	return samples
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errInvalidCoordinates
	}
	return point, nil
}

// IsValid reports whether the point is within latitude and longitude bounds
func (p Point) IsValid() bool {
	return isValidCoordinate(p)
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
