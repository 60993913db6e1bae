package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/routing"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	geoUtils := geo.NewGeoUtils()

	switch command {
	case "point-distance":
		handlePointDistance(geoUtils)
	case "near-route":
		handleNearRoute(geoUtils)
	case "point-to-polyline":
		handlePointToPolyline(geoUtils)
	case "filter-points":
		handleFilterPoints(geoUtils)
	case "decode-polyline":
		handleDecodePolyline(geoUtils)
	case "enhance":
		handleEnhance(geoUtils)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lat1 28.6129 --lng1 77.2295 --lat2 28.6315 --lng2 77.2167")
		fmt.Println("  (India Gate to Connaught Place)")
		os.Exit(1)
	}

	p1 := geo.Point{Latitude: *lat1, Longitude: *lng1}
	p2 := geo.Point{Latitude: *lat2, Longitude: *lng2}

	distance, err := geoUtils.PointToPoint(p1, p2)
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: (%.6f, %.6f)\n", p1.Latitude, p1.Longitude)
	fmt.Printf("  Point 2: (%.6f, %.6f)\n", p2.Latitude, p2.Longitude)
	fmt.Printf("  Distance: %.2f meters (%.2f km)\n", distance, distance/1000)
}

func handleNearRoute(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("near-route", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of point")
	lng := fs.Float64("lng", 0, "Longitude of point")
	polylineStr := fs.String("polyline", "", "Encoded route polyline")
	route := fs.String("route", "", "Route as lat,lng;lat,lng;... (instead of -polyline)")
	threshold := fs.Float64("threshold", 200, "Proximity threshold in meters")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" && *route == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils near-route --lat 28.6200 --lng 77.2260 --route \"28.6129,77.2295;28.6239,77.2200\"")
		os.Exit(1)
	}

	points, err := routePoints(geoUtils, *polylineStr, *route)
	if err != nil {
		log.Fatal(err)
	}

	point := geo.Point{Latitude: *lat, Longitude: *lng}
	near, distance := geoUtils.IsNearRoute(point, points, *threshold)

	fmt.Printf("Point to route:\n")
	fmt.Printf("  Point: (%.6f, %.6f)\n", point.Latitude, point.Longitude)
	fmt.Printf("  Route: %d points\n", len(points))
	fmt.Printf("  Nearest vertex: %.0f meters\n", distance)
	fmt.Printf("  Within %.0f m: %t\n", *threshold, near)
}

func handlePointToPolyline(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("point-to-polyline", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of point")
	lng := fs.Float64("lng", 0, "Longitude of point")
	polylineStr := fs.String("polyline", "", "Encoded route polyline")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-to-polyline --lat 28.6200 --lng 77.2260 --polyline \"encoded_string\"")
		os.Exit(1)
	}

	point := geo.Point{Latitude: *lat, Longitude: *lng}
	distance, err := geoUtils.PointToPolyline(point, geo.Polyline{EncodedPolyline: *polylineStr})
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}

	fmt.Printf("Point to polyline:\n")
	fmt.Printf("  Point: (%.6f, %.6f)\n", point.Latitude, point.Longitude)
	fmt.Printf("  Nearest vertex: %.2f meters\n", distance)
}

func handleFilterPoints(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("filter-points", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of center")
	lng := fs.Float64("lng", 0, "Longitude of center")
	points := fs.String("points", "", "Candidate points as lat,lng;lat,lng;...")
	radius := fs.Float64("radius", 300, "Radius in meters")

	fs.Parse(os.Args[2:])

	if *points == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils filter-points --lat 28.6129 --lng 77.2295 --points \"28.6140,77.2290;28.6315,77.2167\"")
		os.Exit(1)
	}

	candidates, err := parseCoordinatePairs(*points)
	if err != nil {
		log.Fatal(err)
	}

	center := geo.Point{Latitude: *lat, Longitude: *lng}
	within, err := geoUtils.FilterPointsByDistance(candidates, center, *radius)
	if err != nil {
		log.Fatalf("Error filtering points: %v", err)
	}

	fmt.Printf("%d of %d points within %.0f m of (%.6f, %.6f):\n", len(within), len(candidates), *radius, center.Latitude, center.Longitude)
	for _, p := range within {
		fmt.Printf("  (%.6f, %.6f)\n", p.Latitude, p.Longitude)
	}
}

func handleDecodePolyline(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	polylineStr := fs.String("polyline", "", "Encoded polyline string to decode")
	stride := fs.Int("stride", 10, "Show the facility search samples taken every Nth point")
	verbose := fs.Bool("verbose", false, "Show all decoded points")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"encoded_string\" --verbose")
		os.Exit(1)
	}

	points := geoUtils.DecodePolyline(*polylineStr)
	if len(points) == 0 {
		log.Fatal("Polyline is empty or malformed")
	}

	fmt.Printf("Polyline decoded successfully:\n")
	fmt.Printf("  Points: %d\n", len(points))
	fmt.Printf("  Start: (%.6f, %.6f)\n", points[0].Latitude, points[0].Longitude)
	fmt.Printf("  End: (%.6f, %.6f)\n", points[len(points)-1].Latitude, points[len(points)-1].Longitude)
	fmt.Printf("  Samples every %d: %d\n", *stride, len(geoUtils.SamplePoints(points, *stride)))

	if *verbose {
		fmt.Printf("  All points:\n")
		for i, point := range points {
			fmt.Printf("    %d: (%.6f, %.6f)\n", i+1, point.Latitude, point.Longitude)
		}
	}
}

func handleEnhance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("enhance", flag.ExitOnError)
	from := fs.String("from", "28.6129,77.2295", "Source lat,lng")
	to := fs.String("to", "28.6315,77.2167", "Destination lat,lng")
	seed := fs.Uint64("seed", 1, "Random seed")

	fs.Parse(os.Args[2:])

	ends, err := parseCoordinatePairs(*from + ";" + *to)
	if err != nil {
		log.Fatal(err)
	}

	enhancer := routing.NewEnhancer(routing.DefaultEnhancerConfig(), rand.New(rand.NewPCG(*seed, *seed)))
	points := enhancer.Enhance(ends[0], ends[1], ends)

	fmt.Printf("Synthesized route: %d points\n", len(points))
	for i, p := range points {
		fmt.Printf("  %2d: (%.6f, %.6f)\n", i+1, p.Latitude, p.Longitude)
	}
	fmt.Printf("Polyline: %s\n", geoUtils.EncodePolyline(points))
}

func routePoints(geoUtils geo.GeoUtils, polylineStr, route string) ([]geo.Point, error) {
	if polylineStr != "" {
		points := geoUtils.DecodePolyline(polylineStr)
		if len(points) == 0 {
			return nil, fmt.Errorf("polyline is empty or malformed")
		}
		return points, nil
	}
	return parseCoordinatePairs(route)
}

func printUsage() {
	fmt.Printf(`test-geo-utils - Geographic utility testing tool

USAGE:
    test-geo-utils <command> [options]

COMMANDS:
    point-distance      Calculate great-circle distance between two points
    near-route          Check whether a point is within a threshold of a route
    point-to-polyline   Distance from a point to the nearest vertex of a polyline
    filter-points       Keep the points within a radius of a center point
    decode-polyline     Decode Google polyline string to coordinates
    enhance             Synthesize a walking route between two points
    help                Show this help message

EXAMPLES:
    # India Gate to Connaught Place
    test-geo-utils point-distance --lat1 28.6129 --lng1 77.2295 --lat2 28.6315 --lng2 77.2167

    # Is a police station within 200 m of the route?
    test-geo-utils near-route --lat 28.6200 --lng 77.2260 --route "28.6129,77.2295;28.6239,77.2200"

    # Decode polyline to see coordinates
    test-geo-utils decode-polyline --polyline "encoded_string" --verbose
`)
}

// Helper function to parse coordinate pairs from string
func parseCoordinatePairs(coordStr string) ([]geo.Point, error) {
	if coordStr == "" {
		return nil, fmt.Errorf("empty coordinate string")
	}

	pairs := strings.Split(coordStr, ";")
	points := make([]geo.Point, 0, len(pairs))

	for _, pair := range pairs {
		coords := strings.Split(strings.TrimSpace(pair), ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("invalid coordinate pair: %s", pair)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude: %s", coords[0])
		}

		lng, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude: %s", coords[1])
		}

		points = append(points, geo.Point{Latitude: lat, Longitude: lng})
	}

	return points, nil
}
