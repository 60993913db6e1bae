package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/shaktipath/safepath/server/internal/clients/google"
	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/routing"
	"github.com/shaktipath/safepath/server/internal/lib/safety"
	"github.com/shaktipath/safepath/server/internal/messaging"
	"github.com/shaktipath/safepath/server/internal/services"
	"github.com/shaktipath/safepath/server/internal/storage"
)

func main() {
	var (
		apiKey    = flag.String("api-key", "", "Google API key (or set GOOGLE_API_KEY env var)")
		originStr = flag.String("origin", "28.612900,77.229500", "Origin coordinates (lat,lng)")
		destStr   = flag.String("dest", "28.631500,77.216700", "Destination coordinates (lat,lng)")
		zone      = flag.String("tz", "Asia/Kolkata", "Time zone for the night travel rule")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Route Safety Test Tool\n\n")
		fmt.Printf("Runs the full walking route safety pipeline against the live Google APIs.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -api-key=YOUR_KEY\n", os.Args[0])
		fmt.Printf("  %s -origin=\"19.0760,72.8777\" -dest=\"19.0896,72.8656\"\n", os.Args[0])
		return
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		log.Fatal("Google API key required. Use -api-key flag or GOOGLE_API_KEY env var")
	}

	origin, err := parsePoint(*originStr)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	dest, err := parsePoint(*destStr)
	if err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}
	loc, err := time.LoadLocation(*zone)
	if err != nil {
		log.Fatalf("Invalid time zone: %v", err)
	}

	fmt.Printf("Route Safety Test\n")
	fmt.Printf("=================\n")
	fmt.Printf("Origin: %.6f, %.6f\n", origin.Latitude, origin.Longitude)
	fmt.Printf("Destination: %.6f, %.6f\n", dest.Latitude, dest.Longitude)
	fmt.Printf("API Key: %s...\n\n", key[:min(len(key), 10)])

	routes := services.NewRoutesService(services.RoutesDeps{
		Directions: google.NewClient(key),
		NewPlaces: func() (facilities.PlaceSearcher, error) {
			return google.NewPlacesClient(key), nil
		},
		Enhancer:  routing.NewEnhancer(routing.DefaultEnhancerConfig(), rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))),
		Simulator: safety.NewSimulator(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))),
		Scorer:    safety.NewScorer(loc, time.Now),
		Store:     storage.NewMemoryRepository(),
		Publisher: messaging.NewLogPublisher(),
	}, services.RoutesConfig{Locator: facilities.DefaultOptions()})

	start := time.Now()
	result := routes.ComputeRoute(context.Background(), services.RouteRequest{
		UserID:      "cli",
		Source:      &geo.Location{Point: origin},
		Destination: &geo.Location{Point: dest},
	})
	routes.Wait()

	fmt.Printf("States: %v\n", result.Trace)
	if result.Err != nil {
		log.Fatalf("Route computation failed: %v", result.Err)
	}

	r := result.Route
	a := r.Assessment
	fmt.Printf("Computed in %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Distance: %s, Duration: %s, Points: %d, Steps: %d\n", r.Distance, r.Duration, len(r.Coordinates), len(r.Steps))
	fmt.Printf("\nRisk: %s  Overall: %d/100  Degraded: %v\n", a.RiskLevel, a.OverallScore, a.Degraded)
	fmt.Printf("  Street lights:   %3d\n", a.Subscores.StreetLights)
	fmt.Printf("  CCTV density:    %3d\n", a.Subscores.CCTVDensity)
	fmt.Printf("  Police stations: %3d\n", a.Subscores.PoliceStations)
	fmt.Printf("  Crowd level:     %3d\n", a.Subscores.CrowdLevel)
	fmt.Printf("  Alcohol shops:   %3d\n", a.Subscores.AlcoholShops)

	printFacilities("Hospitals", a.Facilities.Hospitals)
	printFacilities("Police stations", a.Facilities.PoliceStations)
	printFacilities("Liquor shops", a.Facilities.LiquorShops)

	if len(a.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range a.Warnings {
			fmt.Printf("  ⚠️  %s\n", w)
		}
	}
}

func printFacilities(title string, list []facilities.Facility) {
	fmt.Printf("\n%s (%d):\n", title, len(list))
	for _, f := range list {
		fmt.Printf("  %-40s %4.0f m\n", f.Name, f.DistanceFromRoute)
	}
}

func parsePoint(s string) (geo.Point, error) {
	var lat, lng float64
	if _, err := fmt.Sscanf(s, "%f,%f", &lat, &lng); err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lng)
}
