package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shaktipath/safepath/server/internal/cache"
	"github.com/shaktipath/safepath/server/internal/clients/google"
	"github.com/shaktipath/safepath/server/internal/clients/opencage"
	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

func main() {
	var (
		apiKey      = flag.String("api-key", "", "Google API key (or set GOOGLE_API_KEY env var)")
		openCageKey = flag.String("opencage-key", "", "OpenCage API key (or set OPENCAGE_API_KEY env var)")
		at          = flag.String("at", "28.632800,77.219600", "Search center (lat,lng)")
		radius      = flag.Float64("radius", 300, "Nearby search radius in meters")
		category    = flag.String("category", "", "Only search one category: hospital, police or liquor")
		query       = flag.String("query", "", "Also run a text search for this query")
	)
	flag.Parse()

	key := *apiKey
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		log.Fatal("Google API key required. Use -api-key flag or GOOGLE_API_KEY env var")
	}

	var lat, lng float64
	if _, err := fmt.Sscanf(*at, "%f,%f", &lat, &lng); err != nil {
		log.Fatalf("Invalid coordinates: %v", err)
	}
	center, err := geo.NewPoint(lat, lng)
	if err != nil {
		log.Fatalf("Invalid coordinates: %v", err)
	}

	categories := facilities.Categories
	if *category != "" {
		c, err := facilities.ParseCategory(*category)
		if err != nil {
			log.Fatal(err)
		}
		categories = []facilities.Category{c}
	}

	ctx := context.Background()
	places := google.NewPlacesClient(key)

	// Search twice through the cache to show the second call is served locally
	cacheInstance := cache.NewCache()
	cached := cache.NewPlaceSearchCache(places, cacheInstance, time.Hour)

	fmt.Printf("Google Places Test\n")
	fmt.Printf("==================\n")
	fmt.Printf("Center: %.6f, %.6f  Radius: %.0f m\n", center.Latitude, center.Longitude, *radius)

	for _, c := range categories {
		for attempt := 1; attempt <= 2; attempt++ {
			start := time.Now()
			candidates, err := cached.SearchNearby(ctx, center, *radius, c)
			if err != nil {
				log.Fatalf("Nearby search for %s failed: %v", c, err)
			}
			fmt.Printf("\n%s (attempt %d, %v): %d results\n", c, attempt, time.Since(start).Round(time.Millisecond), len(candidates))
			if attempt == 2 {
				continue
			}
			for _, cand := range candidates {
				fmt.Printf("  %-40s %6.0f m\n", cand.Name, geo.DistanceMeters(center, cand.Location))
			}
		}
	}

	stats := cacheInstance.Stats()
	fmt.Printf("\nCache: %d entries, %d hits, %d misses\n", stats.TotalEntries, stats.Hits, stats.Misses)

	if *query != "" {
		results, err := places.SearchText(ctx, *query, &center)
		if err != nil {
			log.Fatalf("Text search failed: %v", err)
		}
		fmt.Printf("\nText search %q: %d results\n", *query, len(results))
		for _, p := range results {
			fmt.Printf("  %s\n    %s\n", p.Name, p.Address)
		}
	}

	ocKey := *openCageKey
	if ocKey == "" {
		ocKey = os.Getenv("OPENCAGE_API_KEY")
	}
	if ocKey != "" {
		address, err := opencage.NewClient(ocKey).ReverseGeocode(ctx, center)
		if err != nil {
			log.Fatalf("Reverse geocoding failed: %v", err)
		}
		fmt.Printf("\nAddress: %s\n", address)
	}
}
