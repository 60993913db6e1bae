package main

import (
	"context"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/dpup/prefab"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/shaktipath/safepath/server/internal/auth"
	"github.com/shaktipath/safepath/server/internal/cache"
	"github.com/shaktipath/safepath/server/internal/clients/google"
	"github.com/shaktipath/safepath/server/internal/clients/opencage"
	"github.com/shaktipath/safepath/server/internal/config"
	"github.com/shaktipath/safepath/server/internal/httpapi"
	"github.com/shaktipath/safepath/server/internal/lib/briefing"
	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/routing"
	"github.com/shaktipath/safepath/server/internal/lib/safety"
	"github.com/shaktipath/safepath/server/internal/lib/sos"
	"github.com/shaktipath/safepath/server/internal/messaging"
	"github.com/shaktipath/safepath/server/internal/services"
	"github.com/shaktipath/safepath/server/internal/storage"
)

func main() {
	ctx := context.Background()

	// Load configuration using Prefab's config system
	appConfig, err := config.Load(prefab.Config)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	location, _ := appConfig.Safety.Location()

	repo, closeRepo := openRepository(ctx, appConfig.Storage)
	defer closeRepo()

	publisher := openPublisher(appConfig.Messaging)
	defer publisher.Close()

	// Shared in-memory cache for nearby searches and briefings
	cacheInstance := cache.NewCache()
	cacheInstance.StartPeriodicCleanup(ctx, 10*time.Minute)

	routesService := services.NewRoutesService(services.RoutesDeps{
		Directions: google.NewClient(appConfig.Google.APIKey),
		NewPlaces: func() (facilities.PlaceSearcher, error) {
			places := google.NewPlacesClient(appConfig.Google.APIKey)
			return cache.NewPlaceSearchCache(places, cacheInstance, appConfig.Google.PlacesCacheTTL), nil
		},
		Enhancer:  routing.NewEnhancer(routing.DefaultEnhancerConfig(), rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))),
		Simulator: safety.NewSimulator(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))),
		Scorer:    safety.NewScorer(location, time.Now),
		Store:     repo,
		Publisher: publisher,
	}, services.RoutesConfig{
		Locator:        appConfig.Safety.LocatorOptions(),
		HistoryLimit:   appConfig.Safety.HistoryLimit,
		PersistTimeout: appConfig.Safety.PersistTimeout,
		SessionTTL:     appConfig.Safety.SessionTTL,
	})
	defer routesService.Wait()
	routesService.StartPeriodicPrune(ctx, time.Hour)

	var geocoder services.ReverseGeocoder
	if appConfig.OpenCage.APIKey != "" {
		geocoder = opencage.NewClient(appConfig.OpenCage.APIKey)
	} else {
		log.Printf("OpenCage API key not set, addresses fall back to coordinates")
	}
	geocodeService := services.NewGeocodeService(geocoder, google.NewPlacesClient(appConfig.Google.APIKey))

	emergencyService := services.NewEmergencyService(geocodeService, repo, repo,
		sos.NewComposer(location, time.Now), publisher)

	var briefer briefing.Briefer
	if appConfig.Briefing.OpenAIAPIKey != "" {
		briefer = briefing.NewCachedBriefer(
			briefing.NewBriefer(appConfig.Briefing.OpenAIAPIKey, appConfig.Briefing.Model),
			cache.NewBriefingCacheAdapter(cacheInstance),
			appConfig.Briefing.CacheTTL)
		log.Printf("Route briefings enabled (model: %s)", appConfig.Briefing.Model)
	}
	briefingService := services.NewBriefingService(routesService, briefer)

	apiServer := httpapi.NewServer(routesService, emergencyService, geocodeService, briefingService,
		auth.NewVerifier(appConfig.Auth.JWTSecret, appConfig.Auth.Issuer, appConfig.Auth.Audience))
	apiHandler := apiServer.Handler()

	log.Printf("SafePath API server starting")

	// Server configuration (port, etc.) is loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc(httpapi.PathPrefix, apiHandler.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server.ServiceRegistrar(), healthServer)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	healthServer.Shutdown()
}

// openRepository uses PostgreSQL when a database URL is configured and memory otherwise
func openRepository(ctx context.Context, cfg config.StorageConfig) (storage.Repository, func()) {
	if cfg.DatabaseURL == "" {
		log.Printf("No database configured, route history is kept in memory")
		return storage.NewMemoryRepository(), func() {}
	}

	pool, err := storage.Connect(ctx, cfg.DatabaseURL, cfg.MaxConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	repo := storage.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	return repo, pool.Close
}

// openPublisher uses RabbitMQ when a broker URL is configured and logs events otherwise
func openPublisher(cfg config.MessagingConfig) messaging.Publisher {
	if cfg.AMQPURL == "" {
		log.Printf("No message broker configured, events are logged")
		return messaging.NewLogPublisher()
	}

	rmq, err := messaging.NewRabbitMQ(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	return rmq
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(strings.TrimSpace(homepage)))
}

const homepage = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>SafePath API</title>
    <style>
        body { font-family: 'Courier New', Consolas, monospace; padding: 20px; line-height: 1.4; }
        .header { font-weight: bold; }
    </style>
</head>
<body>
<pre>
<span class="header">SafePath API</span>

Walking routes scored for safety: hospitals, police stations and liquor
shops along the way, lighting and CCTV cover, and an SOS link for your
emergency contact.

<span class="header">Public endpoints:</span>
  GET  /api/v1/places/search?q=&amp;lat=&amp;lng=   - Place autocomplete
  GET  /api/v1/geocode/reverse?lat=&amp;lng=     - Address for a coordinate

<span class="header">Authenticated endpoints (Bearer token):</span>
  POST /api/v1/routes                      - Compute a safe walking route
  GET  /api/v1/routes?limit=               - Route history, newest first
  GET  /api/v1/routes/current              - Latest computed route
  GET  /api/v1/routes/{id}                 - One saved route
  GET  /api/v1/routes/{id}/kml             - KML export
  GET  /api/v1/routes/{id}/briefing        - Safety briefing
  POST /api/v1/sos                         - Raise an SOS
  GET  /api/v1/profile                     - Profile
  PUT  /api/v1/profile                     - Update profile
</pre>
</body>
</html>
`
