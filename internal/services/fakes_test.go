package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shaktipath/safepath/server/internal/clients/google"
	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/routing"
	"github.com/shaktipath/safepath/server/internal/lib/safety"
	"github.com/shaktipath/safepath/server/internal/messaging"
	"github.com/shaktipath/safepath/server/internal/storage"
)

var (
	indiaGate  = geo.Location{Point: geo.Point{Latitude: 28.6129, Longitude: 77.2295}, Address: "India Gate"}
	janpathEnd = geo.Location{Point: geo.Point{Latitude: 28.6239, Longitude: 77.2295}}
)

// MockDirections is a mock implementation of Directions
type MockDirections struct {
	mock.Mock
}

func (m *MockDirections) ComputeWalkingRoute(ctx context.Context, origin, destination geo.Point) (*google.RouteData, error) {
	args := m.Called(ctx, origin, destination)
	data, _ := args.Get(0).(*google.RouteData)
	return data, args.Error(1)
}

// searchFunc adapts a function to facilities.PlaceSearcher
type searchFunc func(ctx context.Context, center geo.Point, radius float64, category facilities.Category) ([]facilities.Candidate, error)

func (f searchFunc) SearchNearby(ctx context.Context, center geo.Point, radius float64, category facilities.Category) ([]facilities.Candidate, error) {
	return f(ctx, center, radius, category)
}

// published is one event captured by recordingPublisher
type published struct {
	Type    string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Type: eventType, Payload: payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

var errStoreDown = errors.New("connection refused")

// failingStore is a repository whose writes fail; reads go to the embedded memory repository
type failingStore struct {
	*storage.MemoryRepository
	mu     sync.Mutex
	writes int
}

func (f *failingStore) SaveRoute(ctx context.Context, r *storage.RouteRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return errStoreDown
}

func (f *failingStore) SaveAlert(ctx context.Context, a *storage.EmergencyAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return errStoreDown
}

func (f *failingStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// failingPublisher counts publish attempts and fails every one
type failingPublisher struct {
	mu       sync.Mutex
	attempts int
}

func (p *failingPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	return errors.New("channel closed")
}

func (p *failingPublisher) Close() error { return nil }

func (p *failingPublisher) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// straightRoute returns n points heading north from indiaGate, about 111 m apart
func straightRoute(n int) []geo.Point {
	points := make([]geo.Point, n)
	for i := range points {
		points[i] = geo.Point{Latitude: indiaGate.Latitude + float64(i)*0.001, Longitude: indiaGate.Longitude}
	}
	return points
}

func routeData(polyline string) *google.RouteData {
	return &google.RouteData{
		DurationSeconds: 900,
		DistanceMeters:  1221,
		DistanceText:    "1.2 km",
		DurationText:    "15 mins",
		Polyline:        polyline,
		Steps: []google.Step{
			{Instruction: "Head north on Janpath", DistanceText: "1.2 km", DurationText: "15 mins",
				Start: indiaGate.Point, End: janpathEnd.Point},
		},
	}
}

type testRoutes struct {
	service    *RoutesService
	directions *MockDirections
	store      *storage.MemoryRepository
	publisher  *recordingPublisher
}

// newTestRoutes wires a RoutesService with deterministic randomness and a noon clock
func newTestRoutes(newPlaces func() (facilities.PlaceSearcher, error)) *testRoutes {
	store := storage.NewMemoryRepository()
	publisher := &recordingPublisher{}
	tr := newTestRoutesWith(newPlaces, store, publisher)
	tr.store = store
	tr.publisher = publisher
	return tr
}

// newTestRoutesWith is newTestRoutes with caller supplied persistence and events
func newTestRoutesWith(newPlaces func() (facilities.PlaceSearcher, error), store storage.RouteStore, publisher messaging.Publisher) *testRoutes {
	directions := &MockDirections{}
	noon := func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }

	service := NewRoutesService(RoutesDeps{
		Directions: directions,
		NewPlaces:  newPlaces,
		Enhancer:   routing.NewEnhancer(routing.DefaultEnhancerConfig(), rand.New(rand.NewPCG(1, 2))),
		Simulator:  safety.NewSimulator(rand.New(rand.NewPCG(3, 4))),
		Scorer:     safety.NewScorer(time.UTC, noon),
		Store:      store,
		Publisher:  publisher,
	}, RoutesConfig{
		Locator:        facilities.DefaultOptions(),
		PersistTimeout: time.Second,
	})

	return &testRoutes{service: service, directions: directions}
}

func staticPlaces(s facilities.PlaceSearcher) func() (facilities.PlaceSearcher, error) {
	return func() (facilities.PlaceSearcher, error) { return s, nil }
}
