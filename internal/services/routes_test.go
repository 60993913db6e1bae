package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaktipath/safepath/server/internal/clients/google"
	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/messaging"
	"github.com/shaktipath/safepath/server/internal/storage"
)

func hospitalNearRoute(route []geo.Point) searchFunc {
	return func(ctx context.Context, center geo.Point, radius float64, category facilities.Category) ([]facilities.Candidate, error) {
		if category != facilities.Hospital {
			return nil, nil
		}
		return []facilities.Candidate{{ID: "h1", Name: "Dr. Ram Manohar Lohia Hospital", Location: route[5]}}, nil
	}
}

func TestComputeRoute_Success(t *testing.T) {
	route := straightRoute(12)
	tr := newTestRoutes(staticPlaces(hospitalNearRoute(route)))
	tr.directions.On("ComputeWalkingRoute", mock.Anything, indiaGate.Point, janpathEnd.Point).
		Return(routeData(geo.EncodePolyline(route)), nil)

	src, dst := indiaGate, janpathEnd
	result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})
	tr.service.Wait()

	require.NoError(t, result.Err)
	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, []State{StateIdle, StateDecoding, StateEnhancing, StateLocatingFacilities, StateScoring, StateComplete}, result.Trace)

	r := result.Route
	require.NotNil(t, r)
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Len(t, r.Coordinates, 12)
	assert.Equal(t, "1.2 km", r.Distance)
	assert.Equal(t, "15 mins", r.Duration)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "Head north on Janpath", r.Steps[0].Instruction)
	assert.False(t, r.Assessment.Degraded)
	// Every sample finds the same hospital, deduplicated to one
	require.Len(t, r.Assessment.Facilities.Hospitals, 1)
	assert.Empty(t, r.Assessment.Facilities.PoliceStations)

	current, ok := tr.service.CurrentRoute("user-1")
	require.True(t, ok)
	assert.Equal(t, r.ID, current.ID)

	history, err := tr.service.ListHistory(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, r.ID, history[0].ID)

	events := tr.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, messaging.RouteComputedEvent, events[0].Type)
	assert.Equal(t, r.ID.String(), events[0].Payload.(messaging.RouteComputed).RouteID)
}

func TestComputeRoute_MissingEndpoint(t *testing.T) {
	tr := newTestRoutes(staticPlaces(hospitalNearRoute(straightRoute(12))))

	src := indiaGate
	result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src})

	assert.ErrorIs(t, result.Err, ErrMissingEndpoint)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, []State{StateIdle, StateFailed}, result.Trace)
	tr.directions.AssertNotCalled(t, "ComputeWalkingRoute", mock.Anything, mock.Anything, mock.Anything)
}

func TestComputeRoute_InvalidEndpoint(t *testing.T) {
	tr := newTestRoutes(staticPlaces(hospitalNearRoute(straightRoute(12))))

	src := indiaGate
	dst := geo.Location{Point: geo.Point{Latitude: 95, Longitude: 77}}
	result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})

	assert.ErrorIs(t, result.Err, ErrInvalidEndpoint)
}

func TestComputeRoute_DirectionsFailure(t *testing.T) {
	tr := newTestRoutes(staticPlaces(hospitalNearRoute(straightRoute(12))))
	tr.directions.On("ComputeWalkingRoute", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, google.ErrNoRoute)

	src, dst := indiaGate, janpathEnd
	result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})
	tr.service.Wait()

	assert.ErrorIs(t, result.Err, ErrNoRoute)
	assert.Nil(t, result.Route)
	assert.Equal(t, []State{StateIdle, StateDecoding, StateFailed}, result.Trace)

	_, ok := tr.service.CurrentRoute("user-1")
	assert.False(t, ok)
	history, err := tr.service.ListHistory(context.Background(), "user-1", 5)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, tr.publisher.Events())
}

func TestComputeRoute_EmptyPolylineFallsBackToEnhancedSegment(t *testing.T) {
	tr := newTestRoutes(staticPlaces(searchFunc(func(context.Context, geo.Point, float64, facilities.Category) ([]facilities.Candidate, error) {
		return nil, nil
	})))
	tr.directions.On("ComputeWalkingRoute", mock.Anything, mock.Anything, mock.Anything).
		Return(routeData(""), nil)

	src, dst := indiaGate, janpathEnd
	result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})

	require.NoError(t, result.Err)
	coords := result.Route.Coordinates
	require.Len(t, coords, 15)
	assert.Equal(t, indiaGate.Point, coords[0])
	assert.Equal(t, janpathEnd.Point, coords[14])
}

func TestComputeRoute_PlacesInitFailureDegrades(t *testing.T) {
	var inits atomic.Int32
	tr := newTestRoutes(func() (facilities.PlaceSearcher, error) {
		inits.Add(1)
		return nil, errors.New("places API key missing")
	})
	tr.directions.On("ComputeWalkingRoute", mock.Anything, mock.Anything, mock.Anything).
		Return(routeData(geo.EncodePolyline(straightRoute(12))), nil)

	src, dst := indiaGate, janpathEnd
	for i := 0; i < 2; i++ {
		result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})
		require.NoError(t, result.Err)
		assert.Equal(t, StateComplete, result.State)
		assert.True(t, result.Route.Assessment.Degraded)
		assert.Equal(t, 70, result.Route.Assessment.OverallScore)
	}
	assert.Equal(t, int32(1), inits.Load())
}

func TestComputeRoute_AllSearchesFailDegrades(t *testing.T) {
	tr := newTestRoutes(staticPlaces(searchFunc(func(context.Context, geo.Point, float64, facilities.Category) ([]facilities.Candidate, error) {
		return nil, errors.New("quota exhausted")
	})))
	tr.directions.On("ComputeWalkingRoute", mock.Anything, mock.Anything, mock.Anything).
		Return(routeData(geo.EncodePolyline(straightRoute(12))), nil)

	src, dst := indiaGate, janpathEnd
	result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})

	require.NoError(t, result.Err)
	assert.True(t, result.Route.Assessment.Degraded)
}

func TestComputeRoute_LastRequestWins(t *testing.T) {
	route := straightRoute(12)
	tr := newTestRoutes(staticPlaces(hospitalNearRoute(route)))

	started := make(chan struct{})
	release := make(chan struct{})
	first := geo.Location{Point: geo.Point{Latitude: 28.60, Longitude: 77.20}}
	tr.directions.On("ComputeWalkingRoute", mock.Anything, first.Point, janpathEnd.Point).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(routeData(geo.EncodePolyline(route)), nil)
	tr.directions.On("ComputeWalkingRoute", mock.Anything, indiaGate.Point, janpathEnd.Point).
		Return(routeData(geo.EncodePolyline(route)), nil)

	dst := janpathEnd
	var stale RouteResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		stale = tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &first, Destination: &dst})
	}()
	<-started

	src := indiaGate
	fresh := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})
	require.NoError(t, fresh.Err)

	close(release)
	wg.Wait()
	tr.service.Wait()

	assert.ErrorIs(t, stale.Err, ErrSuperseded)
	assert.Equal(t, StateFailed, stale.State)
	assert.Nil(t, stale.Route)

	current, ok := tr.service.CurrentRoute("user-1")
	require.True(t, ok)
	assert.Equal(t, fresh.Route.ID, current.ID)

	history, err := tr.service.ListHistory(context.Background(), "user-1", 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, fresh.Route.ID, history[0].ID)
}

func TestComputeRoute_UsersDoNotSupersedeEachOther(t *testing.T) {
	route := straightRoute(12)
	tr := newTestRoutes(staticPlaces(hospitalNearRoute(route)))
	tr.directions.On("ComputeWalkingRoute", mock.Anything, mock.Anything, mock.Anything).
		Return(routeData(geo.EncodePolyline(route)), nil)

	src, dst := indiaGate, janpathEnd
	a := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-a", Source: &src, Destination: &dst})
	b := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-b", Source: &src, Destination: &dst})
	tr.service.Wait()

	require.NoError(t, a.Err)
	require.NoError(t, b.Err)

	_, err := tr.service.GetRoute(context.Background(), "user-b", a.Route.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := tr.service.GetRoute(context.Background(), "user-a", a.Route.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Route.ID, got.ID)
}

func TestComputeRoute_PersistenceFailureIsNotSurfaced(t *testing.T) {
	route := straightRoute(12)
	store := &failingStore{MemoryRepository: storage.NewMemoryRepository()}
	publisher := &failingPublisher{}
	tr := newTestRoutesWith(staticPlaces(hospitalNearRoute(route)), store, publisher)
	tr.directions.On("ComputeWalkingRoute", mock.Anything, indiaGate.Point, janpathEnd.Point).
		Return(routeData(geo.EncodePolyline(route)), nil)

	src, dst := indiaGate, janpathEnd
	result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})
	tr.service.Wait()

	require.NoError(t, result.Err)
	assert.Equal(t, StateComplete, result.State)
	require.NotNil(t, result.Route)
	assert.Equal(t, 1, store.Writes())
	assert.Equal(t, 1, publisher.Attempts())

	current, ok := tr.service.CurrentRoute("user-1")
	require.True(t, ok)
	assert.Equal(t, result.Route.ID, current.ID)

	history, err := tr.service.ListHistory(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestComputeRoute_MissingPlacesFactoryDegrades(t *testing.T) {
	tr := newTestRoutesWith(nil, storage.NewMemoryRepository(), &recordingPublisher{})
	tr.directions.On("ComputeWalkingRoute", mock.Anything, mock.Anything, mock.Anything).
		Return(routeData(geo.EncodePolyline(straightRoute(12))), nil)

	src, dst := indiaGate, janpathEnd
	var result RouteResult
	require.NotPanics(t, func() {
		result = tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})
	})
	tr.service.Wait()

	require.NoError(t, result.Err)
	assert.Equal(t, StateComplete, result.State)
	assert.True(t, result.Route.Assessment.Degraded)
	assert.Equal(t, 70, result.Route.Assessment.OverallScore)
}

func TestPruneIdle_ForgetsIdleUsers(t *testing.T) {
	route := straightRoute(12)
	tr := newTestRoutes(staticPlaces(hospitalNearRoute(route)))
	tr.directions.On("ComputeWalkingRoute", mock.Anything, mock.Anything, mock.Anything).
		Return(routeData(geo.EncodePolyline(route)), nil)

	clock := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	tr.service.now = func() time.Time { return clock }

	src, dst := indiaGate, janpathEnd
	result := tr.service.ComputeRoute(context.Background(), RouteRequest{UserID: "user-1", Source: &src, Destination: &dst})
	tr.service.Wait()
	require.NoError(t, result.Err)

	clock = clock.Add(time.Hour)
	assert.Equal(t, 0, tr.service.PruneIdle())
	_, ok := tr.service.CurrentRoute("user-1")
	assert.True(t, ok)

	clock = clock.Add(24 * time.Hour)
	assert.Equal(t, 1, tr.service.PruneIdle())
	_, ok = tr.service.CurrentRoute("user-1")
	assert.False(t, ok)
}

func TestPruneIdle_KeepsUsersWithRequestInFlight(t *testing.T) {
	tr := newTestRoutes(staticPlaces(searchFunc(func(context.Context, geo.Point, float64, facilities.Category) ([]facilities.Candidate, error) {
		return nil, nil
	})))

	clock := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	tr.service.now = func() time.Time { return clock }

	seq := tr.service.begin("user-1")
	clock = clock.Add(48 * time.Hour)
	assert.Equal(t, 0, tr.service.PruneIdle())

	record := &storage.RouteRecord{ID: uuid.New(), UserID: "user-1"}
	assert.True(t, tr.service.finish("user-1", seq, record))
	current, ok := tr.service.CurrentRoute("user-1")
	require.True(t, ok)
	assert.Equal(t, record.ID, current.ID)
}
