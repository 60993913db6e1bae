package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

type MockPlaceSearcher struct {
	mock.Mock
}

func (m *MockPlaceSearcher) SearchNearby(ctx context.Context, center geo.Point, radius float64, category facilities.Category) ([]facilities.Candidate, error) {
	args := m.Called(ctx, center, radius, category)
	candidates, _ := args.Get(0).([]facilities.Candidate)
	return candidates, args.Error(1)
}

var (
	indiaGate = geo.Point{Latitude: 28.61294, Longitude: 77.22953}
	hospitals = []facilities.Candidate{{ID: "h1", Name: "RML Hospital", Location: geo.Point{Latitude: 28.6256, Longitude: 77.2013}}}
)

func TestPlaceKey(t *testing.T) {
	key := PlaceKey(indiaGate, 300, facilities.Hospital)
	assert.Regexp(t, `^places:hospital:[0-9b-hjkmnp-z]{8}:300$`, key)

	// A few meters away stays in the same cell
	nearby := geo.Point{Latitude: 28.61295, Longitude: 77.22954}
	assert.Equal(t, key, PlaceKey(nearby, 300, facilities.Hospital))

	assert.NotEqual(t, key, PlaceKey(indiaGate, 300, facilities.Police))
	assert.NotEqual(t, key, PlaceKey(indiaGate, 500, facilities.Hospital))
	assert.NotEqual(t, key, PlaceKey(geo.Point{Latitude: 28.62495, Longitude: 77.22015}, 300, facilities.Hospital))
}

func TestPlaceSearchCache_HitAvoidsUpstream(t *testing.T) {
	upstream := &MockPlaceSearcher{}
	upstream.On("SearchNearby", mock.Anything, indiaGate, 300.0, facilities.Hospital).Return(hospitals, nil).Once()

	searcher := NewPlaceSearchCache(upstream, NewCache(), time.Hour)

	first, err := searcher.SearchNearby(context.Background(), indiaGate, 300, facilities.Hospital)
	require.NoError(t, err)
	second, err := searcher.SearchNearby(context.Background(), indiaGate, 300, facilities.Hospital)
	require.NoError(t, err)

	assert.Equal(t, hospitals, first)
	assert.Equal(t, hospitals, second)
	upstream.AssertExpectations(t)
}

func TestPlaceSearchCache_ErrorsNotCached(t *testing.T) {
	upstream := &MockPlaceSearcher{}
	upstream.On("SearchNearby", mock.Anything, indiaGate, 300.0, facilities.Police).Return(nil, errors.New("API error 500: boom")).Twice()

	c := NewCache()
	searcher := NewPlaceSearchCache(upstream, c, time.Hour)

	for i := 0; i < 2; i++ {
		_, err := searcher.SearchNearby(context.Background(), indiaGate, 300, facilities.Police)
		assert.Error(t, err)
	}
	assert.Equal(t, 0, c.Stats().TotalEntries)
	upstream.AssertExpectations(t)
}

// blockingSearcher counts calls and blocks until released
type blockingSearcher struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (b *blockingSearcher) SearchNearby(ctx context.Context, center geo.Point, radius float64, category facilities.Category) ([]facilities.Candidate, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.started)
	}
	select {
	case <-b.release:
		return hospitals, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingSearcher) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestPlaceSearchCache_CoalescesConcurrentSearches(t *testing.T) {
	upstream := &blockingSearcher{started: make(chan struct{}), release: make(chan struct{})}
	searcher := NewPlaceSearchCache(upstream, NewCache(), time.Hour)

	const callers = 5
	var wg sync.WaitGroup
	results := make([][]facilities.Candidate, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = searcher.SearchNearby(context.Background(), indiaGate, 300, facilities.Hospital)
	}()
	<-upstream.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = searcher.SearchNearby(context.Background(), indiaGate, 300, facilities.Hospital)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	assert.Equal(t, 1, upstream.Calls())
	for _, r := range results {
		assert.Equal(t, hospitals, r)
	}
}

func TestPlaceSearchCache_CorruptEntryEvicted(t *testing.T) {
	upstream := &MockPlaceSearcher{}
	upstream.On("SearchNearby", mock.Anything, indiaGate, 300.0, facilities.Liquor).Return(hospitals, nil).Once()

	c := NewCache()
	key := PlaceKey(indiaGate, 300, facilities.Liquor)
	require.NoError(t, c.Set(key, "not a candidate list", time.Hour, "places"))

	searcher := NewPlaceSearchCache(upstream, c, time.Hour)
	got, err := searcher.SearchNearby(context.Background(), indiaGate, 300, facilities.Liquor)
	require.NoError(t, err)
	assert.Equal(t, hospitals, got)

	var cached []facilities.Candidate
	found, err := c.Get(key, &cached)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, hospitals, cached)
	upstream.AssertExpectations(t)
}

func TestPlaceSearchCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	upstream := &blockingSearcher{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCache()
	searcher := NewPlaceSearchCache(upstream, c, time.Hour)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := searcher.SearchNearby(firstCtx, indiaGate, 300, facilities.Police)
		firstErr <- err
	}()
	<-upstream.started

	type result struct {
		candidates []facilities.Candidate
		err        error
	}
	second := make(chan result, 1)
	go func() {
		candidates, err := searcher.SearchNearby(context.Background(), indiaGate, 300, facilities.Police)
		second <- result{candidates, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(upstream.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, hospitals, got.candidates)
	assert.Equal(t, 1, upstream.Calls())

	var cached []facilities.Candidate
	found, err := c.Get(PlaceKey(indiaGate, 300, facilities.Police), &cached)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestPlaceSearchCache_CallerDeadlineBoundsWait(t *testing.T) {
	upstream := &blockingSearcher{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCache()
	searcher := NewPlaceSearchCache(upstream, c, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := searcher.SearchNearby(ctx, indiaGate, 300, facilities.Hospital)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The detached search still completes and fills the cache
	close(upstream.release)
	assert.Eventually(t, func() bool {
		var cached []facilities.Candidate
		found, _ := c.Get(PlaceKey(indiaGate, 300, facilities.Hospital), &cached)
		return found
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, upstream.Calls())
}
