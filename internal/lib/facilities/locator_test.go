package facilities

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// MockPlaceSearcher is a mock implementation of PlaceSearcher
type MockPlaceSearcher struct {
	mock.Mock
}

func (m *MockPlaceSearcher) SearchNearby(ctx context.Context, center geo.Point, radiusMeters float64, category Category) ([]Candidate, error) {
	args := m.Called(ctx, center, radiusMeters, category)
	candidates, _ := args.Get(0).([]Candidate)
	return candidates, args.Error(1)
}

// stubSearcher answers by sample point, optionally delaying or failing
type stubSearcher struct {
	mu      sync.Mutex
	results map[geo.Point][]Candidate
	delays  map[geo.Point]time.Duration
	fail    map[geo.Point]bool
	block   map[geo.Point]bool
	calls   []geo.Point
}

func (s *stubSearcher) SearchNearby(ctx context.Context, center geo.Point, radiusMeters float64, category Category) ([]Candidate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, center)
	s.mu.Unlock()

	if s.block[center] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d := s.delays[center]; d > 0 {
		time.Sleep(d)
	}
	if s.fail[center] {
		return nil, errors.New("places unavailable")
	}
	return s.results[center], nil
}

// northRoute returns 31 points heading north from 28.6000,77.2000 spaced ~55m apart
func northRoute() []geo.Point {
	route := make([]geo.Point, 31)
	for i := range route {
		route[i] = geo.Point{Latitude: 28.6000 + 0.0005*float64(i), Longitude: 77.2000}
	}
	return route
}

var (
	clinicA     = Candidate{ID: "a", Name: "City Clinic", Location: geo.Point{Latitude: 28.6010, Longitude: 77.2010}}          // ~98m
	clinicAEcho = Candidate{ID: "a2", Name: "City Clinic (annex)", Location: geo.Point{Latitude: 28.6012, Longitude: 77.2010}} // 22m from A
	farClinic   = Candidate{ID: "c", Name: "Far Clinic", Location: geo.Point{Latitude: 28.6050, Longitude: 77.2035}}           // ~342m
	roadClinic  = Candidate{ID: "d", Name: "Roadside Clinic", Location: geo.Point{Latitude: 28.6100, Longitude: 77.1995}}      // ~49m
	northClinic = Candidate{ID: "e", Name: "North Clinic", Location: geo.Point{Latitude: 28.6140, Longitude: 77.2015}}         // ~146m
)

func TestLocate_FiltersDedupsAndSorts(t *testing.T) {
	route := northRoute()
	searcher := &stubSearcher{
		results: map[geo.Point][]Candidate{
			route[0]:  {clinicA, farClinic},
			route[10]: {clinicAEcho, roadClinic},
			route[20]: {roadClinic},
			route[30]: {northClinic},
		},
	}

	locator := NewLocator(searcher, DefaultOptions())
	found := locator.Locate(context.Background(), route, Hospital)

	require.Len(t, found, 3)
	assert.Equal(t, "Roadside Clinic", found[0].Name)
	assert.Equal(t, 49.0, found[0].DistanceFromRoute)
	assert.Equal(t, "City Clinic", found[1].Name)
	assert.Equal(t, 98.0, found[1].DistanceFromRoute)
	assert.Equal(t, "North Clinic", found[2].Name)
	assert.Equal(t, 146.0, found[2].DistanceFromRoute)

	for _, f := range found {
		assert.Equal(t, Hospital, f.Category)
	}

	// Samples at stride 10 over 31 points: 0, 10, 20, 30
	assert.Len(t, searcher.calls, 4)
}

func TestLocate_LastPointSampledWhenStrideSkipsIt(t *testing.T) {
	route := northRoute()[:26]
	searcher := &stubSearcher{
		results: map[geo.Point][]Candidate{
			route[25]: {{Name: "Terminal Police Post", Location: geo.Point{Latitude: 28.6125, Longitude: 77.2005}}},
		},
	}

	found := NewLocator(searcher, DefaultOptions()).Locate(context.Background(), route, Police)

	require.Len(t, found, 1)
	assert.Equal(t, "Terminal Police Post", found[0].Name)
	assert.Contains(t, searcher.calls, route[25])
}

func TestLocate_SampleFailuresAreIsolated(t *testing.T) {
	route := northRoute()
	searcher := &stubSearcher{
		results: map[geo.Point][]Candidate{
			route[0]:  {clinicA},
			route[20]: {roadClinic},
		},
		fail: map[geo.Point]bool{route[20]: true},
	}

	found := NewLocator(searcher, DefaultOptions()).Locate(context.Background(), route, Hospital)

	require.Len(t, found, 1)
	assert.Equal(t, "City Clinic", found[0].Name)
}

func TestLocate_SampleTimeoutTreatedAsFailure(t *testing.T) {
	route := northRoute()
	searcher := &stubSearcher{
		results: map[geo.Point][]Candidate{
			route[0]: {clinicA},
		},
		block: map[geo.Point]bool{route[10]: true},
	}

	opts := DefaultOptions()
	opts.SampleTimeout = 20 * time.Millisecond

	start := time.Now()
	found := NewLocator(searcher, opts).Locate(context.Background(), route, Hospital)

	assert.Less(t, time.Since(start), 2*time.Second, "Blocked sample must not stall the lookup")
	require.Len(t, found, 1)
	assert.Equal(t, "City Clinic", found[0].Name)
}

func TestLocate_AllSamplesFail(t *testing.T) {
	searcher := &MockPlaceSearcher{}
	searcher.On("SearchNearby", mock.Anything, mock.AnythingOfType("geo.Point"), 300.0, Liquor).
		Return(nil, errors.New("quota exceeded"))

	found := NewLocator(searcher, DefaultOptions()).Locate(context.Background(), northRoute(), Liquor)

	assert.NotNil(t, found)
	assert.Empty(t, found)
	searcher.AssertNumberOfCalls(t, "SearchNearby", 4)
}

func TestLocateReport_CountsFailures(t *testing.T) {
	route := northRoute()

	partial := &stubSearcher{
		results: map[geo.Point][]Candidate{route[0]: {clinicA}},
		fail:    map[geo.Point]bool{route[20]: true},
	}
	report := NewLocator(partial, DefaultOptions()).LocateReport(context.Background(), route, Hospital)
	assert.Equal(t, 4, report.Samples)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Unavailable())
	assert.Len(t, report.Facilities, 1)

	down := &MockPlaceSearcher{}
	down.On("SearchNearby", mock.Anything, mock.Anything, mock.Anything, Police).Return(nil, errors.New("503"))
	report = NewLocator(down, DefaultOptions()).LocateReport(context.Background(), route, Police)
	assert.True(t, report.Unavailable())
	assert.Empty(t, report.Facilities)

	empty := NewLocator(down, DefaultOptions()).LocateReport(context.Background(), nil, Police)
	assert.False(t, empty.Unavailable())
}

func TestLocate_EmptyRoute(t *testing.T) {
	searcher := &MockPlaceSearcher{}

	found := NewLocator(searcher, DefaultOptions()).Locate(context.Background(), nil, Hospital)

	assert.Empty(t, found)
	searcher.AssertNotCalled(t, "SearchNearby")
}

func TestLocate_ResultCap(t *testing.T) {
	route := northRoute()
	var many []Candidate
	for i := 0; i < 30; i++ {
		many = append(many, Candidate{
			Name:     "Shop",
			Location: geo.Point{Latitude: 28.6000 + 0.0005*float64(i), Longitude: 77.2001},
		})
	}
	searcher := &stubSearcher{results: map[geo.Point][]Candidate{route[0]: many}}

	opts := DefaultOptions()
	opts.MaxResults = 5

	found := NewLocator(searcher, opts).Locate(context.Background(), route, Liquor)
	assert.Len(t, found, 5)
}

func TestLocate_CompletionOrderIndependent(t *testing.T) {
	route := northRoute()
	results := map[geo.Point][]Candidate{
		route[0]:  {clinicA, farClinic},
		route[10]: {clinicAEcho, roadClinic},
		route[20]: {roadClinic, northClinic},
	}

	delayOrders := [][]time.Duration{
		{0, 10, 20, 30},
		{30, 20, 10, 0},
		{20, 0, 30, 10},
		{10, 30, 0, 20},
	}

	var baseline []Facility
	for i, order := range delayOrders {
		searcher := &stubSearcher{
			results: results,
			delays: map[geo.Point]time.Duration{
				route[0]:  order[0] * time.Millisecond,
				route[10]: order[1] * time.Millisecond,
				route[20]: order[2] * time.Millisecond,
				route[30]: order[3] * time.Millisecond,
			},
		}

		found := NewLocator(searcher, DefaultOptions()).Locate(context.Background(), route, Hospital)
		if i == 0 {
			baseline = found
			continue
		}
		assert.Equal(t, baseline, found, "delay order %v", order)
	}

	// The sample 0 instance wins the dedup against its echo from sample 10
	require.NotEmpty(t, baseline)
	names := make([]string, len(baseline))
	for i, f := range baseline {
		names[i] = f.Name
	}
	assert.Contains(t, names, "City Clinic")
	assert.NotContains(t, names, "City Clinic (annex)")
}

func TestDedup_Idempotent(t *testing.T) {
	input := []Facility{
		{Name: "A", Location: clinicA.Location},
		{Name: "A echo", Location: clinicAEcho.Location},
		{Name: "D", Location: roadClinic.Location},
		{Name: "D again", Location: roadClinic.Location},
		{Name: "E", Location: northClinic.Location},
	}

	once := Dedup(input, 50)
	require.Len(t, once, 3)
	assert.Equal(t, "A", once[0].Name)
	assert.Equal(t, once, Dedup(once, 50))
}

func TestAggregate_ProximityThresholdMonotonic(t *testing.T) {
	route := northRoute()
	perSample := [][]Candidate{{clinicA, farClinic, roadClinic, northClinic}}

	narrow := DefaultOptions()
	narrow.ProximityThreshold = 100
	wide := DefaultOptions()
	wide.ProximityThreshold = 400

	narrowSet := NewLocator(nil, narrow).Aggregate(route, perSample, Hospital)
	wideSet := NewLocator(nil, wide).Aggregate(route, perSample, Hospital)

	assert.Len(t, narrowSet, 2)
	assert.Len(t, wideSet, 4)
	for _, f := range narrowSet {
		assert.Contains(t, wideSet, f)
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("liquor_store")
	require.NoError(t, err)
	assert.Equal(t, Liquor, c)
	assert.Equal(t, "liquor_store", c.PlaceType())
	assert.Equal(t, "police", Police.PlaceType())

	_, err = ParseCategory("cafe")
	assert.Error(t, err)
}
