package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	prefaberrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/shaktipath/safepath/server/internal/clients/google"
	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/routing"
	"github.com/shaktipath/safepath/server/internal/lib/safety"
	"github.com/shaktipath/safepath/server/internal/messaging"
	"github.com/shaktipath/safepath/server/internal/storage"
)

var (
	// ErrMissingEndpoint is returned when source or destination is absent
	ErrMissingEndpoint = errors.New("source and destination are required")
	// ErrInvalidEndpoint is returned for coordinates outside the valid range
	ErrInvalidEndpoint = errors.New("invalid source or destination coordinates")
	// ErrNoRoute is returned when no walking route could be computed
	ErrNoRoute = errors.New("no walking route found")
	// ErrSuperseded is returned when a newer request from the same user finished the race
	ErrSuperseded = errors.New("route request superseded by a newer request")

	errPlacesNotConfigured = errors.New("places client not configured")
)

// State is a stage of a route computation
type State string

const (
	StateIdle               State = "idle"
	StateDecoding           State = "decoding"
	StateEnhancing          State = "enhancing"
	StateLocatingFacilities State = "locating_facilities"
	StateScoring            State = "scoring"
	StateComplete           State = "complete"
	StateFailed             State = "failed"
)

// Directions computes walking routes; *google.Client satisfies it
type Directions interface {
	ComputeWalkingRoute(ctx context.Context, origin, destination geo.Point) (*google.RouteData, error)
}

// RouteRequest asks for a safe walking route between two locations
type RouteRequest struct {
	UserID      string
	Source      *geo.Location
	Destination *geo.Location
}

// RouteResult is the outcome of one computation
type RouteResult struct {
	State State
	Trace []State // Every state visited, in order, starting at StateIdle
	Route *storage.RouteRecord
	Err   error
}

// RoutesConfig tunes the orchestrator
type RoutesConfig struct {
	Locator        facilities.Options
	HistoryLimit   int
	PersistTimeout time.Duration
	SessionTTL     time.Duration // Idle time after which a user's current route is forgotten
}

// RoutesDeps are the collaborators of RoutesService. NewPlaces is called at
// most once, on the first computation that reaches facility location. Its
// result is kept for the life of the service: if it fails, every computation
// is scored with the default assessment until restart. A nil NewPlaces
// behaves as a failing one.
type RoutesDeps struct {
	Directions Directions
	NewPlaces  func() (facilities.PlaceSearcher, error)
	Enhancer   routing.RouteEnhancer
	Simulator  *safety.Simulator
	Scorer     *safety.Scorer
	Store      storage.RouteStore
	Publisher  messaging.Publisher
}

// RoutesService runs the route safety pipeline and serves route history
type RoutesService struct {
	deps   RoutesDeps
	places func() (facilities.PlaceSearcher, error)
	config RoutesConfig
	tracer trace.Tracer
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	background sync.WaitGroup
}

// session is the per-user request sequence and latest completed route
type session struct {
	seq      uint64
	inFlight int
	current  *storage.RouteRecord
	touched  time.Time
}

// NewRoutesService creates a RoutesService
func NewRoutesService(deps RoutesDeps, config RoutesConfig) *RoutesService {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 5
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = 10 * time.Second
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 24 * time.Hour
	}
	newPlaces := deps.NewPlaces
	if newPlaces == nil {
		newPlaces = func() (facilities.PlaceSearcher, error) { return nil, errPlacesNotConfigured }
	}
	return &RoutesService{
		deps:     deps,
		places:   sync.OnceValues(newPlaces),
		config:   config,
		tracer:   otel.Tracer("github.com/shaktipath/safepath/server/internal/services"),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// run tracks the states visited by one computation
type run struct {
	trace []State
}

func (r *run) enter(s State) {
	r.trace = append(r.trace, s)
}

func (r *run) fail(err error) RouteResult {
	r.enter(StateFailed)
	return RouteResult{State: StateFailed, Trace: r.trace, Err: err}
}

// ComputeRoute computes, scores and records a walking route. Only a failure to
// obtain any route at all is an error; facility and scoring problems degrade
// the assessment instead.
func (s *RoutesService) ComputeRoute(ctx context.Context, req RouteRequest) RouteResult {
	ctx, span := s.tracer.Start(ctx, "RoutesService.ComputeRoute",
		trace.WithAttributes(attribute.String("user.id", req.UserID)))
	defer span.End()

	r := &run{trace: []State{StateIdle}}

	if req.Source == nil || req.Destination == nil {
		return r.fail(ErrMissingEndpoint)
	}
	if !req.Source.IsValid() || !req.Destination.IsValid() {
		return r.fail(ErrInvalidEndpoint)
	}

	seq := s.begin(req.UserID)
	src, dst := req.Source.Point, req.Destination.Point

	r.enter(StateDecoding)
	routeData, points, err := s.decode(ctx, src, dst)
	if err != nil {
		s.abandon(req.UserID)
		span.SetStatus(codes.Error, err.Error())
		logging.Warnw(ctx, "Route computation failed", "user.id", req.UserID, "error", err)
		return r.fail(err)
	}

	r.enter(StateEnhancing)
	points = s.enhance(ctx, src, dst, points)

	r.enter(StateLocatingFacilities)
	located, ok := s.locate(ctx, points)

	r.enter(StateScoring)
	assessment := s.score(ctx, points, located, ok)

	record := &storage.RouteRecord{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Source:      *req.Source,
		Destination: *req.Destination,
		Coordinates: points,
		Assessment:  assessment,
		Distance:    routeData.DistanceText,
		Duration:    routeData.DurationText,
		Steps:       convertSteps(routeData.Steps),
		CreatedAt:   s.now(),
	}

	if !s.finish(req.UserID, seq, record) {
		logging.Infow(ctx, "Discarding superseded route", "user.id", req.UserID, "sequence", seq)
		return r.fail(ErrSuperseded)
	}

	s.persist(ctx, record)

	r.enter(StateComplete)
	span.SetAttributes(
		attribute.String("route.risk_level", string(assessment.RiskLevel)),
		attribute.Int("route.overall_score", assessment.OverallScore))
	logging.Infow(ctx, "Route computed",
		"user.id", req.UserID,
		"route.id", record.ID,
		"route.points", len(points),
		"route.risk_level", assessment.RiskLevel,
		"route.overall_score", assessment.OverallScore,
		"route.degraded", assessment.Degraded)

	return RouteResult{State: StateComplete, Trace: r.trace, Route: record}
}

// decode fetches the walking route and decodes its geometry. A missing or
// malformed polyline falls back to the straight source to destination segment.
func (s *RoutesService) decode(ctx context.Context, src, dst geo.Point) (*google.RouteData, []geo.Point, error) {
	ctx, span := s.tracer.Start(ctx, "decode")
	defer span.End()

	routeData, err := s.deps.Directions.ComputeWalkingRoute(ctx, src, dst)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}

	points := geo.DecodePolyline(routeData.Polyline)
	if len(points) == 0 {
		logging.Warnw(ctx, "Route polyline missing or malformed, using straight segment",
			"polyline.length", len(routeData.Polyline))
		points = []geo.Point{src, dst}
	}
	span.SetAttributes(attribute.Int("route.decoded_points", len(points)))
	return routeData, points, nil
}

func (s *RoutesService) enhance(ctx context.Context, src, dst geo.Point, points []geo.Point) []geo.Point {
	_, span := s.tracer.Start(ctx, "enhance")
	defer span.End()

	enhanced := s.deps.Enhancer.Enhance(src, dst, points)
	span.SetAttributes(attribute.Int("route.points", len(enhanced)))
	return enhanced
}

// locate searches the three categories concurrently. ok is false when the
// places client is unavailable or every search of every category failed.
func (s *RoutesService) locate(ctx context.Context, points []geo.Point) (map[facilities.Category][]facilities.Facility, bool) {
	ctx, span := s.tracer.Start(ctx, "locate_facilities")
	defer span.End()

	searcher, err := s.places()
	if err != nil {
		logging.Errorw(ctx, "Places client unavailable", "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false
	}

	locator := facilities.NewLocator(searcher, s.config.Locator)
	reports := make([]facilities.Report, len(facilities.Categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range facilities.Categories {
		g.Go(func() error {
			reports[i] = locator.LocateReport(gctx, points, category)
			return nil
		})
	}
	_ = g.Wait()

	located := make(map[facilities.Category][]facilities.Facility, len(reports))
	unavailable := 0
	for i, category := range facilities.Categories {
		located[category] = reports[i].Facilities
		if reports[i].Unavailable() {
			unavailable++
		}
	}
	if unavailable == len(facilities.Categories) {
		logging.Warnw(ctx, "Facility data unavailable for every category")
		return nil, false
	}
	return located, true
}

func (s *RoutesService) score(ctx context.Context, points []geo.Point, located map[facilities.Category][]facilities.Facility, ok bool) safety.Assessment {
	_, span := s.tracer.Start(ctx, "score")
	defer span.End()

	if !ok {
		span.SetAttributes(attribute.Bool("route.degraded", true))
		return safety.DefaultAssessment()
	}

	return s.deps.Scorer.Score(safety.Input{
		RoutePointCount: len(points),
		Hospitals:       located[facilities.Hospital],
		Police:          located[facilities.Police],
		Liquor:          located[facilities.Liquor],
		Infrastructure:  s.deps.Simulator.Simulate(points),
	})
}

// begin registers a new computation for the user and returns its sequence number
func (s *RoutesService) begin(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{}
		s.sessions[userID] = sess
	}
	sess.seq++
	sess.inFlight++
	sess.touched = s.now()
	return sess.seq
}

// finish records route as current if seq is still the user's latest request
func (s *RoutesService) finish(userID string, seq uint64, route *storage.RouteRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[userID]
	sess.inFlight--
	if sess.seq != seq {
		return false
	}
	sess.current = route
	sess.touched = s.now()
	return true
}

// abandon ends a computation that produced no route
func (s *RoutesService) abandon(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID].inFlight--
}

// PruneIdle forgets users with no computation in flight and no activity within
// the session TTL, returning how many were removed
func (s *RoutesService) PruneIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.config.SessionTTL)
	var removed int
	for userID, sess := range s.sessions {
		if sess.inFlight == 0 && sess.touched.Before(cutoff) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

// StartPeriodicPrune runs PruneIdle every interval until ctx is done
func (s *RoutesService) StartPeriodicPrune(ctx context.Context, interval time.Duration) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err, _ := prefaberrors.ParseStack(debug.Stack())
				logging.Errorw(ctx, "Session prune: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(3, 5))
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.PruneIdle(); removed > 0 {
					logging.Debugw(ctx, "Pruned idle route sessions", "removed", removed)
				}
			}
		}
	}()
}

// persist saves the route and announces it in the background. Failures are
// logged and never reach the caller.
func (s *RoutesService) persist(ctx context.Context, record *storage.RouteRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.PersistTimeout)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				err, _ := prefaberrors.ParseStack(debug.Stack())
				logging.Errorw(ctx, "Route persist: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(3, 5))
			}
		}()

		if err := s.deps.Store.SaveRoute(ctx, record); err != nil {
			logging.Errorw(ctx, "Failed to save route history", "route.id", record.ID, "error", err)
		}

		event := messaging.RouteComputed{
			RouteID:      record.ID.String(),
			UserID:       record.UserID,
			Source:       record.Source,
			Destination:  record.Destination,
			RiskLevel:    record.Assessment.RiskLevel,
			OverallScore: record.Assessment.OverallScore,
			Degraded:     record.Assessment.Degraded,
		}
		if err := s.deps.Publisher.Publish(ctx, messaging.RouteComputedEvent, event); err != nil {
			logging.Warnw(ctx, "Failed to publish route event", "route.id", record.ID, "error", err)
		}
	}()
}

// Wait blocks until background persistence has finished
func (s *RoutesService) Wait() {
	s.background.Wait()
}

// CurrentRoute returns the user's latest completed route
func (s *RoutesService) CurrentRoute(userID string) (*storage.RouteRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok || sess.current == nil {
		return nil, false
	}
	return sess.current, true
}

// ListHistory returns the user's saved routes newest first. A non-positive
// limit uses the configured default.
func (s *RoutesService) ListHistory(ctx context.Context, userID string, limit int) ([]*storage.RouteRecord, error) {
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	routes, err := s.deps.Store.ListRoutes(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list route history: %w", err)
	}
	return routes, nil
}

// GetRoute returns one of the user's saved routes
func (s *RoutesService) GetRoute(ctx context.Context, userID string, id uuid.UUID) (*storage.RouteRecord, error) {
	r, err := s.deps.Store.GetRoute(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get route %s: %w", id, err)
	}
	return r, nil
}

func convertSteps(steps []google.Step) []storage.Step {
	out := make([]storage.Step, 0, len(steps))
	for _, st := range steps {
		out = append(out, storage.Step{
			Instruction: st.Instruction,
			Distance:    st.DistanceText,
			Duration:    st.DurationText,
			Start:       st.Start,
			End:         st.End,
		})
	}
	return out
}
