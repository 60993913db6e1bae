package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaktipath/safepath/server/internal/lib/briefing"
)

// ErrBriefingDisabled is returned when no briefing model is configured
var ErrBriefingDisabled = errors.New("route briefings are not enabled")

// BriefingService explains saved route assessments in plain language
type BriefingService struct {
	routes  *RoutesService
	briefer briefing.Briefer
}

// NewBriefingService creates a BriefingService. A nil briefer disables briefings.
func NewBriefingService(routes *RoutesService, briefer briefing.Briefer) *BriefingService {
	return &BriefingService{routes: routes, briefer: briefer}
}

// Enabled reports whether briefings can be generated
func (s *BriefingService) Enabled() bool {
	return s.briefer != nil
}

// BriefRoute generates a briefing for one of the user's saved routes
func (s *BriefingService) BriefRoute(ctx context.Context, userID string, id uuid.UUID) (briefing.Briefing, error) {
	if s.briefer == nil {
		return briefing.Briefing{}, ErrBriefingDisabled
	}

	route, err := s.routes.GetRoute(ctx, userID, id)
	if err != nil {
		return briefing.Briefing{}, err
	}

	summary := briefing.NewRouteSummary(
		addressOrCoordinates(route.Source.Address, route.Source.Point),
		addressOrCoordinates(route.Destination.Address, route.Destination.Point),
		route.Distance, route.Duration, route.Assessment)

	b, err := s.briefer.Brief(ctx, summary)
	if err != nil {
		return briefing.Briefing{}, fmt.Errorf("failed to brief route %s: %w", id, err)
	}
	return b, nil
}
