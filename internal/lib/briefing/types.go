package briefing

import (
	"context"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/safety"
)

// RouteSummary is the assessment view sent to the model
type RouteSummary struct {
	Source         string           `json:"source"`
	Destination    string           `json:"destination"`
	DistanceText   string           `json:"distance"`
	DurationText   string           `json:"duration"`
	RiskLevel      safety.RiskLevel `json:"risk_level"`
	OverallScore   int              `json:"overall_score"`
	Subscores      safety.Subscores `json:"subscores"`
	Warnings       []string         `json:"warnings"`
	Hospitals      int              `json:"hospitals"`
	PoliceStations int              `json:"police_stations"`
	LiquorShops    int              `json:"liquor_shops"`
}

// NewRouteSummary builds a RouteSummary from an assessment
func NewRouteSummary(source, destination, distance, duration string, a safety.Assessment) RouteSummary {
	return RouteSummary{
		Source:         source,
		Destination:    destination,
		DistanceText:   distance,
		DurationText:   duration,
		RiskLevel:      a.RiskLevel,
		OverallScore:   a.OverallScore,
		Subscores:      a.Subscores,
		Warnings:       a.Warnings,
		Hospitals:      len(a.Facilities.Hospitals),
		PoliceStations: len(a.Facilities.PoliceStations),
		LiquorShops:    len(a.Facilities.LiquorShops),
	}
}

// Briefing is a traveller-facing explanation of a route assessment
type Briefing struct {
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	Tips        []string  `json:"tips"`
	BestTime    string    `json:"best_time_to_travel"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Briefer writes briefings for scored routes
type Briefer interface {
	Brief(ctx context.Context, summary RouteSummary) (Briefing, error)

	// Health check for AI service
	HealthCheck(ctx context.Context) error
}
