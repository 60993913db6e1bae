package safety

import (
	"fmt"
	"math"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/facilities"
)

const (
	lightPointsPerSample  = 10.0 // One light expected per 10 route points
	cctvPointsPerSample   = 15.0 // One camera expected per 15 route points
	policeScorePerStation = 25
	liquorPenaltyPerShop  = 15
	maxLiquorPenalty      = 50
)

// Warning texts shown to travellers
const (
	warnUnavailable  = "⚠️ Unable to analyze route safety - Exercise standard precautions"
	warnPoorLighting = "⚠️ POOR LIGHTING: Avoid this route during dark hours"
	warnNoPolice     = "⚠️ NO POLICE STATIONS: Limited law enforcement along route"
	warnLowTraffic   = "⚠️ LOW TRAFFIC: Consider busier alternative routes"
	warnNight        = "⚠️ NIGHT TRAVEL: Extra caution recommended during late hours"
	noteLighting     = "✅ Excellent street lighting coverage"
	summaryHigh      = "🚫 AVOID THIS ROUTE - Consider alternative paths"
	summaryMedium    = "⚠️ Exercise caution - Travel with others if possible"
	summaryLow       = "✅ Route appears safe - Standard precautions recommended"
)

// Scorer turns facility counts and infrastructure signals into an Assessment
type Scorer struct {
	location *time.Location
	now      func() time.Time
}

// NewScorer creates a Scorer that evaluates the night rule in loc.
// A nil loc uses time.Local and a nil now uses time.Now.
func NewScorer(loc *time.Location, now func() time.Time) *Scorer {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Scorer{location: loc, now: now}
}

// Score computes subscores, the overall score, the risk level and the ordered warnings
func (s *Scorer) Score(in Input) Assessment {
	n := float64(in.RoutePointCount)
	if n <= 0 {
		return DefaultAssessment()
	}

	liquorCount := len(in.Liquor)
	policeCount := len(in.Police)
	hospitalCount := len(in.Hospitals)

	subscores := Subscores{
		StreetLights:   percent(100 * float64(len(in.Infrastructure.StreetLights)) / (n / lightPointsPerSample)),
		CCTVDensity:    percent(100 * float64(len(in.Infrastructure.CCTVCameras)) / (n / cctvPointsPerSample)),
		PoliceStations: percent(float64(policeScorePerStation * policeCount)),
		CrowdLevel:     percent(in.Infrastructure.CrowdLevel),
		// Penalty is capped, so the subscore never drops below 50
		AlcoholShops: percent(float64(100 - min(maxLiquorPenalty, liquorPenaltyPerShop*liquorCount))),
	}

	var warnings []string
	risk := RiskLow

	switch {
	case liquorCount >= 5:
		warnings = append(warnings, fmt.Sprintf("⚠️ HIGH RISK: %d alcohol establishments along route", liquorCount))
		risk = RiskHigh
	case liquorCount >= 3:
		warnings = append(warnings, fmt.Sprintf("⚠️ CAUTION: %d alcohol establishments detected along route", liquorCount))
		risk = risk.AtLeast(RiskMedium)
	}

	if subscores.StreetLights < 40 {
		warnings = append(warnings, warnPoorLighting)
		risk = risk.AtLeast(RiskMedium)
	}
	if policeCount == 0 {
		warnings = append(warnings, warnNoPolice)
		risk = risk.AtLeast(RiskMedium)
	}
	if subscores.CrowdLevel < 30 {
		warnings = append(warnings, warnLowTraffic)
		risk = risk.AtLeast(RiskMedium)
	}

	// Night travel is advisory only and does not change the risk level
	if hour := s.now().In(s.location).Hour(); hour >= 22 || hour <= 5 {
		warnings = append(warnings, warnNight)
	}

	if policeCount >= 2 {
		warnings = append(warnings, fmt.Sprintf("✅ %d police stations nearby for emergencies", policeCount))
	}
	if hospitalCount >= 1 {
		warnings = append(warnings, fmt.Sprintf("✅ %d medical facilities along route", hospitalCount))
	}
	if subscores.StreetLights >= 80 {
		warnings = append(warnings, noteLighting)
	}

	warnings = append(warnings, summaryFor(risk))

	return Assessment{
		Subscores:    subscores,
		OverallScore: overall(subscores),
		RiskLevel:    risk,
		Warnings:     warnings,
		Facilities: RouteFacilities{
			Hospitals:      nonNil(in.Hospitals),
			PoliceStations: nonNil(in.Police),
			LiquorShops:    nonNil(in.Liquor),
			StreetLights:   in.Infrastructure.StreetLights,
			CCTVCameras:    in.Infrastructure.CCTVCameras,
		},
	}
}

// DefaultAssessment is the neutral result used when route safety cannot be analyzed
func DefaultAssessment() Assessment {
	subscores := Subscores{
		StreetLights:   75,
		CCTVDensity:    70,
		PoliceStations: 60,
		CrowdLevel:     65,
		AlcoholShops:   80,
	}
	return Assessment{
		Subscores:    subscores,
		OverallScore: overall(subscores),
		RiskLevel:    RiskMedium,
		Warnings:     []string{warnUnavailable},
		Facilities: RouteFacilities{
			Hospitals:      []facilities.Facility{},
			PoliceStations: []facilities.Facility{},
			LiquorShops:    []facilities.Facility{},
			StreetLights:   []StreetLight{},
			CCTVCameras:    []CCTVCamera{},
		},
		Degraded: true,
	}
}

func summaryFor(risk RiskLevel) string {
	switch risk {
	case RiskHigh:
		return summaryHigh
	case RiskMedium:
		return summaryMedium
	}
	return summaryLow
}

// overall is the rounded mean of the five subscores
func overall(s Subscores) int {
	sum := s.StreetLights + s.CCTVDensity + s.PoliceStations + s.CrowdLevel + s.AlcoholShops
	return int(math.Round(float64(sum) / 5))
}

// percent rounds v and clamps it to [0, 100]
func percent(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func nonNil(f []facilities.Facility) []facilities.Facility {
	if f == nil {
		return []facilities.Facility{}
	}
	return f
}
