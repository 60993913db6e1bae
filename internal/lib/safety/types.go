package safety

import (
	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// RiskLevel is the coarse classification of a route
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// rank orders risk levels so classifications only move upward
func (r RiskLevel) rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	}
	return 0
}

// AtLeast returns the higher of r and floor
func (r RiskLevel) AtLeast(floor RiskLevel) RiskLevel {
	if floor.rank() > r.rank() {
		return floor
	}
	return r
}

// StreetLight is a simulated light sample along the route
type StreetLight struct {
	Location  geo.Point `json:"location"`
	Intensity float64   `json:"intensity"` // percent, 60-100
}

// CCTVCamera is a simulated camera sample along the route
type CCTVCamera struct {
	Location geo.Point `json:"location"`
	Coverage float64   `json:"coverage"` // percent, 70-100
}

// Infrastructure holds the simulated signals scored alongside facilities
type Infrastructure struct {
	StreetLights []StreetLight `json:"streetLights"`
	CCTVCameras  []CCTVCamera  `json:"cctvCameras"`
	CrowdLevel   float64       `json:"crowdLevel"` // percent, 60-90 when simulated
}

// Input is everything the scorer needs for one route
type Input struct {
	RoutePointCount int
	Hospitals       []facilities.Facility
	Police          []facilities.Facility
	Liquor          []facilities.Facility
	Infrastructure  Infrastructure
}

// Subscores are integer percentages in [0, 100]
type Subscores struct {
	StreetLights   int `json:"streetLights"`
	CCTVDensity    int `json:"cctvDensity"`
	PoliceStations int `json:"policeStations"`
	CrowdLevel     int `json:"crowdLevel"`
	AlcoholShops   int `json:"alcoholShops"`
}

// RouteFacilities groups located facilities and infrastructure by kind
type RouteFacilities struct {
	Hospitals      []facilities.Facility `json:"hospitals"`
	PoliceStations []facilities.Facility `json:"policeStations"`
	LiquorShops    []facilities.Facility `json:"liquorShops"`
	StreetLights   []StreetLight         `json:"streetLights"`
	CCTVCameras    []CCTVCamera          `json:"cctvCameras"`
}

// Assessment is the scored safety view of a route
type Assessment struct {
	Subscores    Subscores       `json:"subscores"`
	OverallScore int             `json:"overallScore"`
	RiskLevel    RiskLevel       `json:"riskLevel"`
	Warnings     []string        `json:"warnings"`
	Facilities   RouteFacilities `json:"facilities"`
	Degraded     bool            `json:"degraded,omitempty"` // true for the default assessment
}
