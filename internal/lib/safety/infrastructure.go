package safety

import (
	"sync"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// RandomSource supplies uniformly distributed values in [0, 1)
type RandomSource interface {
	Float64() float64
}

// Simulator derives street light, CCTV and crowd signals from route density.
// There is no real infrastructure feed, so values are drawn from rand.
type Simulator struct {
	mu          sync.Mutex
	rand        RandomSource
	lightStride int
	cctvStride  int
}

// NewSimulator creates a Simulator with a light every 3rd and a camera every 6th route point
func NewSimulator(rnd RandomSource) *Simulator {
	return &Simulator{
		rand:        rnd,
		lightStride: 3,
		cctvStride:  6,
	}
}

// Simulate returns infrastructure samples for the route
func (s *Simulator) Simulate(route []geo.Point) Infrastructure {
	s.mu.Lock()
	defer s.mu.Unlock()

	infra := Infrastructure{
		StreetLights: make([]StreetLight, 0, len(route)/s.lightStride+1),
		CCTVCameras:  make([]CCTVCamera, 0, len(route)/s.cctvStride+1),
	}

	for i := 0; i < len(route); i += s.lightStride {
		infra.StreetLights = append(infra.StreetLights, StreetLight{
			Location:  route[i],
			Intensity: 60 + s.rand.Float64()*40,
		})
	}

	for i := 0; i < len(route); i += s.cctvStride {
		infra.CCTVCameras = append(infra.CCTVCameras, CCTVCamera{
			Location: route[i],
			Coverage: 70 + s.rand.Float64()*30,
		})
	}

	infra.CrowdLevel = 60 + s.rand.Float64()*30
	return infra
}
