package briefing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shaktipath/safepath/server/internal/lib/safety"
)

func TestHashSummary_Stable(t *testing.T) {
	h := NewContentHasher()

	a := sampleSummary()
	b := sampleSummary()
	b.Source = "  india gate,   new delhi "
	b.Warnings = []string{a.Warnings[1], a.Warnings[0]}

	assert.Equal(t, h.HashSummary(a), h.HashSummary(b))
	assert.Len(t, h.HashSummary(a), 64)
}

func TestHashSummary_ChangesWithContent(t *testing.T) {
	h := NewContentHasher()
	base := h.HashSummary(sampleSummary())

	tests := map[string]func(*RouteSummary){
		"risk":        func(s *RouteSummary) { s.RiskLevel = safety.RiskHigh },
		"score":       func(s *RouteSummary) { s.OverallScore = 61 },
		"subscore":    func(s *RouteSummary) { s.Subscores.CrowdLevel = 66 },
		"liquor":      func(s *RouteSummary) { s.LiquorShops = 4 },
		"destination": func(s *RouteSummary) { s.Destination = "Connaught Place" },
		"warning":     func(s *RouteSummary) { s.Warnings = s.Warnings[:1] },
	}

	for name, mutate := range tests {
		s := sampleSummary()
		mutate(&s)
		assert.NotEqual(t, base, h.HashSummary(s), name)
	}
}
