package briefing

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// ContentHasher derives cache keys from the parts of a summary that change a briefing
type ContentHasher struct{}

// NewContentHasher creates a new content hasher
func NewContentHasher() *ContentHasher {
	return &ContentHasher{}
}

// HashSummary returns a stable SHA-256 hex digest of the summary.
// Warning order does not affect the hash.
func (h *ContentHasher) HashSummary(s RouteSummary) string {
	warnings := make([]string, len(s.Warnings))
	for i, w := range s.Warnings {
		warnings[i] = h.normalizeText(w)
	}
	sort.Strings(warnings)

	signature := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d/%d/%d/%d/%d|%d/%d/%d|%s",
		h.normalizeText(s.Source),
		h.normalizeText(s.Destination),
		h.normalizeText(s.DistanceText),
		h.normalizeText(s.DurationText),
		s.RiskLevel,
		s.OverallScore,
		s.Subscores.StreetLights, s.Subscores.CCTVDensity, s.Subscores.PoliceStations,
		s.Subscores.CrowdLevel, s.Subscores.AlcoholShops,
		s.Hospitals, s.PoliceStations, s.LiquorShops,
		strings.Join(warnings, ";"),
	)

	hash := sha256.Sum256([]byte(signature))
	return fmt.Sprintf("%x", hash)
}

// normalizeText lowercases and collapses whitespace
func (h *ContentHasher) normalizeText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.ToLower(text), " "))
}
