package cache

import (
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/briefing"
)

// BriefingCacheAdapter makes the main Cache implement briefing.Cache
type BriefingCacheAdapter struct {
	cache *Cache
}

// NewBriefingCacheAdapter creates an adapter for briefing caching
func NewBriefingCacheAdapter(cache *Cache) *BriefingCacheAdapter {
	return &BriefingCacheAdapter{cache: cache}
}

// SetBriefing implements briefing.Cache
func (a *BriefingCacheAdapter) SetBriefing(contentHash string, b briefing.Briefing, ttl time.Duration) error {
	return a.cache.Set(briefingKey(contentHash), b, ttl, "briefing")
}

// GetBriefing implements briefing.Cache
func (a *BriefingCacheAdapter) GetBriefing(contentHash string) (briefing.Briefing, bool, error) {
	var b briefing.Briefing
	found, err := a.cache.Get(briefingKey(contentHash), &b)
	return b, found, err
}

func briefingKey(contentHash string) string {
	return "briefing:" + contentHash
}
