package briefing

import (
	"context"
	"time"

	"github.com/dpup/prefab/logging"
)

// DefaultCacheTTL is how long a briefing is reused for identical route content
const DefaultCacheTTL = 24 * time.Hour

// Cache stores briefings by content hash
type Cache interface {
	SetBriefing(contentHash string, b Briefing, ttl time.Duration) error
	GetBriefing(contentHash string) (Briefing, bool, error)
}

// CachedBriefer wraps a Briefer with content-based caching
type CachedBriefer struct {
	briefer Briefer
	cache   Cache
	hasher  *ContentHasher
	ttl     time.Duration
}

// NewCachedBriefer creates a briefer that reuses results for identical summaries
func NewCachedBriefer(briefer Briefer, cache Cache, ttl time.Duration) *CachedBriefer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedBriefer{
		briefer: briefer,
		cache:   cache,
		hasher:  NewContentHasher(),
		ttl:     ttl,
	}
}

// Brief checks the cache, then calls the model on a miss and stores the result
func (c *CachedBriefer) Brief(ctx context.Context, summary RouteSummary) (Briefing, error) {
	contentHash := c.hasher.HashSummary(summary)

	if cached, found, err := c.cache.GetBriefing(contentHash); err != nil {
		logging.Warnw(ctx, "Briefing cache read failed", "hash", contentHash[:8], "error", err)
	} else if found {
		logging.Debugw(ctx, "Briefing cache hit", "hash", contentHash[:8])
		return cached, nil
	}

	out, err := c.briefer.Brief(ctx, summary)
	if err != nil {
		return out, err
	}

	if err := c.cache.SetBriefing(contentHash, out, c.ttl); err != nil {
		logging.Warnw(ctx, "Failed to cache briefing", "hash", contentHash[:8], "error", err)
	}
	return out, nil
}

// HealthCheck delegates to underlying briefer
func (c *CachedBriefer) HealthCheck(ctx context.Context) error {
	return c.briefer.HealthCheck(ctx)
}
