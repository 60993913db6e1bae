package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/mmcloughlin/geohash"
	"golang.org/x/sync/singleflight"

	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// placeKeyPrecision is the geohash length used for nearby search keys, a cell of roughly 38m x 19m
const placeKeyPrecision = 8

// DefaultSearchTimeout bounds one shared upstream nearby search
const DefaultSearchTimeout = 10 * time.Second

// PlaceSearchCache caches nearby searches by geohash cell, category and radius.
// Concurrent identical searches share one upstream call.
type PlaceSearchCache struct {
	next  facilities.PlaceSearcher
	cache *Cache
	ttl   time.Duration
	group singleflight.Group

	searchTimeout time.Duration
}

// NewPlaceSearchCache wraps next with a cache
func NewPlaceSearchCache(next facilities.PlaceSearcher, cache *Cache, ttl time.Duration) *PlaceSearchCache {
	return &PlaceSearchCache{
		next:          next,
		cache:         cache,
		ttl:           ttl,
		searchTimeout: DefaultSearchTimeout,
	}
}

// SearchNearby implements facilities.PlaceSearcher
func (p *PlaceSearchCache) SearchNearby(ctx context.Context, center geo.Point, radiusMeters float64, category facilities.Category) ([]facilities.Candidate, error) {
	key := PlaceKey(center, radiusMeters, category)

	var cached []facilities.Candidate
	if found, err := p.cache.Get(key, &cached); err != nil {
		logging.Warnw(ctx, "Place cache read failed, evicting", "key", key, "error", err)
		p.cache.Delete(key)
	} else if found {
		return cached, nil
	}

	// The shared search is detached from every caller's cancellation. Each
	// caller waits only as long as its own context allows.
	results := p.group.DoChan(key, func() (interface{}, error) {
		searchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.searchTimeout)
		defer cancel()

		candidates, err := p.next.SearchNearby(searchCtx, center, radiusMeters, category)
		if err != nil {
			return nil, err
		}
		if err := p.cache.Set(key, candidates, p.ttl, "places"); err != nil {
			logging.Warnw(ctx, "Failed to cache nearby search", "key", key, "error", err)
		}
		return candidates, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logging.Debugw(ctx, "Nearby search shared with concurrent caller", "key", key)
		}
		return res.Val.([]facilities.Candidate), nil
	}
}

// PlaceKey is the cache key for a nearby search
func PlaceKey(center geo.Point, radiusMeters float64, category facilities.Category) string {
	return fmt.Sprintf("places:%s:%s:%.0f", category,
		geohash.EncodeWithPrecision(center.Latitude, center.Longitude, placeKeyPrecision), radiusMeters)
}
