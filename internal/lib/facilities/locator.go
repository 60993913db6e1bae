package facilities

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/dpup/prefab/logging"
	"golang.org/x/sync/errgroup"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// Locator finds facilities of a category that lie along a route
type Locator struct {
	searcher PlaceSearcher
	geoUtils geo.GeoUtils
	opts     Options
}

// NewLocator creates a Locator backed by searcher
func NewLocator(searcher PlaceSearcher, opts Options) *Locator {
	return &Locator{
		searcher: searcher,
		geoUtils: geo.NewGeoUtils(),
		opts:     opts,
	}
}

// Options returns the locator configuration
func (l *Locator) Options() Options {
	return l.opts
}

// Report is the outcome of locating one category along a route
type Report struct {
	Facilities []Facility
	Samples    int // Nearby searches issued
	Failed     int // Searches that errored or timed out
}

// Unavailable reports whether every search failed, leaving no facility data at all
func (r Report) Unavailable() bool {
	return r.Samples > 0 && r.Failed == r.Samples
}

// Locate samples the route, searches around every sample and returns the
// facilities within the proximity threshold of the full route. Search
// failures only remove that sample's contribution, so Locate never fails.
func (l *Locator) Locate(ctx context.Context, route []geo.Point, category Category) []Facility {
	return l.LocateReport(ctx, route, category).Facilities
}

// LocateReport is Locate plus sample failure counts
func (l *Locator) LocateReport(ctx context.Context, route []geo.Point, category Category) Report {
	if len(route) == 0 {
		return Report{Facilities: []Facility{}}
	}

	samples := l.geoUtils.SamplePoints(route, l.opts.SampleStride)
	perSample, failed := l.searchSamples(ctx, samples, category)

	found := l.Aggregate(route, perSample, category)
	logging.Debugw(ctx, "Located facilities along route",
		"category", category, "samples", len(samples), "failed", failed, "facilities", len(found))
	return Report{Facilities: found, Samples: len(samples), Failed: failed}
}

// searchSamples runs one nearby search per sample point. Results are stored by
// sample index so completion order does not leak into aggregation.
func (l *Locator) searchSamples(ctx context.Context, samples []geo.Point, category Category) ([][]Candidate, int) {
	results := make([][]Candidate, len(samples))
	var failed atomic.Int32

	var g errgroup.Group
	if l.opts.MaxConcurrency > 0 {
		g.SetLimit(l.opts.MaxConcurrency)
	}

	for i, sample := range samples {
		g.Go(func() error {
			sampleCtx := ctx
			if l.opts.SampleTimeout > 0 {
				var cancel context.CancelFunc
				sampleCtx, cancel = context.WithTimeout(ctx, l.opts.SampleTimeout)
				defer cancel()
			}

			candidates, err := l.searcher.SearchNearby(sampleCtx, sample, l.opts.SearchRadius, category)
			if err != nil {
				failed.Add(1)
				logging.Warnw(ctx, "Nearby search failed for sample, skipping",
					"category", category, "sample", i, "error", err)
				return nil
			}
			results[i] = candidates
			return nil
		})
	}

	// Workers never return errors
	_ = g.Wait()
	return results, int(failed.Load())
}

// Aggregate filters per-sample candidates to those near the route, removes
// duplicates, sorts by distance from the route and applies the result cap.
// perSample must be ordered by sample index.
func (l *Locator) Aggregate(route []geo.Point, perSample [][]Candidate, category Category) []Facility {
	var nearRoute []Facility
	for _, candidates := range perSample {
		for _, c := range candidates {
			if !c.Location.IsValid() {
				continue
			}

			// A sample's search radius can reach past the route around bends,
			// so every candidate is checked against the whole route
			near, distance := l.geoUtils.IsNearRoute(c.Location, route, l.opts.ProximityThreshold)
			if !near {
				continue
			}

			name := c.Name
			if name == "" {
				name = "Unknown"
			}
			nearRoute = append(nearRoute, Facility{
				Name:              name,
				Location:          c.Location,
				DistanceFromRoute: distance,
				Category:          category,
			})
		}
	}

	facilities := Dedup(nearRoute, l.opts.DedupRadius)

	sort.SliceStable(facilities, func(i, j int) bool {
		if facilities[i].DistanceFromRoute != facilities[j].DistanceFromRoute {
			return facilities[i].DistanceFromRoute < facilities[j].DistanceFromRoute
		}
		return facilities[i].Name < facilities[j].Name
	})

	if l.opts.MaxResults > 0 && len(facilities) > l.opts.MaxResults {
		facilities = facilities[:l.opts.MaxResults]
	}
	return facilities
}

// Dedup drops facilities whose location is within radiusMeters of an earlier
// kept facility. The first seen instance wins. Dedup of its own output is a no-op.
func Dedup(facilities []Facility, radiusMeters float64) []Facility {
	kept := make([]Facility, 0, len(facilities))
	for _, f := range facilities {
		duplicate := false
		for _, k := range kept {
			if geo.DistanceMeters(k.Location, f.Location) < radiusMeters {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, f)
		}
	}
	return kept
}
