package listing

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/cache"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/shard"
)

// CityLookup finds the department of a city, "" when unknown.
type CityLookup func(ctx context.Context, city string) (string, error)

// CityResolver memoizes city lookups in a bounded LRU. Unknown cities are
// cached too; failed lookups are not.
type CityResolver struct {
	lookup CityLookup
	cache  *cache.LRU[string, string]
	failed atomic.Int64
}

// NewCityResolver wraps lookup with an LRU of the given capacity.
func NewCityResolver(lookup CityLookup, capacity int) *CityResolver {
	return &CityResolver{lookup: lookup, cache: cache.NewLRU[string, string](capacity)}
}

// Department returns the shard for city, or "" when it cannot be resolved.
func (r *CityResolver) Department(ctx context.Context, city string) string {
	key := strings.ToLower(strings.TrimSpace(city))
	if key == "" {
		return ""
	}
	if dept, ok := r.cache.Get(key); ok {
		return dept
	}

	dept, err := r.lookup(ctx, city)
	if err != nil {
		r.failed.Add(1)
		zap.L().Debug("listing: city lookup failed", zap.String("city", city), zap.Error(err))
		return ""
	}
	dept = shard.Department(dept)
	r.cache.Put(key, dept)
	return dept
}

// Stats returns the cache statistics.
func (r *CityResolver) Stats() cache.Stats { return r.cache.Stats() }

// Failed returns the number of lookups that returned an error.
func (r *CityResolver) Failed() int64 { return r.failed.Load() }

// resolveDepartment applies the fallback chain: explicit department, postal
// code, city, then the unknown bucket.
func resolveDepartment(ctx context.Context, l model.Listing, cities *CityResolver) string {
	if d := shard.Department(l.Department); d != "" {
		return d
	}
	if d := shard.FromPostalCode(l.PostalCode); d != "" {
		return d
	}
	if cities != nil && l.City != "" {
		if d := cities.Department(ctx, l.City); d != "" {
			return d
		}
	}
	return shard.Unknown
}
