// Package rates resolves which rate table a pricing request runs against:
// the compiled-in default, or a published version read through a Redis cache.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/packquote-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/redis"
)

const cacheKind = "rates"

// Cache is the subset of the redis client the resolver uses.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(kind, id string) string
}

type store interface {
	Get(ctx context.Context, version string) (*pricing.Rates, error)
}

type Resolver struct {
	store          store
	cache          Cache
	logg           *logger.Logger
	defaultVersion string
	ttl            time.Duration
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(store store, cache Cache, logg *logger.Logger, defaultVersion string, ttl time.Duration) *Resolver {
	if defaultVersion == "" {
		defaultVersion = pricing.BuiltinRatesVersion
	}
	return &Resolver{store: store, cache: cache, logg: logg, defaultVersion: defaultVersion, ttl: ttl}
}

// Resolve returns the rate table for version, or for the configured default
// when version is empty. A configured default that was never published falls
// back to the built-in table; an explicit unknown version is NOT_FOUND.
func (r *Resolver) Resolve(ctx context.Context, version string) (pricing.Rates, error) {
	explicit := version != ""
	if !explicit {
		version = r.defaultVersion
	}
	if version == pricing.BuiltinRatesVersion {
		return pricing.DefaultRates(), nil
	}

	if rates, ok := r.fromCache(ctx, version); ok {
		return rates, nil
	}

	rates, err := r.store.Get(ctx, version)
	if err != nil {
		return pricing.Rates{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading rate table")
	}
	if rates == nil {
		if explicit {
			return pricing.Rates{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("rate table %q not found", version))
		}
		r.logg.Warn(r.logg.WithField(ctx, "rate_table_version", version), "default rate table not published, using built-in rates")
		return pricing.DefaultRates(), nil
	}
	if err := rates.Validate(); err != nil {
		return pricing.Rates{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored rate table is invalid")
	}

	r.toCache(ctx, *rates)
	return *rates, nil
}

func (r *Resolver) fromCache(ctx context.Context, version string) (pricing.Rates, bool) {
	if r.cache == nil {
		return pricing.Rates{}, false
	}
	raw, err := r.cache.Get(ctx, r.cache.CacheKey(cacheKind, version))
	if err != nil {
		if !redis.IsMiss(err) {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "rate table cache read failed")
		}
		return pricing.Rates{}, false
	}
	var rates pricing.Rates
	if err := json.Unmarshal([]byte(raw), &rates); err != nil || rates.Validate() != nil {
		return pricing.Rates{}, false
	}
	return rates, true
}

func (r *Resolver) toCache(ctx context.Context, rates pricing.Rates) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(rates)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.cache.CacheKey(cacheKind, rates.Version), string(raw), r.ttl); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "rate table cache write failed")
	}
}
