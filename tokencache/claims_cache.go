/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokencache

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-refauth/claims"
	"github.com/acronis/go-refauth/internal/idputil"
)

// DefaultDuration is the default maximum lifetime of a cached entry.
const DefaultDuration = 5 * time.Minute

// ClaimsCache stores token claims in the Store.
type ClaimsCache struct {
	store  Store
	logger log.FieldLogger
	now    func() time.Time
}

// ClaimsCacheOpts contains options for ClaimsCache.
type ClaimsCacheOpts struct {
	Logger log.FieldLogger
	// Now returns the current time. time.Now is used by default.
	Now func() time.Time
}

// NewClaimsCache creates a new ClaimsCache.
func NewClaimsCache(store Store) *ClaimsCache {
	return NewClaimsCacheWithOpts(store, ClaimsCacheOpts{})
}

// NewClaimsCacheWithOpts creates a new ClaimsCache with the given options.
func NewClaimsCacheWithOpts(store Store, opts ClaimsCacheOpts) *ClaimsCache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ClaimsCache{store: store, logger: idputil.PrepareLogger(opts.Logger), now: opts.Now}
}

// Get returns claims stored by the key. The second returned value is false on cache miss.
func (c *ClaimsCache) Get(ctx context.Context, key string) (claims.Claims, bool, error) {
	data, found, err := c.store.GetBytes(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("get claims from cache: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	cl, err := claims.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return cl, true, nil
}

// Set stores claims by the key.
// The absolute expiration of the entry is min(exp, now+duration), where exp is taken from the "exp" claim.
// Nothing is stored if claims have no "exp" claim or the token is already expired.
// Claims of a not active token without "exp" get it synthesized as now+duration, so such results are cached too.
func (c *ClaimsCache) Set(ctx context.Context, key string, cl claims.Claims, duration time.Duration) error {
	if duration <= 0 {
		duration = DefaultDuration
	}
	now := c.now()
	maxExpiresAt := now.Add(duration)

	expiresAt, found, err := cl.ExpiresAt()
	if err != nil {
		c.logger.Warn("claims of token have malformed exp claim, they will not be cached", log.Error(err))
		return nil
	}
	if !found {
		if !cl.IsInactive() {
			c.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
				logFunc("no exp claim found, token claims will not be cached")
			})
			return nil
		}
		expiresAt = maxExpiresAt
		cl = cl.WithExpiration(expiresAt)
	}

	c.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc("token expires on " + expiresAt.UTC().Format(time.RFC3339))
	})
	if !expiresAt.After(now) {
		c.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("token is already expired, its claims will not be cached")
		})
		return nil
	}
	if expiresAt.After(maxExpiresAt) {
		expiresAt = maxExpiresAt
	}

	data, err := claims.Marshal(cl)
	if err != nil {
		return err
	}
	c.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc("setting cache expiration to " + expiresAt.UTC().Format(time.RFC3339))
	})
	if err = c.store.SetBytes(ctx, key, data, expiresAt); err != nil {
		return fmt.Errorf("set claims to cache: %w", err)
	}
	return nil
}
