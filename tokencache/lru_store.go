/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokencache

import (
	"context"
	"time"

	"github.com/acronis/go-appkit/lrucache"

	"github.com/acronis/go-refauth/internal/metrics"
)

// DefaultLRUStoreMaxEntries is the default maximum number of entries in LRUStore.
const DefaultLRUStoreMaxEntries = 1000

type lruStoreItem struct {
	value     []byte
	expiresAt time.Time
}

// LRUStore is an in-process Store with the limited number of entries.
// Least recently used entries are evicted first. Expired entries are never returned.
type LRUStore struct {
	cache *lrucache.LRUCache[string, lruStoreItem]
	now   func() time.Time
}

// LRUStoreOpts contains options for LRUStore.
type LRUStoreOpts struct {
	// MaxEntries is the maximum number of entries. DefaultLRUStoreMaxEntries is used if 0.
	MaxEntries int

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	// It allows distinguishing metrics from different instances of the same library.
	PrometheusLibInstanceLabel string
}

// NewLRUStore creates a new LRUStore.
func NewLRUStore(opts LRUStoreOpts) (*LRUStore, error) {
	if opts.MaxEntries == 0 {
		opts.MaxEntries = DefaultLRUStoreMaxEntries
	}
	promMetrics := metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceTokenCache)
	cache, err := lrucache.New[string, lruStoreItem](opts.MaxEntries, promMetrics.TokenClaimsCache)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: cache, now: time.Now}, nil
}

// GetBytes implements Store interface.
func (s *LRUStore) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := s.cache.Get(key)
	if !ok || !item.expiresAt.After(s.now()) {
		return nil, false, nil
	}
	return item.value, true, nil
}

// SetBytes implements Store interface.
func (s *LRUStore) SetBytes(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	s.cache.Add(key, lruStoreItem{value: append([]byte(nil), value...), expiresAt: expiresAt})
	return nil
}

// Purge removes all entries.
func (s *LRUStore) Purge() {
	s.cache.Purge()
}

// Len returns the number of entries (including expired but not evicted yet).
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
