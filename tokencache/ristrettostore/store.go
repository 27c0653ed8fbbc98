/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package ristrettostore provides in-process tokencache.Store implementation
// that is bounded by the total size of the stored values.
package ristrettostore

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/acronis/go-refauth/tokencache"
)

// Default limits of the store.
const (
	DefaultMaxCost     = 64 << 20 // 64 MiB of serialized claims
	DefaultNumCounters = 1e5
)

// Opts contains options for Store.
type Opts struct {
	// MaxCost is the maximum total size (in bytes) of the stored values.
	MaxCost int64
	// NumCounters is the number of keys to track frequency of (~10x of the expected number of entries).
	NumCounters int64
}

// Store is a tokencache.Store on top of the ristretto cache.
type Store struct {
	cache *ristretto.Cache[string, []byte]
}

var _ tokencache.Store = (*Store)(nil)

// New creates a new Store.
func New(opts Opts) (*Store, error) {
	if opts.MaxCost == 0 {
		opts.MaxCost = DefaultMaxCost
	}
	if opts.NumCounters == 0 {
		opts.NumCounters = DefaultNumCounters
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("new ristretto cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// GetBytes implements tokencache.Store interface.
func (s *Store) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	value, found := s.cache.Get(key)
	return value, found, nil
}

// SetBytes implements tokencache.Store interface.
// The value is visible to GetBytes once SetBytes returns,
// unless ristretto rejects it (e.g. by the admission policy or under contention).
func (s *Store) SetBytes(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if !s.cache.SetWithTTL(key, append([]byte(nil), value...), int64(len(value)), ttl) {
		return nil
	}
	s.cache.Wait()
	return nil
}

// Close stops the background goroutines of the cache.
func (s *Store) Close() {
	s.cache.Close()
}
