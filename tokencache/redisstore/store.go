/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package redisstore provides tokencache.Store implementation backed by Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acronis/go-refauth/tokencache"
)

// DefaultKeyPrefix is prepended to all keys that are stored in Redis.
const DefaultKeyPrefix = "refauth:"

// Opts contains options for Store.
type Opts struct {
	// KeyPrefix is prepended to all keys. DefaultKeyPrefix is used if empty.
	KeyPrefix string
}

// Store is a tokencache.Store that keeps entries in Redis with the PX expiration.
type Store struct {
	client    redis.Cmdable
	keyPrefix string
}

var _ tokencache.Store = (*Store)(nil)

// New creates a new Store. Both single-node and cluster clients may be used.
func New(client redis.Cmdable, opts Opts) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: opts.KeyPrefix}, nil
}

// GetBytes implements tokencache.Store interface.
func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// SetBytes implements tokencache.Store interface.
// Values with expiration in the past are not stored.
func (s *Store) SetBytes(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
