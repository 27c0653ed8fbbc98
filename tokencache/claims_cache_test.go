/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokencache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-refauth/claims"
)

type storeEntry struct {
	value     []byte
	expiresAt time.Time
}

type memStoreMock struct {
	mu      sync.Mutex
	entries map[string]storeEntry
	getErr  error
	setErr  error
}

func newMemStoreMock() *memStoreMock {
	return &memStoreMock{entries: make(map[string]storeEntry)}
}

func (s *memStoreMock) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	e, ok := s.entries[key]
	return e.value, ok, nil
}

func (s *memStoreMock) SetBytes(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = storeEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (s *memStoreMock) entry(key string) (storeEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

func expClaim(t time.Time) claims.Claim {
	return claims.Claim{Type: claims.TypeExpiration, Value: strconv.FormatInt(t.Unix(), 10)}
}

func TestClaimsCache_Set(t *testing.T) {
	now := time.Unix(1700000000, 0)
	const duration = 10 * time.Minute

	tests := []struct {
		name          string
		claims        claims.Claims
		wantStored    bool
		wantExpiresAt time.Time
	}{
		{
			name:          "token expires later than cache duration",
			claims:        claims.Claims{{Type: "sub", Value: "u"}, expClaim(now.Add(time.Hour))},
			wantStored:    true,
			wantExpiresAt: now.Add(duration),
		},
		{
			name:          "token expires earlier than cache duration",
			claims:        claims.Claims{{Type: "sub", Value: "u"}, expClaim(now.Add(2 * time.Minute))},
			wantStored:    true,
			wantExpiresAt: now.Add(2 * time.Minute),
		},
		{
			name:   "token expires right now",
			claims: claims.Claims{expClaim(now)},
		},
		{
			name:   "token is expired",
			claims: claims.Claims{expClaim(now.Add(-time.Minute))},
		},
		{
			name:   "no exp claim",
			claims: claims.Claims{{Type: "sub", Value: "u"}},
		},
		{
			name:   "malformed exp claim",
			claims: claims.Claims{{Type: claims.TypeExpiration, Value: "soon"}},
		},
		{
			name:          "inactive token without exp claim",
			claims:        claims.Claims{}.WithInactiveMarker(),
			wantStored:    true,
			wantExpiresAt: now.Add(duration),
		},
		{
			name:   "inactive expired token",
			claims: claims.Claims{expClaim(now.Add(-time.Hour))}.WithInactiveMarker(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStoreMock()
			cache := NewClaimsCacheWithOpts(store, ClaimsCacheOpts{Now: func() time.Time { return now }})
			require.NoError(t, cache.Set(context.Background(), "key", tt.claims, duration))

			e, stored := store.entry("key")
			require.Equal(t, tt.wantStored, stored)
			if tt.wantStored {
				require.True(t, tt.wantExpiresAt.Equal(e.expiresAt), "expected %s, got %s", tt.wantExpiresAt, e.expiresAt)
			}
		})
	}
}

func TestClaimsCache_SetGet(t *testing.T) {
	ctx := context.Background()
	store := newMemStoreMock()
	cache := NewClaimsCache(store)

	t.Run("round trip", func(t *testing.T) {
		cl := claims.Claims{
			{Type: "sub", Value: "user"},
			{Type: "role", Value: "admin"},
			{Type: "role", Value: "admin"},
			expClaim(time.Now().Add(time.Hour)),
		}
		require.NoError(t, cache.Set(ctx, "k1", cl, time.Minute))
		got, found, err := cache.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, found)
		require.ElementsMatch(t, cl, got)
	})

	t.Run("inactive token gets synthetic exp", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "k2", claims.Claims{}.WithInactiveMarker(), time.Minute))
		got, found, err := cache.Get(ctx, "k2")
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, got.IsInactive())
		expiresAt, hasExp, err := got.ExpiresAt()
		require.NoError(t, err)
		require.True(t, hasExp)
		require.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 2*time.Second)
	})

	t.Run("miss", func(t *testing.T) {
		_, found, err := cache.Get(ctx, "unknown")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("store errors", func(t *testing.T) {
		failingStore := newMemStoreMock()
		failingStore.getErr = errors.New("connection refused")
		failingStore.setErr = errors.New("connection refused")
		failingCache := NewClaimsCache(failingStore)

		_, _, err := failingCache.Get(ctx, "k")
		require.ErrorContains(t, err, "connection refused")
		err = failingCache.Set(ctx, "k", claims.Claims{expClaim(time.Now().Add(time.Hour))}, time.Minute)
		require.ErrorContains(t, err, "connection refused")
	})

	t.Run("corrupted entry", func(t *testing.T) {
		require.NoError(t, store.SetBytes(ctx, "k3", []byte("not json"), time.Now().Add(time.Minute)))
		_, _, err := cache.Get(ctx, "k3")
		require.Error(t, err)
	})
}

func TestLRUStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLRUStore(LRUStoreOpts{MaxEntries: 2, PrometheusLibInstanceLabel: "lru_store_test"})
	require.NoError(t, err)

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.SetBytes(ctx, "a", []byte("1"), now.Add(time.Minute)))
	require.NoError(t, store.SetBytes(ctx, "b", []byte("2"), now.Add(time.Second)))

	data, found, err := store.GetBytes(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", string(data))

	store.now = func() time.Time { return now.Add(2 * time.Second) }
	_, found, err = store.GetBytes(ctx, "b")
	require.NoError(t, err)
	require.False(t, found, "expired entry must not be returned")

	require.NoError(t, store.SetBytes(ctx, "c", []byte("3"), now.Add(time.Minute)))
	require.Equal(t, 2, store.Len())
	_, found, err = store.GetBytes(ctx, "b")
	require.NoError(t, err)
	require.False(t, found)

	store.Purge()
	require.Equal(t, 0, store.Len())
}
