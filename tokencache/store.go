/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokencache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value store with absolute expiration of entries.
// No transactional guarantees are assumed, the last write wins.
type Store interface {
	// GetBytes returns the value by the key. The second returned value is false if there is no (alive) entry.
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	// SetBytes stores the value that should not be returned after expiresAt.
	SetBytes(ctx context.Context, key string, value []byte, expiresAt time.Time) error
}
