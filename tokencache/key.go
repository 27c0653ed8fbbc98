/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokencache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"unsafe"
)

// KeyGenerator derives a cache key from the token.
type KeyGenerator func(prefix, token string) string

// SHA256Key is the default KeyGenerator. It returns prefix + base64(sha256(token)).
func SHA256Key(prefix, token string) string {
	sum := sha256.Sum256(stringToBytesUnsafe(token))
	return prefix + base64.StdEncoding.EncodeToString(sum[:])
}

// SHA256HexKey returns prefix + hex(sha256(token)).
// It may be used for stores where keys are expected to be URL-safe.
func SHA256HexKey(prefix, token string) string {
	sum := sha256.Sum256(stringToBytesUnsafe(token))
	return prefix + hex.EncodeToString(sum[:])
}

// stringToBytesUnsafe converts string to byte slice without memory allocation.
// The returned slice must not be modified.
func stringToBytesUnsafe(s string) []byte {
	// nolint: gosec // memory optimization to prevent redundant slice copying
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
