/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package tokencache provides caching of introspected token claims in a distributed (or in-process) store.
// The lifetime of each entry is capped by both the configured cache duration and the token's own expiration.
package tokencache
