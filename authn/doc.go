/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package authn provides the authentication handler for OAuth2 reference (opaque) bearer tokens.
// The handler validates tokens via the token introspection endpoint (RFC 7662),
// collapses concurrent introspections of the same token into a single call
// and caches the introspection results.
package authn
