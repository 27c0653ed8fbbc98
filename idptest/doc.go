/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package idptest provides a simple HTTP server that mocks an authorization server
// with OpenID configuration (discovery), JWKS and token introspection (RFC 7662) endpoints.
package idptest
