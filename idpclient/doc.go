/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package idpclient provides a client for the OAuth2 token introspection endpoint (RFC 7662).
// The endpoint may be configured explicitly or discovered from the OpenID configuration of the authority.
package idpclient
