/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authn

import (
	"net/http"
	"strings"
)

// DefaultScheme is the default authentication scheme.
const DefaultScheme = "Bearer"

// DefaultQueryParam is the default name of the query parameter that carries the access token.
const DefaultQueryParam = "access_token"

// TokenRetriever extracts the token from the request. Empty string means there is no token.
type TokenRetriever func(r *http.Request) string

// FromAuthorizationHeader returns TokenRetriever that takes the token from the first "Authorization" header.
// The header value must start with the scheme (case-insensitive) followed by a space.
func FromAuthorizationHeader(scheme string) TokenRetriever {
	if scheme == "" {
		scheme = DefaultScheme
	}
	prefix := scheme + " "
	return func(r *http.Request) string {
		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
			return ""
		}
		return strings.TrimSpace(authHeader[len(prefix):])
	}
}

// FromQueryString returns TokenRetriever that takes the token from the first value of the query parameter.
func FromQueryString(name string) TokenRetriever {
	if name == "" {
		name = DefaultQueryParam
	}
	return func(r *http.Request) string {
		return r.URL.Query().Get(name)
	}
}

// FromFirst returns TokenRetriever that tries the retrievers in order and returns the first found token.
func FromFirst(retrievers ...TokenRetriever) TokenRetriever {
	return func(r *http.Request) string {
		for _, retrieve := range retrievers {
			if token := retrieve(r); token != "" {
				return token
			}
		}
		return ""
	}
}
