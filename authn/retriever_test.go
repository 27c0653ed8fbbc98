/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authn_test

import (
	"net/http"
	"net/http/httptest"
	gotesting "testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-refauth/authn"
)

func TestFromAuthorizationHeader(t *gotesting.T) {
	tests := []struct {
		name      string
		scheme    string
		headers   []string
		wantToken string
	}{
		{name: "no header"},
		{name: "bearer token", headers: []string{"Bearer ABC"}, wantToken: "ABC"},
		{name: "case-insensitive scheme", headers: []string{"bEaReR ABC"}, wantToken: "ABC"},
		{name: "token is trimmed", headers: []string{"Bearer  ABC \t"}, wantToken: "ABC"},
		{name: "another scheme", headers: []string{"Basic XYZ"}},
		{name: "scheme without token", headers: []string{"Bearer "}},
		{name: "scheme without space", headers: []string{"Bearer"}},
		{name: "scheme as a prefix of another word", headers: []string{"BearerABC"}},
		{name: "first header wins", headers: []string{"Bearer first", "Bearer second"}, wantToken: "first"},
		{name: "first header has another scheme", headers: []string{"Basic XYZ", "Bearer ABC"}},
		{name: "custom scheme", scheme: "Token", headers: []string{"Token ABC"}, wantToken: "ABC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *gotesting.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			for _, h := range tt.headers {
				req.Header.Add("Authorization", h)
			}
			require.Equal(t, tt.wantToken, authn.FromAuthorizationHeader(tt.scheme)(req))
		})
	}
}

func TestFromQueryString(t *gotesting.T) {
	tests := []struct {
		name      string
		param     string
		target    string
		wantToken string
	}{
		{name: "no query", target: "/"},
		{name: "default param", target: "/?access_token=ABC", wantToken: "ABC"},
		{name: "first value wins", target: "/?access_token=ABC&access_token=DEF", wantToken: "ABC"},
		{name: "custom param", param: "token", target: "/?token=ABC&access_token=DEF", wantToken: "ABC"},
		{name: "escaped value", target: "/?access_token=A%2BB", wantToken: "A+B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *gotesting.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, http.NoBody)
			require.Equal(t, tt.wantToken, authn.FromQueryString(tt.param)(req))
		})
	}
}

func TestFromFirst(t *gotesting.T) {
	retriever := authn.FromFirst(authn.FromAuthorizationHeader(""), authn.FromQueryString(""))

	req := httptest.NewRequest(http.MethodGet, "/?access_token=from-query", http.NoBody)
	require.Equal(t, "from-query", retriever(req))

	req.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", retriever(req))

	require.Empty(t, retriever(httptest.NewRequest(http.MethodGet, "/", http.NoBody)))
}
