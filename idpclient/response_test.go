/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-refauth/claims"
)

func TestParseIntrospectionResponse(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantActive   bool
		wantClaims   claims.Claims
		wantMalforms bool
	}{
		{
			name:       "active without claims",
			body:       `{"active": true}`,
			wantActive: true,
			wantClaims: claims.Claims{},
		},
		{
			name:       "inactive",
			body:       `{"active": false}`,
			wantClaims: claims.Claims{},
		},
		{
			name: "all kinds of fields",
			body: `{
				"active": true,
				"sub": "user-1",
				"scope": "read  write",
				"exp": 1700000000,
				"admin": false,
				"aud": ["api1", "api2", null, 7],
				"cnf": {"x5t#S256": "abc"},
				"nothing": null
			}`,
			wantActive: true,
			wantClaims: claims.Claims{
				{Type: "admin", Value: "false"},
				{Type: "aud", Value: "api1"},
				{Type: "aud", Value: "api2"},
				{Type: "aud", Value: "7"},
				{Type: "cnf", Value: `{"x5t#S256":"abc"}`},
				{Type: "exp", Value: "1700000000"},
				{Type: "scope", Value: "read"},
				{Type: "scope", Value: "write"},
				{Type: "sub", Value: "user-1"},
			},
		},
		{name: "not JSON", body: `<html></html>`, wantMalforms: true},
		{name: "JSON array", body: `[{"active": true}]`, wantMalforms: true},
		{name: "null", body: `null`, wantMalforms: true},
		{name: "no active field", body: `{"sub": "user-1"}`, wantMalforms: true},
		{name: "null active field", body: `{"active": null}`, wantMalforms: true},
		{name: "string active field", body: `{"active": "true"}`, wantMalforms: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseIntrospectionResponse([]byte(tt.body))
			if tt.wantMalforms {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrMalformedResponse))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantActive, res.Active)
			require.Equal(t, tt.wantClaims, res.Claims)
		})
	}
}
