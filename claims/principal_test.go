/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package claims

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPrincipal(t *testing.T) {
	t.Run("default claim types", func(t *testing.T) {
		p := NewPrincipal(Claims{
			{Type: "name", Value: "alice"},
			{Type: "role", Value: "admin"},
			{Type: "role", Value: "viewer"},
		}, "", "", "Bearer")
		require.True(t, p.IsAuthenticated())
		require.Equal(t, "alice", p.Name())
		require.Equal(t, []string{"admin", "viewer"}, p.Roles())
		require.True(t, p.IsInRole("viewer"))
		require.False(t, p.IsInRole("owner"))
	})

	t.Run("custom claim types", func(t *testing.T) {
		p := NewPrincipal(Claims{
			{Type: "sub", Value: "bob"},
			{Type: "name", Value: "ignored"},
			{Type: "scope", Value: "api"},
		}, "sub", "scope", "introspection")
		require.Equal(t, "introspection", p.AuthenticationType)
		require.Equal(t, "bob", p.Name())
		require.True(t, p.IsInRole("api"))
	})

	t.Run("empty claims", func(t *testing.T) {
		p := NewPrincipal(nil, "", "", "Bearer")
		require.True(t, p.IsAuthenticated())
		require.Empty(t, p.Claims)
		require.Empty(t, p.Name())
	})

	t.Run("active marker is not exposed", func(t *testing.T) {
		p := NewPrincipal(Claims{{Type: "active", Value: "true"}, {Type: "sub", Value: "x"}}, "", "", "Bearer")
		require.Equal(t, Claims{{Type: "sub", Value: "x"}}, p.Claims)
	})

	t.Run("no authentication type", func(t *testing.T) {
		require.False(t, NewPrincipal(nil, "", "", "").IsAuthenticated())
		var p *Principal
		require.False(t, p.IsAuthenticated())
	})
}
