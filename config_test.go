/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package refauth

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/acronis/go-appkit/config"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-refauth/tokencache"
	"github.com/acronis/go-refauth/tokencache/ristrettostore"
)

func TestConfig_Set(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
auth:
  httpClient:
    requestTimeout: 1m
  introspection:
    authority: https://my-idp.com
    clientId: api1
    clientSecret: secret
    clientCredentialStyle: authorizationHeader
    authorizationHeaderStyle: rfc6749
    tokenTypeHint: access_token
    discovery:
      requireHttps: false
      validateEndpoints: true
      additionalEndpointBaseAddresses:
        - https://*.my-idp.com/introspection
  tokenRetrieval:
    scheme: Bearer
    queryParam: access_token
  authenticationType: reference_token
  nameClaimType: preferred_username
  roleClaimType: groups
  skipTokensWithDots: true
  saveToken: false
  cache:
    enabled: true
    duration: 10m
    keyPrefix: "api1:"
    type: redis
    redis:
      addr: 127.0.0.1:6379
      password: redis-secret
      db: 2
      keyPrefix: "refauth-test:"
`)
		cfg := Config{}
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, &cfg)
		require.NoError(t, err)
		require.Equal(t, config.TimeDuration(time.Minute), cfg.HTTPClient.RequestTimeout)
		require.Equal(t, IntrospectionConfig{
			Authority:                "https://my-idp.com",
			ClientID:                 "api1",
			ClientSecret:             "secret",
			ClientCredentialStyle:    "authorizationHeader",
			AuthorizationHeaderStyle: "rfc6749",
			TokenTypeHint:            "access_token",
			Discovery: DiscoveryConfig{
				RequireHTTPS:                    false,
				AllowHTTPOnLoopback:             true,
				ValidateEndpoints:               true,
				RequireKeySet:                   true,
				AdditionalEndpointBaseAddresses: []string{"https://*.my-idp.com/introspection"},
			},
		}, cfg.Introspection)
		require.Equal(t, TokenRetrievalConfig{Scheme: "Bearer", QueryParam: "access_token"}, cfg.TokenRetrieval)
		require.Equal(t, "reference_token", cfg.AuthenticationType)
		require.Equal(t, "preferred_username", cfg.NameClaimType)
		require.Equal(t, "groups", cfg.RoleClaimType)
		require.True(t, cfg.SkipTokensWithDots)
		require.False(t, cfg.SaveToken)
		require.Equal(t, CacheConfig{
			Enabled:    true,
			Duration:   config.TimeDuration(10 * time.Minute),
			KeyPrefix:  "api1:",
			Type:       CacheTypeRedis,
			MaxEntries: tokencache.DefaultLRUStoreMaxEntries,
			Ristretto:  RistrettoCacheConfig{MaxCost: ristrettostore.DefaultMaxCost},
			Redis: RedisCacheConfig{
				Addr:      "127.0.0.1:6379",
				Password:  "redis-secret",
				DB:        2,
				KeyPrefix: "refauth-test:",
			},
		}, cfg.Cache)
	})

	t.Run("defaults", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
auth:
  introspection:
    endpoint: https://my-idp.com/connect/introspect
`)
		cfg := NewConfig()
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.NoError(t, err)

		expected := NewDefaultConfig()
		expected.Introspection.Endpoint = "https://my-idp.com/connect/introspect"
		expected.Introspection.Discovery.AdditionalEndpointBaseAddresses = cfg.Introspection.Discovery.AdditionalEndpointBaseAddresses
		require.Equal(t, expected, cfg)
		require.Empty(t, cfg.Introspection.Discovery.AdditionalEndpointBaseAddresses)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
introspectionAuth:
  introspection:
    authority: https://my-idp.com
  cache:
    enabled: true
    type: Ristretto
    ristretto:
      maxCost: 1024
`)
		cfg := NewConfig(WithKeyPrefix("introspectionAuth"))
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, "introspectionAuth", cfg.KeyPrefix())
		require.Equal(t, "https://my-idp.com", cfg.Introspection.Authority)
		require.True(t, cfg.Cache.Enabled)
		require.Equal(t, CacheTypeRistretto, cfg.Cache.Type)
		require.Equal(t, int64(1024), cfg.Cache.Ristretto.MaxCost)
	})
}

func TestConfig_SetErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfgData string
		errKey  string
		errMsg  string
	}{
		{
			name: "invalid HTTP client timeout",
			cfgData: `
auth:
  httpClient:
    requestTimeout: invalid
`,
			errKey: cfgKeyHTTPClientRequestTimeout,
			errMsg: "invalid duration",
		},
		{
			name: "negative HTTP client timeout",
			cfgData: `
auth:
  httpClient:
    requestTimeout: -1s
`,
			errKey: cfgKeyHTTPClientRequestTimeout,
			errMsg: "timeout should be non-negative",
		},
		{
			name: "invalid authority URL",
			cfgData: `
auth:
  introspection:
    authority: ://invalid-url
`,
			errKey: cfgKeyIntrospectionAuthority,
			errMsg: "missing protocol scheme",
		},
		{
			name: "invalid introspection endpoint URL",
			cfgData: `
auth:
  introspection:
    endpoint: ://invalid-url
`,
			errKey: cfgKeyIntrospectionEndpoint,
			errMsg: "missing protocol scheme",
		},
		{
			name: "unknown client credential style",
			cfgData: `
auth:
  introspection:
    clientCredentialStyle: cookie
`,
			errKey: cfgKeyIntrospectionClientCredentialStyle,
			errMsg: `unknown client credential style "cookie"`,
		},
		{
			name: "unknown authorization header style",
			cfgData: `
auth:
  introspection:
    authorizationHeaderStyle: rfc1234
`,
			errKey: cfgKeyIntrospectionAuthorizationHeaderStyle,
			errMsg: `unknown authorization header style "rfc1234"`,
		},
		{
			name: "additional endpoint base address without host",
			cfgData: `
auth:
  introspection:
    discovery:
      additionalEndpointBaseAddresses:
        - /introspection
`,
			errKey: cfgKeyDiscoveryAdditionalEndpointBaseAddresses,
			errMsg: "has no host",
		},
		{
			name: "invalid discovery flag",
			cfgData: `
auth:
  introspection:
    discovery:
      requireHttps: {}
`,
			errKey: cfgKeyDiscoveryRequireHTTPS,
			errMsg: "unable to cast",
		},
		{
			name: "scheme with whitespaces",
			cfgData: `
auth:
  tokenRetrieval:
    scheme: "My Bearer"
`,
			errKey: cfgKeyTokenRetrievalScheme,
			errMsg: "scheme should not contain whitespaces",
		},
		{
			name: "invalid cache duration",
			cfgData: `
auth:
  cache:
    duration: invalid
`,
			errKey: cfgKeyCacheDuration,
			errMsg: "invalid duration",
		},
		{
			name: "negative cache duration",
			cfgData: `
auth:
  cache:
    duration: -1m
`,
			errKey: cfgKeyCacheDuration,
			errMsg: "duration should be non-negative",
		},
		{
			name: "unknown cache type",
			cfgData: `
auth:
  cache:
    type: memcached
`,
			errKey: cfgKeyCacheType,
			errMsg: `unknown cache type "memcached"`,
		},
		{
			name: "negative cache max entries",
			cfgData: `
auth:
  cache:
    maxEntries: -1
`,
			errKey: cfgKeyCacheMaxEntries,
			errMsg: "max entries should be non-negative",
		},
		{
			name: "negative ristretto max cost",
			cfgData: `
auth:
  cache:
    ristretto:
      maxCost: -1
`,
			errKey: cfgKeyCacheRistrettoMaxCost,
			errMsg: "max cost should be non-negative",
		},
		{
			name: "redis cache without address",
			cfgData: `
auth:
  cache:
    enabled: true
    type: redis
`,
			errKey: cfgKeyCacheRedisAddr,
			errMsg: "address is required for the redis cache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgData := bytes.NewBufferString(tt.cfgData)
			cfg := Config{}
			err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, &cfg)
			require.ErrorContains(t, err, tt.errMsg)
			wantPrefix := cfgDefaultKeyPrefix + "." + tt.errKey
			require.Truef(t, strings.HasPrefix(err.Error(), wantPrefix),
				"expected error starts with %q, got %q", wantPrefix, err.Error())
		})
	}
}

func TestConfig_SetErrorsWithCustomKeyPrefix(t *testing.T) {
	cfgData := bytes.NewBufferString(`
introspectionAuth:
  cache:
    type: memcached
`)
	cfg := NewConfig(WithKeyPrefix("introspectionAuth"))
	err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
	require.ErrorContains(t, err, `unknown cache type "memcached"`)
	require.True(t, strings.HasPrefix(err.Error(), "introspectionAuth."+cfgKeyCacheType), err.Error())
}
