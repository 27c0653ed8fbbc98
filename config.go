/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package refauth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-appkit/config"

	"github.com/acronis/go-refauth/authn"
	"github.com/acronis/go-refauth/idpclient"
	"github.com/acronis/go-refauth/internal/idputil"
	"github.com/acronis/go-refauth/tokencache"
	"github.com/acronis/go-refauth/tokencache/ristrettostore"
)

const cfgDefaultKeyPrefix = "auth"

const (
	cfgKeyHTTPClientRequestTimeout = "httpClient.requestTimeout"

	cfgKeyIntrospectionAuthority                = "introspection.authority"
	cfgKeyIntrospectionEndpoint                 = "introspection.endpoint"
	cfgKeyIntrospectionClientID                 = "introspection.clientId"
	cfgKeyIntrospectionClientSecret             = "introspection.clientSecret" // nolint:gosec // false positive
	cfgKeyIntrospectionClientCredentialStyle    = "introspection.clientCredentialStyle"
	cfgKeyIntrospectionAuthorizationHeaderStyle = "introspection.authorizationHeaderStyle"
	cfgKeyIntrospectionTokenTypeHint            = "introspection.tokenTypeHint" // nolint:gosec // false positive

	cfgKeyDiscoveryRequireHTTPS                    = "introspection.discovery.requireHttps"
	cfgKeyDiscoveryAllowHTTPOnLoopback             = "introspection.discovery.allowHttpOnLoopback"
	cfgKeyDiscoveryValidateEndpoints               = "introspection.discovery.validateEndpoints"
	cfgKeyDiscoveryRequireKeySet                   = "introspection.discovery.requireKeySet"
	cfgKeyDiscoveryAdditionalEndpointBaseAddresses = "introspection.discovery.additionalEndpointBaseAddresses"

	cfgKeyTokenRetrievalScheme     = "tokenRetrieval.scheme"
	cfgKeyTokenRetrievalQueryParam = "tokenRetrieval.queryParam"

	cfgKeyAuthenticationType = "authenticationType"
	cfgKeyNameClaimType      = "nameClaimType"
	cfgKeyRoleClaimType      = "roleClaimType"
	cfgKeySkipTokensWithDots = "skipTokensWithDots"
	cfgKeySaveToken          = "saveToken"

	cfgKeyCacheEnabled          = "cache.enabled"
	cfgKeyCacheDuration         = "cache.duration"
	cfgKeyCacheKeyPrefix        = "cache.keyPrefix"
	cfgKeyCacheType             = "cache.type"
	cfgKeyCacheMaxEntries       = "cache.maxEntries"
	cfgKeyCacheRistrettoMaxCost = "cache.ristretto.maxCost"
	cfgKeyCacheRedisAddr        = "cache.redis.addr"
	cfgKeyCacheRedisPassword    = "cache.redis.password" // nolint:gosec // false positive
	cfgKeyCacheRedisDB          = "cache.redis.db"
	cfgKeyCacheRedisKeyPrefix   = "cache.redis.keyPrefix"
)

// CacheType is a type of the store for the introspection results.
type CacheType string

// Supported cache types.
const (
	CacheTypeMemory    CacheType = "memory"
	CacheTypeRistretto CacheType = "ristretto"
	CacheTypeRedis     CacheType = "redis"
)

// Config represents a set of configuration parameters for authentication by reference tokens.
type Config struct {
	HTTPClient     HTTPClientConfig     `mapstructure:"httpClient" yaml:"httpClient" json:"httpClient"`
	Introspection  IntrospectionConfig  `mapstructure:"introspection" yaml:"introspection" json:"introspection"`
	TokenRetrieval TokenRetrievalConfig `mapstructure:"tokenRetrieval" yaml:"tokenRetrieval" json:"tokenRetrieval"`

	AuthenticationType string `mapstructure:"authenticationType" yaml:"authenticationType" json:"authenticationType"`
	NameClaimType      string `mapstructure:"nameClaimType" yaml:"nameClaimType" json:"nameClaimType"`
	RoleClaimType      string `mapstructure:"roleClaimType" yaml:"roleClaimType" json:"roleClaimType"`
	SkipTokensWithDots bool   `mapstructure:"skipTokensWithDots" yaml:"skipTokensWithDots" json:"skipTokensWithDots"`
	SaveToken          bool   `mapstructure:"saveToken" yaml:"saveToken" json:"saveToken"`

	Cache CacheConfig `mapstructure:"cache" yaml:"cache" json:"cache"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	var opts = configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	defaultPolicy := idpclient.DefaultDiscoveryPolicy()
	cfg.HTTPClient.RequestTimeout = config.TimeDuration(idputil.DefaultHTTPRequestTimeout)
	cfg.Introspection = IntrospectionConfig{
		ClientCredentialStyle:    idpclient.CredentialStylePostBody.String(),
		AuthorizationHeaderStyle: idpclient.BasicAuthStyleRFC2617.String(),
		TokenTypeHint:            idpclient.DefaultTokenTypeHint,
		Discovery: DiscoveryConfig{
			RequireHTTPS:        defaultPolicy.RequireHTTPS,
			AllowHTTPOnLoopback: defaultPolicy.AllowHTTPOnLoopback,
			ValidateEndpoints:   defaultPolicy.ValidateEndpoints,
			RequireKeySet:       defaultPolicy.RequireKeySet,
		},
	}
	cfg.TokenRetrieval.Scheme = authn.DefaultScheme
	cfg.SaveToken = true
	cfg.Cache = CacheConfig{
		Duration:   config.TimeDuration(tokencache.DefaultDuration),
		Type:       CacheTypeMemory,
		MaxEntries: tokencache.DefaultLRUStoreMaxEntries,
		Ristretto:  RistrettoCacheConfig{MaxCost: ristrettostore.DefaultMaxCost},
	}
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for auth in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	defaultPolicy := idpclient.DefaultDiscoveryPolicy()

	dp.SetDefault(cfgKeyHTTPClientRequestTimeout, idputil.DefaultHTTPRequestTimeout.String())

	dp.SetDefault(cfgKeyIntrospectionClientCredentialStyle, idpclient.CredentialStylePostBody.String())
	dp.SetDefault(cfgKeyIntrospectionAuthorizationHeaderStyle, idpclient.BasicAuthStyleRFC2617.String())
	dp.SetDefault(cfgKeyIntrospectionTokenTypeHint, idpclient.DefaultTokenTypeHint)
	dp.SetDefault(cfgKeyDiscoveryRequireHTTPS, defaultPolicy.RequireHTTPS)
	dp.SetDefault(cfgKeyDiscoveryAllowHTTPOnLoopback, defaultPolicy.AllowHTTPOnLoopback)
	dp.SetDefault(cfgKeyDiscoveryValidateEndpoints, defaultPolicy.ValidateEndpoints)
	dp.SetDefault(cfgKeyDiscoveryRequireKeySet, defaultPolicy.RequireKeySet)

	dp.SetDefault(cfgKeyTokenRetrievalScheme, authn.DefaultScheme)
	dp.SetDefault(cfgKeySaveToken, true)

	dp.SetDefault(cfgKeyCacheDuration, tokencache.DefaultDuration.String())
	dp.SetDefault(cfgKeyCacheType, string(CacheTypeMemory))
	dp.SetDefault(cfgKeyCacheMaxEntries, tokencache.DefaultLRUStoreMaxEntries)
	dp.SetDefault(cfgKeyCacheRistrettoMaxCost, ristrettostore.DefaultMaxCost)
}

// HTTPClientConfig is a configuration of the HTTP client that is used for discovery and introspection requests.
type HTTPClientConfig struct {
	RequestTimeout config.TimeDuration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`
}

// IntrospectionConfig is a configuration of how tokens are introspected.
// Either Authority or Endpoint must be set.
type IntrospectionConfig struct {
	Authority string `mapstructure:"authority" yaml:"authority" json:"authority"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`

	ClientID                 string `mapstructure:"clientId" yaml:"clientId" json:"clientId"`
	ClientSecret             string `mapstructure:"clientSecret" yaml:"clientSecret" json:"clientSecret"`
	ClientCredentialStyle    string `mapstructure:"clientCredentialStyle" yaml:"clientCredentialStyle" json:"clientCredentialStyle"`
	AuthorizationHeaderStyle string `mapstructure:"authorizationHeaderStyle" yaml:"authorizationHeaderStyle" json:"authorizationHeaderStyle"` // nolint:lll
	TokenTypeHint            string `mapstructure:"tokenTypeHint" yaml:"tokenTypeHint" json:"tokenTypeHint"`

	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery" json:"discovery"`
}

// DiscoveryConfig is a configuration of how the discovery document is validated.
type DiscoveryConfig struct {
	RequireHTTPS                    bool     `mapstructure:"requireHttps" yaml:"requireHttps" json:"requireHttps"`
	AllowHTTPOnLoopback             bool     `mapstructure:"allowHttpOnLoopback" yaml:"allowHttpOnLoopback" json:"allowHttpOnLoopback"`
	ValidateEndpoints               bool     `mapstructure:"validateEndpoints" yaml:"validateEndpoints" json:"validateEndpoints"`
	RequireKeySet                   bool     `mapstructure:"requireKeySet" yaml:"requireKeySet" json:"requireKeySet"`
	AdditionalEndpointBaseAddresses []string `mapstructure:"additionalEndpointBaseAddresses" yaml:"additionalEndpointBaseAddresses" json:"additionalEndpointBaseAddresses"` // nolint:lll
}

// TokenRetrievalConfig is a configuration of how the token is taken from the request.
// The "Authorization" header is always checked first, the query parameter is checked only if it's set.
type TokenRetrievalConfig struct {
	Scheme     string `mapstructure:"scheme" yaml:"scheme" json:"scheme"`
	QueryParam string `mapstructure:"queryParam" yaml:"queryParam" json:"queryParam"`
}

// CacheConfig is a configuration of the introspection results cache.
type CacheConfig struct {
	Enabled    bool                 `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Duration   config.TimeDuration  `mapstructure:"duration" yaml:"duration" json:"duration"`
	KeyPrefix  string               `mapstructure:"keyPrefix" yaml:"keyPrefix" json:"keyPrefix"`
	Type       CacheType            `mapstructure:"type" yaml:"type" json:"type"`
	MaxEntries int                  `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`
	Ristretto  RistrettoCacheConfig `mapstructure:"ristretto" yaml:"ristretto" json:"ristretto"`
	Redis      RedisCacheConfig     `mapstructure:"redis" yaml:"redis" json:"redis"`
}

// RistrettoCacheConfig is a configuration of the ristretto cache.
type RistrettoCacheConfig struct {
	MaxCost int64 `mapstructure:"maxCost" yaml:"maxCost" json:"maxCost"`
}

// RedisCacheConfig is a configuration of the Redis cache.
type RedisCacheConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password  string `mapstructure:"password" yaml:"password" json:"password"`
	DB        int    `mapstructure:"db" yaml:"db" json:"db"`
	KeyPrefix string `mapstructure:"keyPrefix" yaml:"keyPrefix" json:"keyPrefix"`
}

// Set sets auth configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	var reqTimeout time.Duration
	if reqTimeout, err = dp.GetDuration(cfgKeyHTTPClientRequestTimeout); err != nil {
		return err
	}
	if reqTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyHTTPClientRequestTimeout, fmt.Errorf("timeout should be non-negative"))
	}
	c.HTTPClient.RequestTimeout = config.TimeDuration(reqTimeout)

	if err = c.setIntrospectionConfig(dp); err != nil {
		return err
	}
	if err = c.setTokenRetrievalConfig(dp); err != nil {
		return err
	}
	if c.AuthenticationType, err = dp.GetString(cfgKeyAuthenticationType); err != nil {
		return err
	}
	if c.NameClaimType, err = dp.GetString(cfgKeyNameClaimType); err != nil {
		return err
	}
	if c.RoleClaimType, err = dp.GetString(cfgKeyRoleClaimType); err != nil {
		return err
	}
	if c.SkipTokensWithDots, err = dp.GetBool(cfgKeySkipTokensWithDots); err != nil {
		return err
	}
	if c.SaveToken, err = dp.GetBool(cfgKeySaveToken); err != nil {
		return err
	}
	return c.setCacheConfig(dp)
}

func (c *Config) setIntrospectionConfig(dp config.DataProvider) error {
	var err error

	if c.Introspection.Authority, err = dp.GetString(cfgKeyIntrospectionAuthority); err != nil {
		return err
	}
	if c.Introspection.Authority != "" {
		if _, err = url.ParseRequestURI(c.Introspection.Authority); err != nil {
			return dp.WrapKeyErr(cfgKeyIntrospectionAuthority, err)
		}
	}
	if c.Introspection.Endpoint, err = dp.GetString(cfgKeyIntrospectionEndpoint); err != nil {
		return err
	}
	if c.Introspection.Endpoint != "" {
		if _, err = url.ParseRequestURI(c.Introspection.Endpoint); err != nil {
			return dp.WrapKeyErr(cfgKeyIntrospectionEndpoint, err)
		}
	}
	if c.Introspection.ClientID, err = dp.GetString(cfgKeyIntrospectionClientID); err != nil {
		return err
	}
	if c.Introspection.ClientSecret, err = dp.GetString(cfgKeyIntrospectionClientSecret); err != nil {
		return err
	}
	if c.Introspection.ClientCredentialStyle, err = dp.GetString(cfgKeyIntrospectionClientCredentialStyle); err != nil {
		return err
	}
	if _, err = idpclient.ParseCredentialStyle(c.Introspection.ClientCredentialStyle); err != nil {
		return dp.WrapKeyErr(cfgKeyIntrospectionClientCredentialStyle, err)
	}
	if c.Introspection.AuthorizationHeaderStyle, err = dp.GetString(cfgKeyIntrospectionAuthorizationHeaderStyle); err != nil {
		return err
	}
	if _, err = idpclient.ParseBasicAuthStyle(c.Introspection.AuthorizationHeaderStyle); err != nil {
		return dp.WrapKeyErr(cfgKeyIntrospectionAuthorizationHeaderStyle, err)
	}
	if c.Introspection.TokenTypeHint, err = dp.GetString(cfgKeyIntrospectionTokenTypeHint); err != nil {
		return err
	}

	// Discovery
	discovery := &c.Introspection.Discovery
	if discovery.RequireHTTPS, err = dp.GetBool(cfgKeyDiscoveryRequireHTTPS); err != nil {
		return err
	}
	if discovery.AllowHTTPOnLoopback, err = dp.GetBool(cfgKeyDiscoveryAllowHTTPOnLoopback); err != nil {
		return err
	}
	if discovery.ValidateEndpoints, err = dp.GetBool(cfgKeyDiscoveryValidateEndpoints); err != nil {
		return err
	}
	if discovery.RequireKeySet, err = dp.GetBool(cfgKeyDiscoveryRequireKeySet); err != nil {
		return err
	}
	if discovery.AdditionalEndpointBaseAddresses, err = dp.GetStringSlice(
		cfgKeyDiscoveryAdditionalEndpointBaseAddresses,
	); err != nil {
		return err
	}
	if _, err = idputil.NewEndpointMatcher(discovery.AdditionalEndpointBaseAddresses...); err != nil {
		return dp.WrapKeyErr(cfgKeyDiscoveryAdditionalEndpointBaseAddresses, err)
	}

	return nil
}

func (c *Config) setTokenRetrievalConfig(dp config.DataProvider) error {
	var err error
	if c.TokenRetrieval.Scheme, err = dp.GetString(cfgKeyTokenRetrievalScheme); err != nil {
		return err
	}
	if strings.ContainsAny(c.TokenRetrieval.Scheme, " \t") {
		return dp.WrapKeyErr(cfgKeyTokenRetrievalScheme, fmt.Errorf("scheme should not contain whitespaces"))
	}
	if c.TokenRetrieval.QueryParam, err = dp.GetString(cfgKeyTokenRetrievalQueryParam); err != nil {
		return err
	}
	return nil
}

func (c *Config) setCacheConfig(dp config.DataProvider) error {
	var err error

	if c.Cache.Enabled, err = dp.GetBool(cfgKeyCacheEnabled); err != nil {
		return err
	}
	var duration time.Duration
	if duration, err = dp.GetDuration(cfgKeyCacheDuration); err != nil {
		return err
	}
	if duration < 0 {
		return dp.WrapKeyErr(cfgKeyCacheDuration, fmt.Errorf("duration should be non-negative"))
	}
	c.Cache.Duration = config.TimeDuration(duration)
	if c.Cache.KeyPrefix, err = dp.GetString(cfgKeyCacheKeyPrefix); err != nil {
		return err
	}

	var cacheType string
	if cacheType, err = dp.GetString(cfgKeyCacheType); err != nil {
		return err
	}
	switch CacheType(strings.ToLower(cacheType)) {
	case CacheTypeMemory, CacheTypeRistretto, CacheTypeRedis:
		c.Cache.Type = CacheType(strings.ToLower(cacheType))
	default:
		return dp.WrapKeyErr(cfgKeyCacheType, fmt.Errorf("unknown cache type %q, should be one of %q, %q or %q",
			cacheType, CacheTypeMemory, CacheTypeRistretto, CacheTypeRedis))
	}

	if c.Cache.MaxEntries, err = dp.GetInt(cfgKeyCacheMaxEntries); err != nil {
		return err
	}
	if c.Cache.MaxEntries < 0 {
		return dp.WrapKeyErr(cfgKeyCacheMaxEntries, fmt.Errorf("max entries should be non-negative"))
	}

	var maxCost int
	if maxCost, err = dp.GetInt(cfgKeyCacheRistrettoMaxCost); err != nil {
		return err
	}
	if maxCost < 0 {
		return dp.WrapKeyErr(cfgKeyCacheRistrettoMaxCost, fmt.Errorf("max cost should be non-negative"))
	}
	c.Cache.Ristretto.MaxCost = int64(maxCost)

	// Redis
	if c.Cache.Redis.Addr, err = dp.GetString(cfgKeyCacheRedisAddr); err != nil {
		return err
	}
	if c.Cache.Enabled && c.Cache.Type == CacheTypeRedis && c.Cache.Redis.Addr == "" {
		return dp.WrapKeyErr(cfgKeyCacheRedisAddr, fmt.Errorf("address is required for the redis cache"))
	}
	if c.Cache.Redis.Password, err = dp.GetString(cfgKeyCacheRedisPassword); err != nil {
		return err
	}
	if c.Cache.Redis.DB, err = dp.GetInt(cfgKeyCacheRedisDB); err != nil {
		return err
	}
	if c.Cache.Redis.KeyPrefix, err = dp.GetString(cfgKeyCacheRedisKeyPrefix); err != nil {
		return err
	}

	return nil
}
