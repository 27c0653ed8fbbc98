/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package refauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/redis/go-redis/v9"

	"github.com/acronis/go-refauth/authn"
	"github.com/acronis/go-refauth/idpclient"
	"github.com/acronis/go-refauth/tokencache"
	"github.com/acronis/go-refauth/tokencache/redisstore"
	"github.com/acronis/go-refauth/tokencache/ristrettostore"
)

type handlerOptions struct {
	logger                     log.FieldLogger
	prometheusLibInstanceLabel string
	events                     authn.Events
	cacheStore                 tokencache.Store
	cacheKeyGenerator          tokencache.KeyGenerator
	httpClient                 *http.Client
	clientAssertionUpdater     idpclient.ClientAssertionUpdater
}

// HandlerOption is an option for creating authn.Handler.
type HandlerOption func(options *handlerOptions)

// WithHandlerLogger sets the logger for authn.Handler.
func WithHandlerLogger(logger log.FieldLogger) HandlerOption {
	return func(options *handlerOptions) {
		options.logger = logger
	}
}

// WithHandlerPrometheusLibInstanceLabel sets the Prometheus lib instance label for authn.Handler.
func WithHandlerPrometheusLibInstanceLabel(label string) HandlerOption {
	return func(options *handlerOptions) {
		options.prometheusLibInstanceLabel = label
	}
}

// WithHandlerEvents sets the events for authn.Handler.
func WithHandlerEvents(events authn.Events) HandlerOption {
	return func(options *handlerOptions) {
		options.events = events
	}
}

// WithHandlerCacheStore sets the store for the introspection results.
// It replaces the store that is made from the configuration.
func WithHandlerCacheStore(store tokencache.Store) HandlerOption {
	return func(options *handlerOptions) {
		options.cacheStore = store
	}
}

// WithHandlerCacheKeyGenerator sets the generator of the cache keys.
func WithHandlerCacheKeyGenerator(keyGenerator tokencache.KeyGenerator) HandlerOption {
	return func(options *handlerOptions) {
		options.cacheKeyGenerator = keyGenerator
	}
}

// WithHandlerHTTPClient sets the HTTP client for discovery and introspection requests.
// With a custom HTTP client, the client id may be omitted in the configuration
// (e.g. when the client authenticates via mTLS).
func WithHandlerHTTPClient(httpClient *http.Client) HandlerOption {
	return func(options *handlerOptions) {
		options.httpClient = httpClient
	}
}

// WithHandlerClientAssertionUpdater sets the supplier of client assertions (e.g. idpclient.JWTClientAssertionUpdater).
// Client assertions are sent instead of the client secret.
func WithHandlerClientAssertionUpdater(updater idpclient.ClientAssertionUpdater) HandlerOption {
	return func(options *handlerOptions) {
		options.clientAssertionUpdater = updater
	}
}

// clientAssertionEvents overrides the client assertion update of the wrapped events.
type clientAssertionEvents struct {
	authn.Events
	updater idpclient.ClientAssertionUpdater
}

func (e clientAssertionEvents) UpdateClientAssertion(
	ctx context.Context, c idpclient.UpdateClientAssertionContext,
) (*idpclient.ClientAssertionUpdate, error) {
	return e.updater.UpdateClientAssertion(ctx, c)
}

// NewAuthenticationHandler creates a new authn.Handler with the given configuration.
// If cfg.Cache.Enabled is true and no store is passed via WithHandlerCacheStore,
// the store is made by NewCacheStore, and the returned close function releases it.
func NewAuthenticationHandler(cfg *Config, opts ...HandlerOption) (*authn.Handler, func() error, error) {
	var options handlerOptions
	for _, opt := range opts {
		opt(&options)
	}

	clientOpts, err := makeClientOpts(cfg, &options)
	if err != nil {
		return nil, nil, err
	}

	events := options.events
	if events == nil {
		events = authn.NopEvents{}
	}
	if options.clientAssertionUpdater != nil {
		events = clientAssertionEvents{Events: events, updater: options.clientAssertionUpdater}
	}

	closeFn := func() error { return nil }
	cacheStore := options.cacheStore
	if cfg.Cache.Enabled && cacheStore == nil {
		if cacheStore, closeFn, err = NewCacheStore(&cfg.Cache, options.prometheusLibInstanceLabel); err != nil {
			return nil, nil, err
		}
	}

	tokenRetriever := authn.FromAuthorizationHeader(cfg.TokenRetrieval.Scheme)
	if cfg.TokenRetrieval.QueryParam != "" {
		tokenRetriever = authn.FromFirst(tokenRetriever, authn.FromQueryString(cfg.TokenRetrieval.QueryParam))
	}

	handler, err := authn.NewHandler(authn.HandlerOpts{
		Scheme:                     cfg.TokenRetrieval.Scheme,
		AuthenticationType:         cfg.AuthenticationType,
		NameClaimType:              cfg.NameClaimType,
		RoleClaimType:              cfg.RoleClaimType,
		TokenRetriever:             tokenRetriever,
		SkipTokensWithDots:         cfg.SkipTokensWithDots,
		SaveToken:                  cfg.SaveToken,
		EnableCaching:              cfg.Cache.Enabled,
		CacheDuration:              time.Duration(cfg.Cache.Duration),
		CacheKeyPrefix:             cfg.Cache.KeyPrefix,
		CacheKeyGenerator:          options.cacheKeyGenerator,
		Cache:                      cacheStore,
		Introspection:              clientOpts,
		Events:                     events,
		Logger:                     options.logger,
		PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
	})
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return handler, closeFn, nil
}

func makeClientOpts(cfg *Config, options *handlerOptions) (idpclient.ClientOpts, error) {
	credentialStyle, err := idpclient.ParseCredentialStyle(cfg.Introspection.ClientCredentialStyle)
	if err != nil {
		return idpclient.ClientOpts{}, err
	}
	basicAuthStyle, err := idpclient.ParseBasicAuthStyle(cfg.Introspection.AuthorizationHeaderStyle)
	if err != nil {
		return idpclient.ClientOpts{}, err
	}
	discovery := cfg.Introspection.Discovery
	return idpclient.ClientOpts{
		Authority:       cfg.Introspection.Authority,
		Endpoint:        cfg.Introspection.Endpoint,
		ClientID:        cfg.Introspection.ClientID,
		ClientSecret:    cfg.Introspection.ClientSecret,
		CredentialStyle: credentialStyle,
		BasicAuthStyle:  basicAuthStyle,
		TokenTypeHint:   cfg.Introspection.TokenTypeHint,
		DiscoveryPolicy: &idpclient.DiscoveryPolicy{
			RequireHTTPS:                    discovery.RequireHTTPS,
			AllowHTTPOnLoopback:             discovery.AllowHTTPOnLoopback,
			ValidateEndpoints:               discovery.ValidateEndpoints,
			AdditionalEndpointBaseAddresses: discovery.AdditionalEndpointBaseAddresses,
			RequireKeySet:                   discovery.RequireKeySet,
		},
		HTTPClient:                 options.httpClient,
		HTTPRequestTimeout:         time.Duration(cfg.HTTPClient.RequestTimeout),
		Logger:                     options.logger,
		PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
	}, nil
}

// NewCacheStore creates the store for the introspection results according to the configuration.
// The returned close function releases resources of the store (background goroutines, connections).
func NewCacheStore(cfg *CacheConfig, prometheusLibInstanceLabel string) (tokencache.Store, func() error, error) {
	switch cfg.Type {
	case CacheTypeMemory, "":
		store, err := tokencache.NewLRUStore(tokencache.LRUStoreOpts{
			MaxEntries:                 cfg.MaxEntries,
			PrometheusLibInstanceLabel: prometheusLibInstanceLabel,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("new in-memory cache store: %w", err)
		}
		return store, func() error { return nil }, nil

	case CacheTypeRistretto:
		store, err := ristrettostore.New(ristrettostore.Opts{MaxCost: cfg.Ristretto.MaxCost})
		if err != nil {
			return nil, nil, fmt.Errorf("new ristretto cache store: %w", err)
		}
		return store, func() error { store.Close(); return nil }, nil

	case CacheTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store, err := redisstore.New(client, redisstore.Opts{KeyPrefix: cfg.Redis.KeyPrefix})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("new redis cache store: %w", err)
		}
		return store, client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache type %q", cfg.Type)
}
