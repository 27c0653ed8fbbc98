/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"
	"golang.org/x/sync/singleflight"

	"github.com/acronis/go-refauth/claims"
	"github.com/acronis/go-refauth/idpclient"
	"github.com/acronis/go-refauth/internal/idputil"
	"github.com/acronis/go-refauth/internal/metrics"
	"github.com/acronis/go-refauth/tokencache"
)

// Configuration errors returned by NewHandler.
var (
	ErrTokenRetrieverMissing = errors.New("token retriever must be set")
	ErrCacheStoreMissing     = errors.New("caching is enabled, but no cache store is set")
)

// ErrIntrospectionPanicked is returned when a hook panics during the shared token introspection.
var ErrIntrospectionPanicked = errors.New("token introspection panicked")

// HandlerOpts contains options for Handler.
type HandlerOpts struct {
	// Scheme is the authentication scheme. DefaultScheme ("Bearer") is used if empty.
	Scheme string

	// AuthenticationType is set into the principal. Scheme is used if empty.
	AuthenticationType string

	// NameClaimType and RoleClaimType define which claims hold the name and the roles of the principal.
	NameClaimType string
	RoleClaimType string

	// TokenRetriever extracts the token from the request. It's required.
	TokenRetriever TokenRetriever

	// SkipTokensWithDots makes the handler ignore tokens with dots, such tokens are most likely JWTs.
	SkipTokensWithDots bool

	// SaveToken makes the handler keep the raw token in the successful result.
	SaveToken bool

	// EnableCaching enables caching of the introspection results in the Cache.
	EnableCaching bool

	// CacheDuration is the maximum lifetime of the cached result. tokencache.DefaultDuration is used if zero.
	// Results are never cached longer than the token itself lives.
	CacheDuration time.Duration

	// CacheKeyPrefix is prepended to the cache keys.
	CacheKeyPrefix string

	// CacheKeyGenerator makes the cache key from the token. tokencache.SHA256Key is used if nil.
	CacheKeyGenerator tokencache.KeyGenerator

	// Cache is the store for the introspection results. It's required if EnableCaching is set.
	Cache tokencache.Store

	// Introspection contains options of the introspection client.
	// Hooks of the client are taken from Events if not set explicitly.
	Introspection idpclient.ClientOpts

	Events Events

	Logger log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	// It allows distinguishing metrics from different instances of the same library.
	PrometheusLibInstanceLabel string
}

// Handler authenticates requests with reference tokens.
// At most one introspection request per token is in flight at any time,
// concurrent requests with the same token share its result.
type Handler struct {
	scheme             string
	authenticationType string
	nameClaimType      string
	roleClaimType      string
	tokenRetriever     TokenRetriever
	skipTokensWithDots bool
	saveToken          bool
	cacheDuration      time.Duration
	cacheKeyPrefix     string
	cacheKeyGenerator  tokencache.KeyGenerator
	claimsCache        *tokencache.ClaimsCache
	client             *idpclient.Client
	inFlight           singleflight.Group
	events             Events
	logger             log.FieldLogger
	promMetrics        *metrics.PrometheusMetrics
}

// NewHandler creates a new Handler.
// All configuration errors are reported here, no requests are sent to the authorization server.
func NewHandler(opts HandlerOpts) (*Handler, error) {
	if opts.Events == nil {
		opts.Events = NopEvents{}
	}
	clientOpts := opts.Introspection
	if clientOpts.Hooks == nil {
		clientOpts.Hooks = opts.Events
	}
	if clientOpts.Logger == nil {
		clientOpts.Logger = opts.Logger
	}
	if clientOpts.PrometheusLibInstanceLabel == "" {
		clientOpts.PrometheusLibInstanceLabel = opts.PrometheusLibInstanceLabel
	}
	client, err := idpclient.NewClient(clientOpts)
	if err != nil {
		return nil, err
	}

	if opts.TokenRetriever == nil {
		return nil, ErrTokenRetrieverMissing
	}
	if opts.EnableCaching && opts.Cache == nil {
		return nil, ErrCacheStoreMissing
	}

	if opts.Scheme == "" {
		opts.Scheme = DefaultScheme
	}
	if opts.AuthenticationType == "" {
		opts.AuthenticationType = opts.Scheme
	}
	if opts.CacheDuration <= 0 {
		opts.CacheDuration = tokencache.DefaultDuration
	}
	if opts.CacheKeyGenerator == nil {
		opts.CacheKeyGenerator = tokencache.SHA256Key
	}

	logger := idputil.PrepareLogger(opts.Logger)
	h := &Handler{
		scheme:             opts.Scheme,
		authenticationType: opts.AuthenticationType,
		nameClaimType:      opts.NameClaimType,
		roleClaimType:      opts.RoleClaimType,
		tokenRetriever:     opts.TokenRetriever,
		skipTokensWithDots: opts.SkipTokensWithDots,
		saveToken:          opts.SaveToken,
		cacheDuration:      opts.CacheDuration,
		cacheKeyPrefix:     opts.CacheKeyPrefix,
		cacheKeyGenerator:  opts.CacheKeyGenerator,
		client:             client,
		events:             opts.Events,
		logger:             logger,
		promMetrics:        metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceAuthenticationHandler),
	}
	if opts.EnableCaching {
		h.claimsCache = tokencache.NewClaimsCacheWithOpts(opts.Cache, tokencache.ClaimsCacheOpts{Logger: opts.Logger})
	}
	return h, nil
}

// Scheme returns the authentication scheme of the handler.
func (h *Handler) Scheme() string {
	return h.scheme
}

// Client returns the introspection client used by the handler.
func (h *Handler) Client() *idpclient.Client {
	return h.client
}

// Authenticate authenticates the request.
// StatusNone is returned if there is no token in the request or the token is skipped.
// Failures are reported via the AuthenticationFailed event, successes via the TokenValidated one.
func (h *Handler) Authenticate(r *http.Request) Result {
	ctx := r.Context()

	token := h.tokenRetriever(r)
	if token == "" {
		return NoResult()
	}

	if h.skipTokensWithDots && strings.Contains(token, ".") {
		h.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("token contains a dot, skipped because it's most likely a JWT")
		})
		h.promMetrics.IncTokenIntrospectionsTotal(metrics.TokenIntrospectionStatusSkipped)
		return NoResult()
	}

	var cacheKey string
	if h.claimsCache != nil {
		cacheKey = h.cacheKeyGenerator(h.cacheKeyPrefix, token)
		cachedClaims, found, err := h.claimsCache.Get(ctx, cacheKey)
		switch {
		case err != nil:
			h.logger.Warn("failed to get token claims from cache, the token will be introspected", log.Error(err))
		case found:
			h.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
				logFunc("token claims are found in cache")
			})
			h.promMetrics.IncTokenIntrospectionsTotal(metrics.TokenIntrospectionStatusCacheHit)
			if cachedClaims.IsInactive() {
				return h.fail(r, ErrCachedTokenNotActive)
			}
			return h.succeed(r, token, cachedClaims)
		default:
			h.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
				logFunc("token claims are not found in cache")
			})
		}
	}

	resp, err := h.introspect(ctx, token, cacheKey)
	if err != nil {
		h.promMetrics.IncTokenIntrospectionsTotal(metrics.TokenIntrospectionStatusError)
		return h.fail(r, err)
	}
	if !resp.Active {
		h.promMetrics.IncTokenIntrospectionsTotal(metrics.TokenIntrospectionStatusNotActive)
		return h.fail(r, ErrTokenNotActive)
	}
	h.promMetrics.IncTokenIntrospectionsTotal(metrics.TokenIntrospectionStatusActive)
	return h.succeed(r, token, resp.Claims)
}

// introspect sends the introspection request shared by all concurrent callers with the same token.
// The shared request is not canceled when the caller's context is done, other callers may still wait for it.
func (h *Handler) introspect(ctx context.Context, token, cacheKey string) (idpclient.IntrospectionResponse, error) {
	resultCh := h.inFlight.DoChan(token, func() (_ interface{}, err error) {
		defer func() {
			if p := recover(); p != nil {
				h.logger.Error(fmt.Sprintf("panic during token introspection: %v", p),
					log.String("stack", string(debug.Stack())))
				err = fmt.Errorf("%w: %v", ErrIntrospectionPanicked, p)
			}
		}()
		sharedCtx := context.WithoutCancel(ctx)
		resp, err := h.client.Introspect(sharedCtx, token)
		if err != nil {
			h.logger.Error("token introspection failed", log.Error(err))
			return nil, err
		}
		if h.claimsCache != nil {
			h.cacheIntrospectionResult(sharedCtx, cacheKey, resp)
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return idpclient.IntrospectionResponse{}, fmt.Errorf("wait for token introspection: %w", ctx.Err())
	case res := <-resultCh:
		if res.Shared {
			h.promMetrics.IncSharedIntrospectionsTotal()
		}
		if res.Err != nil {
			return idpclient.IntrospectionResponse{}, res.Err
		}
		return res.Val.(idpclient.IntrospectionResponse), nil
	}
}

func (h *Handler) cacheIntrospectionResult(ctx context.Context, cacheKey string, resp idpclient.IntrospectionResponse) {
	cl := resp.Claims
	if !resp.Active {
		cl = cl.WithInactiveMarker()
	}
	if err := h.claimsCache.Set(ctx, cacheKey, cl, h.cacheDuration); err != nil {
		h.logger.Warn("failed to put token claims into cache", log.Error(err))
	}
}

func (h *Handler) fail(r *http.Request, err error) Result {
	h.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc("authentication failed", log.Error(err))
	})
	if res := h.events.AuthenticationFailed(r.Context(), AuthenticationFailedContext{
		Request: r,
		Scheme:  h.scheme,
		Err:     err,
	}); res != nil {
		return *res
	}
	return Fail(err)
}

func (h *Handler) succeed(r *http.Request, token string, cl claims.Claims) Result {
	principal := claims.NewPrincipal(cl, h.nameClaimType, h.roleClaimType, h.authenticationType)
	res := Success(principal, "")
	if h.saveToken {
		res.Token = token
	}
	if overridden := h.events.TokenValidated(r.Context(), TokenValidatedContext{
		Request:   r,
		Scheme:    h.scheme,
		Token:     token,
		Principal: principal,
		Result:    res,
	}); overridden != nil {
		return *overridden
	}
	return res
}
