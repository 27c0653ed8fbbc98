/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-refauth/internal/idputil"
	"github.com/acronis/go-refauth/internal/metrics"
)

// DefaultTokenTypeHint is the default value of the token_type_hint parameter.
const DefaultTokenTypeHint = "access_token"

const maxResponseBodySize = 1 << 20

// Configuration errors returned by NewClient.
var (
	ErrAuthorityOrEndpointMissing = errors.New("you must either set Authority or IntrospectionEndpoint")
	ErrClientIDOrHTTPClientMissing = errors.New(
		"you must either set a ClientID or set an introspection HTTP client")
)

// ClientOpts contains options for Client.
type ClientOpts struct {
	// Authority is the base URL of the authorization server.
	// The introspection endpoint is discovered from {Authority}/.well-known/openid-configuration
	// if Endpoint is not set.
	Authority string

	// Endpoint is the introspection endpoint URL. Discovery is not used if it's set.
	Endpoint string

	ClientID     string
	ClientSecret string

	// CredentialStyle defines how client credentials are sent. CredentialStylePostBody is used by default.
	CredentialStyle CredentialStyle

	// BasicAuthStyle is used with CredentialStyleAuthorizationHeader. BasicAuthStyleRFC2617 is used by default.
	BasicAuthStyle BasicAuthStyle

	// ClientAssertion is the initial client assertion. It's sent instead of the client secret until ClientAssertionExpiresAt.
	// When it's expired, Hooks.UpdateClientAssertion is called to get a new one.
	ClientAssertion          ClientAssertion
	ClientAssertionExpiresAt time.Time

	// TokenTypeHint is sent as token_type_hint. DefaultTokenTypeHint is used if empty.
	TokenTypeHint string

	// DiscoveryPolicy is used for validation of the discovery document. DefaultDiscoveryPolicy() is used if nil.
	DiscoveryPolicy *DiscoveryPolicy

	// HTTPClient is used for discovery and introspection requests.
	// If it's not set, the default client with HTTPRequestTimeout is used.
	HTTPClient         *http.Client
	HTTPRequestTimeout time.Duration

	Hooks  Hooks
	Logger log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	// It allows distinguishing metrics from different instances of the same library.
	PrometheusLibInstanceLabel string
}

// Client sends token introspection requests.
type Client struct {
	authority          string
	credentials        clientCredentials
	tokenTypeHint      string
	endpoint           *endpointResolver
	discoveryValidator *discoveryValidator
	assertion          *clientAssertionState
	httpClient         *http.Client
	hooks              Hooks
	logger             log.FieldLogger
	promMetrics        *metrics.PrometheusMetrics
}

// NewClient creates a new Client.
// It doesn't send any requests, the endpoint is discovered lazily on the first introspection.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Authority == "" && opts.Endpoint == "" {
		return nil, ErrAuthorityOrEndpointMissing
	}
	if opts.ClientID == "" && opts.HTTPClient == nil {
		return nil, ErrClientIDOrHTTPClientMissing
	}
	if opts.Endpoint != "" {
		if _, err := url.ParseRequestURI(opts.Endpoint); err != nil {
			return nil, fmt.Errorf("invalid introspection endpoint: %w", err)
		}
	}
	if opts.TokenTypeHint == "" {
		opts.TokenTypeHint = DefaultTokenTypeHint
	}
	if opts.Hooks == nil {
		opts.Hooks = NopHooks{}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = idputil.MakeDefaultHTTPClient(opts.HTTPRequestTimeout)
	}

	c := &Client{
		authority: opts.Authority,
		credentials: clientCredentials{
			clientID:       opts.ClientID,
			clientSecret:   opts.ClientSecret,
			style:          opts.CredentialStyle,
			basicAuthStyle: opts.BasicAuthStyle,
		},
		tokenTypeHint: opts.TokenTypeHint,
		assertion:     newClientAssertionState(opts.ClientAssertion, opts.ClientAssertionExpiresAt),
		httpClient:    opts.HTTPClient,
		hooks:         opts.Hooks,
		logger:        idputil.PrepareLogger(opts.Logger),
		promMetrics:   metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceIntrospectionClient),
	}

	if opts.Endpoint != "" {
		c.endpoint = newStaticEndpointResolver(opts.Endpoint)
		return c, nil
	}

	if _, err := url.ParseRequestURI(opts.Authority); err != nil {
		return nil, fmt.Errorf("invalid authority: %w", err)
	}
	policy := DefaultDiscoveryPolicy()
	if opts.DiscoveryPolicy != nil {
		policy = *opts.DiscoveryPolicy
	}
	var err error
	if c.discoveryValidator, err = newDiscoveryValidator(opts.Authority, policy); err != nil {
		return nil, err
	}
	c.endpoint = &endpointResolver{resolve: c.discoverIntrospectionEndpoint}
	return c, nil
}

// IntrospectionEndpoint returns the introspection endpoint URL, discovering it if needed.
func (c *Client) IntrospectionEndpoint(ctx context.Context) (string, error) {
	return c.endpoint.Resolve(ctx)
}

// Introspect sends the introspection request for the token.
// A non-nil error is returned on discovery, transport, HTTP status or protocol failures.
// Otherwise, the response tells whether the token is active and which claims it carries.
// Requests are never retried.
func (c *Client) Introspect(ctx context.Context, token string) (IntrospectionResponse, error) {
	endpointURL, err := c.endpoint.Resolve(ctx)
	if err != nil {
		return IntrospectionResponse{}, err
	}
	assertion, err := c.assertion.get(ctx, c.hooks)
	if err != nil {
		return IntrospectionResponse{}, err
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", c.tokenTypeHint)
	c.credentials.applyToForm(form, assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return IntrospectionResponse{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	c.credentials.applyToHeader(req.Header, assertion)

	if overriddenReq := c.hooks.SendingRequest(ctx, SendingRequestContext{Request: req, Token: token}); overriddenReq != nil {
		req = overriddenReq
	}

	return c.doIntrospectionRequest(req)
}

func (c *Client) doIntrospectionRequest(req *http.Request) (IntrospectionResponse, error) {
	endpointURL := req.URL.String()

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(startTime)
	if err != nil {
		c.promMetrics.ObserveHTTPClientRequest(http.MethodPost, endpointURL, 0, elapsed, metrics.HTTPRequestErrorDo)
		return IntrospectionResponse{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if closeBodyErr := resp.Body.Close(); closeBodyErr != nil {
			c.logger.Error(fmt.Sprintf("closing response body error for POST %s", endpointURL), log.Error(closeBodyErr))
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodPost, endpointURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorUnexpectedStatusCode)
		return IntrospectionResponse{}, &idputil.UnexpectedResponseError{
			Method: http.MethodPost, URL: endpointURL, StatusCode: resp.StatusCode, Header: resp.Header.Clone()}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodPost, endpointURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorDecodeBody)
		return IntrospectionResponse{}, fmt.Errorf("read response body for POST %s: %w", endpointURL, err)
	}
	res, err := ParseIntrospectionResponse(body)
	if err != nil {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodPost, endpointURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorDecodeBody)
		return IntrospectionResponse{}, err
	}

	c.promMetrics.ObserveHTTPClientRequest(http.MethodPost, endpointURL, resp.StatusCode, elapsed, "")
	return res, nil
}
