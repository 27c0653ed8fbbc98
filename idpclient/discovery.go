/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-refauth/internal/idputil"
)

// ErrDiscovery is returned (wrapped into *DiscoveryError) when the introspection endpoint cannot be discovered.
var ErrDiscovery = errors.New("introspection endpoint discovery failed")

// DiscoveryErrorKind is a kind of the discovery failure.
type DiscoveryErrorKind int

const (
	DiscoveryErrorUnavailable DiscoveryErrorKind = iota
	DiscoveryErrorPolicyViolation
	DiscoveryErrorInvalidDocument
)

// DiscoveryError describes a failure of fetching or validating the discovery document.
type DiscoveryError struct {
	Kind DiscoveryErrorKind
	URL  string
	Err  error
}

func (e *DiscoveryError) Error() string {
	switch e.Kind {
	case DiscoveryErrorPolicyViolation:
		return fmt.Sprintf("discovery document %s violates the discovery policy: %v", e.URL, e.Err)
	case DiscoveryErrorInvalidDocument:
		return fmt.Sprintf("discovery document %s is invalid: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("discovery endpoint %s is unavailable: %v", e.URL, e.Err)
	}
}

func (e *DiscoveryError) Unwrap() []error {
	return []error{ErrDiscovery, e.Err}
}

// DiscoveryPolicy defines how the discovery document is validated.
type DiscoveryPolicy struct {
	// RequireHTTPS requires the authority and the discovered endpoints to use HTTPS.
	RequireHTTPS bool
	// AllowHTTPOnLoopback allows plain HTTP for loopback addresses even if RequireHTTPS is set.
	AllowHTTPOnLoopback bool
	// ValidateEndpoints requires the discovered endpoints to be located under the authority
	// or one of the AdditionalEndpointBaseAddresses.
	ValidateEndpoints bool
	// AdditionalEndpointBaseAddresses may contain glob wildcards in the host part (e.g. "https://*.example.com").
	AdditionalEndpointBaseAddresses []string
	// RequireKeySet requires the discovery document to have the "jwks_uri" field.
	RequireKeySet bool
}

// DefaultDiscoveryPolicy returns the strict policy: HTTPS (except loopback), endpoints under the authority, key set present.
func DefaultDiscoveryPolicy() DiscoveryPolicy {
	return DiscoveryPolicy{
		RequireHTTPS:        true,
		AllowHTTPOnLoopback: true,
		ValidateEndpoints:   true,
		RequireKeySet:       true,
	}
}

type discoveryValidator struct {
	policy          DiscoveryPolicy
	endpointMatcher *idputil.EndpointMatcher
}

func newDiscoveryValidator(authority string, policy DiscoveryPolicy) (*discoveryValidator, error) {
	baseAddresses := append([]string{authority}, policy.AdditionalEndpointBaseAddresses...)
	matcher, err := idputil.NewEndpointMatcher(baseAddresses...)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint base addresses: %w", err)
	}
	return &discoveryValidator{policy: policy, endpointMatcher: matcher}, nil
}

func (v *discoveryValidator) checkScheme(rawURL string) error {
	if !v.policy.RequireHTTPS {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if strings.EqualFold(u.Scheme, "https") {
		return nil
	}
	if v.policy.AllowHTTPOnLoopback && strings.EqualFold(u.Scheme, "http") && idputil.IsLoopbackURL(u) {
		return nil
	}
	return fmt.Errorf("HTTPS is required for %s", rawURL)
}

func (v *discoveryValidator) validate(openIDCfg idputil.OpenIDConfiguration) error {
	if v.policy.RequireKeySet && openIDCfg.JWKSURI == "" {
		return fmt.Errorf("no jwks_uri found")
	}
	if err := v.checkScheme(openIDCfg.IntrospectionEndpoint); err != nil {
		return err
	}
	if v.policy.ValidateEndpoints && !v.endpointMatcher.Match(openIDCfg.IntrospectionEndpoint) {
		return fmt.Errorf("introspection endpoint %s is located outside of the allowed base addresses",
			openIDCfg.IntrospectionEndpoint)
	}
	return nil
}

// endpointResolver memoizes the introspection endpoint URL.
// Failed resolution is not memoized, so the next call tries again.
type endpointResolver struct {
	mu       sync.Mutex
	endpoint atomic.Pointer[string]
	resolve  func(ctx context.Context) (string, error)
}

func newStaticEndpointResolver(endpoint string) *endpointResolver {
	r := &endpointResolver{}
	r.endpoint.Store(&endpoint)
	return r
}

func (r *endpointResolver) Resolve(ctx context.Context) (string, error) {
	if ep := r.endpoint.Load(); ep != nil {
		return *ep, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ep := r.endpoint.Load(); ep != nil {
		return *ep, nil
	}
	ep, err := r.resolve(ctx)
	if err != nil {
		return "", err
	}
	r.endpoint.Store(&ep)
	return ep, nil
}

func (c *Client) discoverIntrospectionEndpoint(ctx context.Context) (string, error) {
	openIDCfgURL := idputil.MakeOpenIDConfigurationURL(c.authority)
	if err := c.discoveryValidator.checkScheme(openIDCfgURL); err != nil {
		return "", &DiscoveryError{Kind: DiscoveryErrorPolicyViolation, URL: openIDCfgURL, Err: err}
	}
	openIDCfg, err := idputil.GetOpenIDConfiguration(ctx, c.httpClient, openIDCfgURL, c.logger, c.promMetrics)
	if err != nil {
		if errors.Is(err, idputil.ErrDecodeResponseBody) {
			return "", &DiscoveryError{Kind: DiscoveryErrorInvalidDocument, URL: openIDCfgURL, Err: err}
		}
		return "", &DiscoveryError{Kind: DiscoveryErrorUnavailable, URL: openIDCfgURL, Err: err}
	}
	if openIDCfg.IntrospectionEndpoint == "" {
		return "", &DiscoveryError{Kind: DiscoveryErrorInvalidDocument, URL: openIDCfgURL,
			Err: fmt.Errorf("no introspection_endpoint found")}
	}
	if err = c.discoveryValidator.validate(openIDCfg); err != nil {
		return "", &DiscoveryError{Kind: DiscoveryErrorPolicyViolation, URL: openIDCfgURL, Err: err}
	}
	c.logger.Info("introspection endpoint is discovered",
		log.String("authority", c.authority), log.String("introspection_endpoint", openIDCfg.IntrospectionEndpoint))
	return openIDCfg.IntrospectionEndpoint, nil
}
