/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idputil

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/vasayxtx/go-glob"
)

// URLMatcher reports whether the URL belongs to a base address.
type URLMatcher func(u *url.URL) bool

// EndpointMatcher checks that endpoints advertised by a discovery document
// are located under one of the allowed base addresses.
type EndpointMatcher struct {
	matchers []URLMatcher
}

// NewEndpointMatcher creates EndpointMatcher for the given base addresses.
// The host part of each base address may contain glob wildcards (e.g. "https://*.example.com/idp").
func NewEndpointMatcher(baseAddresses ...string) (*EndpointMatcher, error) {
	m := &EndpointMatcher{matchers: make([]URLMatcher, 0, len(baseAddresses))}
	for _, addr := range baseAddresses {
		matcher, err := makeBaseAddressMatcher(addr)
		if err != nil {
			return nil, err
		}
		m.matchers = append(m.matchers, matcher)
	}
	return m, nil
}

// Match returns true if the endpoint URL is located under one of the base addresses.
func (m *EndpointMatcher) Match(endpointURL string) bool {
	parsedURL, err := url.Parse(endpointURL)
	if err != nil {
		return false
	}
	for i := range m.matchers {
		if m.matchers[i](parsedURL) {
			return true
		}
	}
	return false
}

func makeBaseAddressMatcher(baseAddress string) (URLMatcher, error) {
	parsedURL, err := url.Parse(baseAddress)
	if err != nil {
		return nil, fmt.Errorf("parse base address glob pattern: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("base address %q has no host", baseAddress)
	}
	hostMatcher := glob.Compile(strings.ToLower(parsedURL.Host))
	pathPrefix := strings.TrimSuffix(parsedURL.Path, "/")
	return func(u *url.URL) bool {
		if !strings.EqualFold(parsedURL.Scheme, u.Scheme) || !hostMatcher(strings.ToLower(u.Host)) {
			return false
		}
		return pathPrefix == "" || u.Path == pathPrefix || strings.HasPrefix(u.Path, pathPrefix+"/")
	}, nil
}

// IsLoopbackURL reports whether the URL points to a loopback host ("localhost" or a loopback IP).
func IsLoopbackURL(u *url.URL) bool {
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
