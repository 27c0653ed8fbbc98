/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/acronis/go-appkit/testutil"
	"github.com/go-chi/chi/v5"
)

// Default paths of the endpoints.
const (
	OpenIDConfigurationPath        = "/.well-known/openid-configuration"
	JWKSEndpointPath               = "/idp/keys"
	TokenIntrospectionEndpointPath = "/idp/introspect_token" // nolint:gosec // This server is used for testing purposes only.
)

const localhostWithDynamicPortAddr = "127.0.0.1:0"

// ErrUnauthorized may be returned by HTTPTokenIntrospector to respond with 401.
var ErrUnauthorized = errors.New("unauthorized")

// HTTPTokenIntrospector is an interface for introspecting tokens via HTTP.
type HTTPTokenIntrospector interface {
	IntrospectToken(r *http.Request, token string) (IntrospectionResult, error)
}

// HTTPTokenIntrospectorFunc is a function that implements HTTPTokenIntrospector interface.
type HTTPTokenIntrospectorFunc func(r *http.Request, token string) (IntrospectionResult, error)

// IntrospectToken implements HTTPTokenIntrospector interface.
func (f HTTPTokenIntrospectorFunc) IntrospectToken(r *http.Request, token string) (IntrospectionResult, error) {
	return f(r, token)
}

// HTTPServerOption is an option for HTTPServer.
type HTTPServerOption func(s *HTTPServer)

// WithHTTPAddress is an option to set the listening address. A random local port is used by default.
func WithHTTPAddress(addr string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.listenAddr = addr
	}
}

// WithHTTPEndpointPaths is an option to serve the endpoints on custom paths.
// Empty paths are replaced with the defaults.
func WithHTTPEndpointPaths(paths HTTPPaths) HTTPServerOption {
	return func(s *HTTPServer) {
		s.paths = paths
	}
}

// WithOpenIDCustomURL is an option to advertise endpoints on the custom base URL in the OpenID configuration.
// It allows testing discovery policies without running the server on that URL.
func WithOpenIDCustomURL(u *url.URL) HTTPServerOption {
	return func(s *HTTPServer) {
		s.advertisedURL = u
	}
}

// WithHTTPIntrospectTokenHandler is an option to replace the handler of the token introspection endpoint.
func WithHTTPIntrospectTokenHandler(handler http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.TokenIntrospectionHandler = handler
	}
}

// WithHTTPTokenIntrospector is an option to set HTTPTokenIntrospector for the default TokenIntrospectionHandler.
func WithHTTPTokenIntrospector(introspector HTTPTokenIntrospector) HTTPServerOption {
	return func(s *HTTPServer) {
		s.TokenIntrospectionHandler = &TokenIntrospectionHandler{TokenIntrospector: introspector}
	}
}

// WithHTTPClientCredentials is an option to require client credentials at the token introspection endpoint.
// It's applied only to the default TokenIntrospectionHandler.
func WithHTTPClientCredentials(clientID, clientSecret string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.clientID, s.clientSecret = clientID, clientSecret
	}
}

// WithHTTPMiddleware is an option to wrap all endpoints with the middleware (e.g. logging).
func WithHTTPMiddleware(mw func(http.Handler) http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.middlewares = append(s.middlewares, mw)
	}
}

// HTTPPaths contains paths of the endpoints.
type HTTPPaths struct {
	OpenIDConfiguration string
	TokenIntrospection  string
	JWKS                string
}

func (p HTTPPaths) withDefaults() HTTPPaths {
	if p.OpenIDConfiguration == "" {
		p.OpenIDConfiguration = OpenIDConfigurationPath
	}
	if p.TokenIntrospection == "" {
		p.TokenIntrospection = TokenIntrospectionEndpointPath
	}
	if p.JWKS == "" {
		p.JWKS = JWKSEndpointPath
	}
	return p
}

// HTTPServer is a mock authorization server for testing purposes.
// It serves the discovery document, the (empty) key set and the token introspection endpoint.
type HTTPServer struct {
	*http.Server

	OpenIDConfigurationHandler *OpenIDConfigurationHandler
	TokenIntrospectionHandler  http.Handler
	Router                     chi.Router

	listenAddr    string
	boundAddr     atomic.Pointer[string]
	paths         HTTPPaths
	advertisedURL *url.URL
	clientID      string
	clientSecret  string
	middlewares   []func(http.Handler) http.Handler
}

// NewHTTPServer creates a new HTTPServer with provided options.
// The server is not started.
func NewHTTPServer(options ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{}
	for _, opt := range options {
		opt(s)
	}
	s.paths = s.paths.withDefaults()

	if s.TokenIntrospectionHandler == nil {
		s.TokenIntrospectionHandler = &TokenIntrospectionHandler{}
	}
	if h, ok := s.TokenIntrospectionHandler.(*TokenIntrospectionHandler); ok && s.clientID != "" {
		h.ClientID, h.ClientSecret = s.clientID, s.clientSecret
	}
	s.OpenIDConfigurationHandler = &OpenIDConfigurationHandler{
		BaseURL:           s.advertisedBaseURL,
		IntrospectionPath: s.paths.TokenIntrospection,
		JWKSPath:          s.paths.JWKS,
	}

	router := chi.NewRouter()
	for _, mw := range s.middlewares {
		router.Use(mw)
	}
	router.Method(http.MethodGet, s.paths.OpenIDConfiguration, s.OpenIDConfigurationHandler)
	router.Method(http.MethodGet, s.paths.JWKS, &JWKSHandler{})
	router.Method(http.MethodPost, s.paths.TokenIntrospection, s.TokenIntrospectionHandler)
	s.Router = router

	s.Server = &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// URL returns the base URL of the server. It's empty until the server is started.
func (s *HTTPServer) URL() string {
	if addr := s.boundAddr.Load(); addr != nil {
		return "http://" + *addr
	}
	return ""
}

// IntrospectionEndpointURL returns the URL of the token introspection endpoint.
func (s *HTTPServer) IntrospectionEndpointURL() string {
	return s.URL() + s.paths.TokenIntrospection
}

func (s *HTTPServer) advertisedBaseURL() string {
	if s.advertisedURL != nil {
		return s.advertisedURL.String()
	}
	return s.URL()
}

// Start starts listening and serving in the background.
func (s *HTTPServer) Start() error {
	addr := s.listenAddr
	if addr == "" {
		addr = localhostWithDynamicPortAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen tcp: %w", err)
	}
	boundAddr := ln.Addr().String()
	s.boundAddr.Store(&boundAddr)
	go func() { _ = s.Server.Serve(ln) }()
	return nil
}

// StartAndWaitForReady starts the server and waits until it accepts connections.
func (s *HTTPServer) StartAndWaitForReady(timeout time.Duration) error {
	if err := s.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return testutil.WaitListeningServer(*s.boundAddr.Load(), timeout)
}
