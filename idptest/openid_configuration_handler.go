/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// OpenIDConfigurationResponse is a body of the discovery document (.well-known/openid-configuration).
type OpenIDConfigurationResponse struct {
	Issuer                string `json:"issuer"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// OpenIDConfigurationHandler serves the discovery document.
// All endpoints are advertised under the base URL that is resolved on every request.
type OpenIDConfigurationHandler struct {
	BaseURL           func() string
	IntrospectionPath string
	JWKSPath          string

	servedCount    atomic.Uint64
	failWithStatus atomic.Int32
}

func (h *OpenIDConfigurationHandler) ServeHTTP(rw http.ResponseWriter, _ *http.Request) {
	h.servedCount.Add(1)

	if status := int(h.failWithStatus.Load()); status != 0 {
		http.Error(rw, http.StatusText(status), status)
		return
	}

	var baseURL string
	if h.BaseURL != nil {
		baseURL = h.BaseURL()
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(OpenIDConfigurationResponse{
		Issuer:                baseURL,
		IntrospectionEndpoint: baseURL + h.IntrospectionPath,
		JWKSURI:               baseURL + h.JWKSPath,
	})
}

// FailWithStatus makes the handler respond with the given HTTP status code.
// Zero status code restores the normal behavior.
func (h *OpenIDConfigurationHandler) FailWithStatus(statusCode int) {
	h.failWithStatus.Store(int32(statusCode)) // nolint:gosec // HTTP status codes fit into int32
}

// ServedCount returns how many times the discovery document was requested.
func (h *OpenIDConfigurationHandler) ServedCount() uint64 {
	return h.servedCount.Load()
}

// JWKSHandler responds with the empty JSON Web Key Set.
// Reference tokens are not signed, the key set is served only because discovery policies may require it.
type JWKSHandler struct{}

func (h *JWKSHandler) ServeHTTP(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write([]byte(`{"keys":[]}`))
}
