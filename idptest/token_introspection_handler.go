/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
)

// IntrospectionResult is a body of the token introspection response.
// It should contain the boolean "active" field.
type IntrospectionResult map[string]interface{}

// ActiveResult returns IntrospectionResult for the active token with the given claims.
func ActiveResult(claims map[string]interface{}) IntrospectionResult {
	res := IntrospectionResult{"active": true}
	for k, v := range claims {
		res[k] = v
	}
	return res
}

// InactiveResult returns IntrospectionResult for the token that is not active.
func InactiveResult() IntrospectionResult {
	return IntrospectionResult{"active": false}
}

// TokenIntrospectionHandler is an HTTP handler of the token introspection endpoint (RFC 7662).
// All tokens are reported as not active if TokenIntrospector is not set.
type TokenIntrospectionHandler struct {
	servedCount       atomic.Uint64
	TokenIntrospector HTTPTokenIntrospector

	// ClientID and ClientSecret are required from the caller (in the body or in the Basic "Authorization" header) if set.
	ClientID     string
	ClientSecret string
}

func (h *TokenIntrospectionHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	h.servedCount.Add(1)

	if err := r.ParseForm(); err != nil {
		http.Error(rw, fmt.Sprintf("Invalid form: %v", err), http.StatusBadRequest)
		return
	}
	if h.ClientID != "" && !h.checkClientCredentials(r) {
		http.Error(rw, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := r.PostForm.Get("token")
	if token == "" {
		http.Error(rw, "Token is required", http.StatusBadRequest)
		return
	}

	introspectResult := InactiveResult()
	if h.TokenIntrospector != nil {
		var err error
		if introspectResult, err = h.TokenIntrospector.IntrospectToken(r, token); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				http.Error(rw, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Error(rw, fmt.Sprintf("Token introspection failed: %v", err), http.StatusInternalServerError)
			return
		}
	}

	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(introspectResult); err != nil {
		http.Error(rw, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

func (h *TokenIntrospectionHandler) checkClientCredentials(r *http.Request) bool {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		return h.credentialsMatch(r.PostForm.Get("client_id"), r.PostForm.Get("client_secret"))
	}
	if h.credentialsMatch(clientID, clientSecret) {
		return true
	}
	// RFC 6749 style credentials are form-url-encoded before they are put into the header.
	unescapedID, idErr := url.QueryUnescape(clientID)
	unescapedSecret, secretErr := url.QueryUnescape(clientSecret)
	return idErr == nil && secretErr == nil && h.credentialsMatch(unescapedID, unescapedSecret)
}

func (h *TokenIntrospectionHandler) credentialsMatch(clientID, clientSecret string) bool {
	return subtle.ConstantTimeCompare([]byte(clientID), []byte(h.ClientID)) == 1 &&
		subtle.ConstantTimeCompare([]byte(clientSecret), []byte(h.ClientSecret)) == 1
}

// ServedCount returns the number of times the handler has been served.
func (h *TokenIntrospectionHandler) ServedCount() uint64 {
	return h.servedCount.Load()
}

// ResetServedCount resets the number of times the handler has been served.
func (h *TokenIntrospectionHandler) ResetServedCount() {
	h.servedCount.Store(0)
}
