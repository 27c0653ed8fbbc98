/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CredentialStyle defines how the client credentials are transmitted to the introspection endpoint.
type CredentialStyle int

const (
	// CredentialStylePostBody sends client_id and client_secret in the request body.
	CredentialStylePostBody CredentialStyle = iota
	// CredentialStyleAuthorizationHeader sends client credentials in the Basic "Authorization" header.
	CredentialStyleAuthorizationHeader
)

// ParseCredentialStyle parses the textual representation of CredentialStyle ("postBody" or "authorizationHeader").
func ParseCredentialStyle(s string) (CredentialStyle, error) {
	switch strings.ToLower(s) {
	case "", "postbody":
		return CredentialStylePostBody, nil
	case "authorizationheader":
		return CredentialStyleAuthorizationHeader, nil
	}
	return 0, fmt.Errorf("unknown client credential style %q", s)
}

func (s CredentialStyle) String() string {
	if s == CredentialStyleAuthorizationHeader {
		return "authorizationHeader"
	}
	return "postBody"
}

// BasicAuthStyle defines how client id and secret are encoded in the Basic "Authorization" header.
type BasicAuthStyle int

const (
	// BasicAuthStyleRFC2617 uses raw client id and secret.
	BasicAuthStyleRFC2617 BasicAuthStyle = iota
	// BasicAuthStyleRFC6749 form-url-encodes client id and secret before joining them.
	BasicAuthStyleRFC6749
)

// ParseBasicAuthStyle parses the textual representation of BasicAuthStyle ("rfc2617" or "rfc6749").
func ParseBasicAuthStyle(s string) (BasicAuthStyle, error) {
	switch strings.ToLower(s) {
	case "", "rfc2617":
		return BasicAuthStyleRFC2617, nil
	case "rfc6749":
		return BasicAuthStyleRFC6749, nil
	}
	return 0, fmt.Errorf("unknown authorization header style %q", s)
}

func (s BasicAuthStyle) String() string {
	if s == BasicAuthStyleRFC6749 {
		return "rfc6749"
	}
	return "rfc2617"
}

// MakeBasicAuthHeader returns the value of the Basic "Authorization" header.
func MakeBasicAuthHeader(clientID, clientSecret string, style BasicAuthStyle) string {
	if style == BasicAuthStyleRFC6749 {
		clientID = url.QueryEscape(clientID)
		clientSecret = url.QueryEscape(clientSecret)
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}

type clientCredentials struct {
	clientID       string
	clientSecret   string
	style          CredentialStyle
	basicAuthStyle BasicAuthStyle
}

// applyToForm adds credentials that are transmitted in the request body.
// Client assertion takes precedence over the client secret.
func (cc clientCredentials) applyToForm(form url.Values, assertion ClientAssertion) {
	if cc.clientID == "" {
		return
	}
	if assertion.Value != "" {
		form.Set("client_id", cc.clientID)
		form.Set("client_assertion_type", assertion.Type)
		form.Set("client_assertion", assertion.Value)
		return
	}
	if cc.style == CredentialStyleAuthorizationHeader {
		return
	}
	form.Set("client_id", cc.clientID)
	if cc.clientSecret != "" {
		form.Set("client_secret", cc.clientSecret)
	}
}

func (cc clientCredentials) applyToHeader(header http.Header, assertion ClientAssertion) {
	if cc.clientID == "" || assertion.Value != "" || cc.style != CredentialStyleAuthorizationHeader {
		return
	}
	header.Set("Authorization", MakeBasicAuthHeader(cc.clientID, cc.clientSecret, cc.basicAuthStyle))
}
