/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeBasicAuthHeader(t *testing.T) {
	// base64("client:secret")
	require.Equal(t, "Basic Y2xpZW50OnNlY3JldA==", MakeBasicAuthHeader("client", "secret", BasicAuthStyleRFC2617))
	require.Equal(t, "Basic Y2xpZW50OnNlY3JldA==", MakeBasicAuthHeader("client", "secret", BasicAuthStyleRFC6749))

	// base64("my client:a+b") vs base64("my+client:a%2Bb")
	require.Equal(t, "Basic bXkgY2xpZW50OmErYg==", MakeBasicAuthHeader("my client", "a+b", BasicAuthStyleRFC2617))
	require.Equal(t, "Basic bXkrY2xpZW50OmElMkJi", MakeBasicAuthHeader("my client", "a+b", BasicAuthStyleRFC6749))
}

func TestParseStyles(t *testing.T) {
	style, err := ParseCredentialStyle("AuthorizationHeader")
	require.NoError(t, err)
	require.Equal(t, CredentialStyleAuthorizationHeader, style)
	style, err = ParseCredentialStyle("")
	require.NoError(t, err)
	require.Equal(t, CredentialStylePostBody, style)
	_, err = ParseCredentialStyle("cookie")
	require.EqualError(t, err, `unknown client credential style "cookie"`)

	basicStyle, err := ParseBasicAuthStyle("RFC6749")
	require.NoError(t, err)
	require.Equal(t, BasicAuthStyleRFC6749, basicStyle)
	require.Equal(t, "rfc6749", basicStyle.String())
	_, err = ParseBasicAuthStyle("rfc1234")
	require.Error(t, err)
}

func TestClientCredentials(t *testing.T) {
	tests := []struct {
		name       string
		creds      clientCredentials
		assertion  ClientAssertion
		wantForm   url.Values
		wantHeader string
	}{
		{
			name:     "post body",
			creds:    clientCredentials{clientID: "id", clientSecret: "secret"},
			wantForm: url.Values{"client_id": {"id"}, "client_secret": {"secret"}},
		},
		{
			name:     "post body without secret",
			creds:    clientCredentials{clientID: "id"},
			wantForm: url.Values{"client_id": {"id"}},
		},
		{
			name:       "authorization header",
			creds:      clientCredentials{clientID: "client", clientSecret: "secret", style: CredentialStyleAuthorizationHeader},
			wantForm:   url.Values{},
			wantHeader: "Basic Y2xpZW50OnNlY3JldA==",
		},
		{
			name: "client assertion wins",
			creds: clientCredentials{
				clientID: "id", clientSecret: "secret", style: CredentialStyleAuthorizationHeader},
			assertion: ClientAssertion{Type: ClientAssertionTypeJWTBearer, Value: "signed-jwt"},
			wantForm: url.Values{
				"client_id":             {"id"},
				"client_assertion_type": {ClientAssertionTypeJWTBearer},
				"client_assertion":      {"signed-jwt"},
			},
		},
		{
			name:     "no client id",
			creds:    clientCredentials{},
			wantForm: url.Values{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			header := http.Header{}
			tt.creds.applyToForm(form, tt.assertion)
			tt.creds.applyToHeader(header, tt.assertion)
			require.Equal(t, tt.wantForm, form)
			require.Equal(t, tt.wantHeader, header.Get("Authorization"))
		})
	}
}
