/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	gotesting "testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPServerOpenIDConfiguration(t *gotesting.T) {
	customURL, _ := url.Parse("http://idp.example.com:1234")
	tests := []struct {
		name          string
		options       []HTTPServerOption
		openIDCfgPath string
		checkResponse func(t *gotesting.T, idpSrv *HTTPServer, respData OpenIDConfigurationResponse)
	}{
		{
			name:          "default endpoints",
			openIDCfgPath: OpenIDConfigurationPath,
			checkResponse: func(t *gotesting.T, idpSrv *HTTPServer, respData OpenIDConfigurationResponse) {
				require.Equal(t, OpenIDConfigurationResponse{
					Issuer:                idpSrv.URL(),
					IntrospectionEndpoint: idpSrv.URL() + TokenIntrospectionEndpointPath,
					JWKSURI:               idpSrv.URL() + JWKSEndpointPath,
				}, respData)
			},
		},
		{
			name:          "default endpoints, custom host",
			openIDCfgPath: OpenIDConfigurationPath,
			options: []HTTPServerOption{
				WithOpenIDCustomURL(customURL),
			},
			checkResponse: func(t *gotesting.T, idpSrv *HTTPServer, respData OpenIDConfigurationResponse) {
				require.Equal(t, OpenIDConfigurationResponse{
					Issuer:                "http://idp.example.com:1234",
					IntrospectionEndpoint: "http://idp.example.com:1234" + TokenIntrospectionEndpointPath,
					JWKSURI:               "http://idp.example.com:1234" + JWKSEndpointPath,
				}, respData)
			},
		},
		{
			name: "custom endpoints",
			options: []HTTPServerOption{
				WithHTTPEndpointPaths(HTTPPaths{
					OpenIDConfiguration: "/custom/openid-configuration",
					TokenIntrospection:  "/custom/introspect_token",
					JWKS:                "/custom/keys",
				}),
			},
			openIDCfgPath: "/custom/openid-configuration",
			checkResponse: func(t *gotesting.T, idpSrv *HTTPServer, respData OpenIDConfigurationResponse) {
				require.Equal(t, OpenIDConfigurationResponse{
					Issuer:                idpSrv.URL(),
					IntrospectionEndpoint: idpSrv.URL() + "/custom/introspect_token",
					JWKSURI:               idpSrv.URL() + "/custom/keys",
				}, respData)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *gotesting.T) {
			idpSrv := NewHTTPServer(tt.options...)
			require.NoError(t, idpSrv.StartAndWaitForReady(time.Second*3))
			defer func() {
				require.NoError(t, idpSrv.Shutdown(context.Background()))
			}()

			client := &http.Client{Timeout: time.Second * 5}
			resp, err := client.Get(idpSrv.URL() + tt.openIDCfgPath)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			respBody, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())

			var respData OpenIDConfigurationResponse
			require.NoError(t, json.Unmarshal(respBody, &respData))
			tt.checkResponse(t, idpSrv, respData)
		})
	}
}

func TestHTTPServerTokenIntrospection(t *gotesting.T) {
	idpSrv := NewHTTPServer(
		WithHTTPClientCredentials("my-client", "my secret"),
		WithHTTPTokenIntrospector(HTTPTokenIntrospectorFunc(func(r *http.Request, token string) (IntrospectionResult, error) {
			if token == "active-token" {
				return ActiveResult(map[string]interface{}{"sub": "user-1", "scope": "read write"}), nil
			}
			return InactiveResult(), nil
		})),
	)
	require.NoError(t, idpSrv.StartAndWaitForReady(time.Second*3))
	defer func() { require.NoError(t, idpSrv.Shutdown(context.Background())) }()

	client := &http.Client{Timeout: time.Second * 5}

	introspect := func(form url.Values, modifyReq func(req *http.Request)) (int, map[string]interface{}) {
		req, err := http.NewRequest(http.MethodPost, idpSrv.IntrospectionEndpointURL(), bytes.NewBufferString(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if modifyReq != nil {
			modifyReq(req)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer func() { require.NoError(t, resp.Body.Close()) }()
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, nil
		}
		respBody, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var respData map[string]interface{}
		require.NoError(t, json.Unmarshal(respBody, &respData))
		return resp.StatusCode, respData
	}

	// Credentials in the body.
	status, respData := introspect(url.Values{
		"token": {"active-token"}, "client_id": {"my-client"}, "client_secret": {"my secret"}}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]interface{}{"active": true, "sub": "user-1", "scope": "read write"}, respData)

	// Credentials in the Basic "Authorization" header.
	status, respData = introspect(url.Values{"token": {"unknown-token"}}, func(req *http.Request) {
		req.SetBasicAuth("my-client", "my secret")
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]interface{}{"active": false}, respData)

	// RFC 6749 encoded credentials in the Basic "Authorization" header.
	status, _ = introspect(url.Values{"token": {"active-token"}}, func(req *http.Request) {
		req.SetBasicAuth("my-client", url.QueryEscape("my secret"))
	})
	require.Equal(t, http.StatusOK, status)

	// Wrong credentials.
	status, _ = introspect(url.Values{"token": {"active-token"}, "client_id": {"my-client"}, "client_secret": {"wrong"}}, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	require.Equal(t, uint64(4), idpSrv.TokenIntrospectionHandler.(*TokenIntrospectionHandler).ServedCount())
}

func TestHTTPServerOpenIDConfigurationFailure(t *gotesting.T) {
	idpSrv := NewHTTPServer()
	require.NoError(t, idpSrv.StartAndWaitForReady(time.Second*3))
	defer func() { require.NoError(t, idpSrv.Shutdown(context.Background())) }()

	client := &http.Client{Timeout: time.Second * 5}

	idpSrv.OpenIDConfigurationHandler.FailWithStatus(http.StatusNotFound)
	resp, err := client.Get(idpSrv.URL() + OpenIDConfigurationPath)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	idpSrv.OpenIDConfigurationHandler.FailWithStatus(0)
	resp, err = client.Get(idpSrv.URL() + OpenIDConfigurationPath)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, uint64(2), idpSrv.OpenIDConfigurationHandler.ServedCount())

	// Only GET is routed to the discovery document.
	resp, err = client.Post(idpSrv.URL()+OpenIDConfigurationPath, "application/json", http.NoBody)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, uint64(2), idpSrv.OpenIDConfigurationHandler.ServedCount())
}
