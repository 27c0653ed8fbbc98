/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-refauth/internal/metrics"
)

const OpenIDConfigurationPath = "/.well-known/openid-configuration"

// OpenIDConfiguration contains the fields of the discovery document that are consumed by the library.
type OpenIDConfiguration struct {
	Issuer                string `json:"issuer"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// MakeOpenIDConfigurationURL returns the discovery document URL for the authority.
// A trailing slash of the authority is ignored.
func MakeOpenIDConfigurationURL(authority string) string {
	return strings.TrimSuffix(authority, "/") + OpenIDConfigurationPath
}

func GetOpenIDConfiguration(
	ctx context.Context,
	httpClient *http.Client,
	targetURL string,
	logger log.FieldLogger,
	promMetrics *metrics.PrometheusMetrics,
) (OpenIDConfiguration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		return OpenIDConfiguration{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := httpClient.Do(req)
	elapsed := time.Since(startTime)
	if err != nil {
		promMetrics.ObserveHTTPClientRequest(http.MethodGet, targetURL, 0, elapsed, metrics.HTTPRequestErrorDo)
		return OpenIDConfiguration{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if closeBodyErr := resp.Body.Close(); closeBodyErr != nil {
			logger.Error(fmt.Sprintf("closing response body error for GET %s", targetURL), log.Error(closeBodyErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		promMetrics.ObserveHTTPClientRequest(
			http.MethodGet, targetURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorUnexpectedStatusCode)
		return OpenIDConfiguration{}, &UnexpectedResponseError{
			Method: http.MethodGet, URL: targetURL, StatusCode: resp.StatusCode, Header: resp.Header.Clone()}
	}

	var openIDCfg OpenIDConfiguration
	if err = json.NewDecoder(resp.Body).Decode(&openIDCfg); err != nil {
		promMetrics.ObserveHTTPClientRequest(
			http.MethodGet, targetURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorDecodeBody)
		return OpenIDConfiguration{}, fmt.Errorf("%w (Content-Type: %s): %w",
			ErrDecodeResponseBody, resp.Header.Get("Content-Type"), err)
	}

	promMetrics.ObserveHTTPClientRequest(http.MethodGet, targetURL, resp.StatusCode, elapsed, "")
	return openIDCfg, nil
}
