/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idputil

import (
	"context"
	"net/http"
	"time"

	"github.com/acronis/go-appkit/httpclient"
	"github.com/acronis/go-appkit/log"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/acronis/go-refauth/internal/libinfo"
)

const DefaultHTTPRequestTimeout = 30 * time.Second

// MakeDefaultHTTPClient returns an HTTP client for discovery and introspection requests.
// Requests are never retried: a failed call is surfaced to the caller once.
func MakeDefaultHTTPClient(reqTimeout time.Duration) *http.Client {
	if reqTimeout == 0 {
		reqTimeout = DefaultHTTPRequestTimeout
	}
	var tr http.RoundTripper = cleanhttp.DefaultPooledTransport()
	tr = httpclient.NewUserAgentRoundTripper(tr, libinfo.UserAgent())
	return &http.Client{Timeout: reqTimeout, Transport: tr}
}

func PrepareLogger(logger log.FieldLogger) log.FieldLogger {
	if logger == nil {
		return log.NewDisabledLogger()
	}
	return log.NewPrefixedLogger(logger, libinfo.LogPrefix())
}

// GetLoggerFromProvider returns the prefixed logger from the provider or the disabled logger if there is none.
func GetLoggerFromProvider(ctx context.Context, provider func(ctx context.Context) log.FieldLogger) log.FieldLogger {
	if provider != nil {
		if logger := provider(ctx); logger != nil {
			return log.NewPrefixedLogger(logger, libinfo.LogPrefix())
		}
	}
	return log.NewDisabledLogger()
}
