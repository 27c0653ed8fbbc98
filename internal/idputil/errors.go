/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package idputil

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrDecodeResponseBody is returned when the response body cannot be decoded.
var ErrDecodeResponseBody = errors.New("decode response body json")

// UnexpectedResponseError represents an error that occurs when an unexpected HTTP response is received.
// It captures the HTTP status code and response headers for further analysis.
type UnexpectedResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
}

func (e *UnexpectedResponseError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("unexpected HTTP status code %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status code %d for %s %s", e.StatusCode, e.Method, e.URL)
}
