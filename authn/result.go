/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authn

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/acronis/go-refauth/claims"
)

// ErrTokenNotActive is returned when the authorization server reports the token as not active.
var ErrTokenNotActive = errors.New("token is not active")

// ErrCachedTokenNotActive is returned when the token is known to be not active from the cache.
var ErrCachedTokenNotActive = fmt.Errorf("cached %w", ErrTokenNotActive)

// Status is the outcome of the authentication.
type Status int

const (
	// StatusNone means the handler is not applicable to the request (no token or the token is skipped).
	StatusNone Status = iota
	// StatusSuccess means the token is valid.
	StatusSuccess
	// StatusFailure means the token is not valid or cannot be validated.
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "none"
	}
}

// Challenge describes how the failed authentication is reported to the client.
type Challenge struct {
	// StatusCode is the HTTP status code of the response. 401 is used if zero.
	StatusCode int
	// Header is added to the response.
	Header http.Header
}

// Result is the result of the authentication.
type Result struct {
	Status    Status
	Principal *claims.Principal
	// Token is the raw token. It's set only for successful results when saving the token is enabled.
	Token string
	// Err is the reason of the failure.
	Err error
	// Challenge is optional and may be set by the AuthenticationFailed event.
	Challenge *Challenge
}

// NoResult returns the result for requests the handler is not applicable to.
func NoResult() Result {
	return Result{Status: StatusNone}
}

// Success returns the successful result.
func Success(principal *claims.Principal, token string) Result {
	return Result{Status: StatusSuccess, Principal: principal, Token: token}
}

// Fail returns the failed result.
func Fail(err error) Result {
	return Result{Status: StatusFailure, Err: err}
}

// Succeeded returns true if the authentication succeeded.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// FailureMessage returns the human-readable reason of the failure.
func (r Result) FailureMessage() string {
	if r.Status != StatusFailure || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
