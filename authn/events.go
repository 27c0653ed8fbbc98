/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authn

import (
	"context"
	"net/http"

	"github.com/acronis/go-refauth/claims"
	"github.com/acronis/go-refauth/idpclient"
)

// AuthenticationFailedContext is passed to the AuthenticationFailed event.
type AuthenticationFailedContext struct {
	Request *http.Request
	Scheme  string
	Err     error
}

// TokenValidatedContext is passed to the TokenValidated event.
type TokenValidatedContext struct {
	Request   *http.Request
	Scheme    string
	Token     string
	Principal *claims.Principal
	// Result is the result that is returned if the event doesn't override it.
	Result Result
}

// Events allow customizing the authentication.
// Introspection request hooks (client assertion update, request override) are part of Events too.
type Events interface {
	idpclient.Hooks

	// AuthenticationFailed is called when the token is not valid or cannot be validated.
	// A non-nil returned result replaces the default failure result.
	AuthenticationFailed(ctx context.Context, c AuthenticationFailedContext) *Result

	// TokenValidated is called when the token is validated successfully.
	// A non-nil returned result replaces the default successful result.
	TokenValidated(ctx context.Context, c TokenValidatedContext) *Result
}

// NopEvents implements Events and does nothing. It may be embedded to override only some of the events.
type NopEvents struct {
	idpclient.NopHooks
}

var _ Events = NopEvents{}

// AuthenticationFailed implements Events interface.
func (NopEvents) AuthenticationFailed(context.Context, AuthenticationFailedContext) *Result {
	return nil
}

// TokenValidated implements Events interface.
func (NopEvents) TokenValidated(context.Context, TokenValidatedContext) *Result {
	return nil
}
