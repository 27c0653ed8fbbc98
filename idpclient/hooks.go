/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"context"
	"net/http"
	"time"
)

// UpdateClientAssertionContext is passed to the UpdateClientAssertion hook.
type UpdateClientAssertionContext struct {
	// Current is the assertion that is expired (zero value if there was no assertion yet).
	Current ClientAssertion
	// ExpiresAt is the expiration time of the current assertion.
	ExpiresAt time.Time
}

// SendingRequestContext is passed to the SendingRequest hook.
type SendingRequestContext struct {
	// Request is the introspection request that is going to be sent.
	Request *http.Request
	// Token is the token that is being introspected.
	Token string
}

// ClientAssertionUpdater supplies a new client assertion when the current one is expired.
type ClientAssertionUpdater interface {
	// UpdateClientAssertion returns nil if the current assertion should be kept.
	UpdateClientAssertion(ctx context.Context, c UpdateClientAssertionContext) (*ClientAssertionUpdate, error)
}

// Hooks allow customizing the introspection requests.
type Hooks interface {
	ClientAssertionUpdater

	// SendingRequest is called right before the introspection request is sent.
	// A non-nil returned request replaces the original one.
	SendingRequest(ctx context.Context, c SendingRequestContext) *http.Request
}

// NopHooks implements Hooks and does nothing.
// It may be embedded to override only some of the hooks.
type NopHooks struct{}

var _ Hooks = NopHooks{}

// UpdateClientAssertion implements Hooks interface.
func (NopHooks) UpdateClientAssertion(context.Context, UpdateClientAssertionContext) (*ClientAssertionUpdate, error) {
	return nil, nil
}

// SendingRequest implements Hooks interface.
func (NopHooks) SendingRequest(context.Context, SendingRequestContext) *http.Request {
	return nil
}
