/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ClientAssertionTypeJWTBearer is the client assertion type for JWTs (RFC 7523).
const ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// ClientAssertion is a signed assertion that authenticates the client instead of the client secret.
type ClientAssertion struct {
	Type  string
	Value string
}

// ClientAssertionUpdate is a new client assertion with its expiration time.
type ClientAssertionUpdate struct {
	Assertion ClientAssertion
	ExpiresAt time.Time
}

type clientAssertionSnapshot struct {
	assertion ClientAssertion
	expiresAt time.Time
}

// clientAssertionState holds the current client assertion.
// Refresh is serialized by mu, so concurrent requests never issue more than one new assertion.
type clientAssertionState struct {
	mu      sync.Mutex
	current atomic.Pointer[clientAssertionSnapshot]
	now     func() time.Time
}

func newClientAssertionState(initial ClientAssertion, expiresAt time.Time) *clientAssertionState {
	s := &clientAssertionState{now: time.Now}
	s.current.Store(&clientAssertionSnapshot{assertion: initial, expiresAt: expiresAt})
	return s
}

func (s *clientAssertionState) get(ctx context.Context, updater ClientAssertionUpdater) (ClientAssertion, error) {
	cur := s.current.Load()
	if cur.expiresAt.After(s.now()) {
		return cur.assertion, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur = s.current.Load()
	if cur.expiresAt.After(s.now()) {
		return cur.assertion, nil
	}
	upd, err := updater.UpdateClientAssertion(ctx, UpdateClientAssertionContext{
		Current:   cur.assertion,
		ExpiresAt: cur.expiresAt,
	})
	if err != nil {
		return ClientAssertion{}, fmt.Errorf("update client assertion: %w", err)
	}
	if upd == nil {
		return cur.assertion, nil
	}
	s.current.Store(&clientAssertionSnapshot{assertion: upd.Assertion, expiresAt: upd.ExpiresAt})
	return upd.Assertion, nil
}
