/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"context"
	"fmt"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultJWTClientAssertionLifetime is the default lifetime of the JWT client assertion.
const DefaultJWTClientAssertionLifetime = 5 * time.Minute

// JWTClientAssertionUpdater issues JWT client assertions signed with the client's private key (private_key_jwt).
type JWTClientAssertionUpdater struct {
	ClientID string
	// Audience is usually the token or introspection endpoint URL of the authorization server.
	Audience      string
	SigningMethod jwtgo.SigningMethod
	SigningKey    interface{}
	KeyID         string
	Lifetime      time.Duration
}

var _ ClientAssertionUpdater = (*JWTClientAssertionUpdater)(nil)

// UpdateClientAssertion implements ClientAssertionUpdater interface.
// The returned assertion is considered expired a bit earlier than its "exp" claim,
// so it is never sent when it is about to expire.
func (u *JWTClientAssertionUpdater) UpdateClientAssertion(
	_ context.Context, _ UpdateClientAssertionContext,
) (*ClientAssertionUpdate, error) {
	if u.SigningMethod == nil {
		return nil, fmt.Errorf("signing method is not set")
	}
	lifetime := u.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultJWTClientAssertionLifetime
	}
	now := time.Now()
	expiresAt := now.Add(lifetime)

	token := jwtgo.NewWithClaims(u.SigningMethod, jwtgo.RegisteredClaims{
		Issuer:    u.ClientID,
		Subject:   u.ClientID,
		Audience:  jwtgo.ClaimStrings{u.Audience},
		ID:        uuid.NewString(),
		IssuedAt:  jwtgo.NewNumericDate(now),
		NotBefore: jwtgo.NewNumericDate(now),
		ExpiresAt: jwtgo.NewNumericDate(expiresAt),
	})
	if u.KeyID != "" {
		token.Header["kid"] = u.KeyID
	}
	signed, err := token.SignedString(u.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("sign client assertion: %w", err)
	}
	return &ClientAssertionUpdate{
		Assertion: ClientAssertion{Type: ClientAssertionTypeJWTBearer, Value: signed},
		ExpiresAt: expiresAt.Add(-lifetime / 10),
	}, nil
}
