/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package claims

import (
	"fmt"
	"strconv"
	"time"
)

// Reserved claim types.
const (
	TypeExpiration = "exp"
	TypeActive     = "active"
	TypeScope      = "scope"
	TypeClientID   = "client_id"
	TypeSubject    = "sub"
)

// Default claim types for the principal's name and roles.
const (
	DefaultNameClaimType = "name"
	DefaultRoleClaimType = "role"
)

// Claim is a typed assertion about the subject of a token.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Claims is an unordered collection of claims. Types are not required to be unique.
type Claims []Claim

// FindFirst returns the value of the first claim with the given type.
func (c Claims) FindFirst(claimType string) (string, bool) {
	for i := range c {
		if c[i].Type == claimType {
			return c[i].Value, true
		}
	}
	return "", false
}

// FindAll returns values of all claims with the given type.
func (c Claims) FindAll(claimType string) []string {
	var values []string
	for i := range c {
		if c[i].Type == claimType {
			values = append(values, c[i].Value)
		}
	}
	return values
}

// Has checks whether the claim with the given type and value exists.
func (c Claims) Has(claimType, value string) bool {
	for i := range c {
		if c[i].Type == claimType && c[i].Value == value {
			return true
		}
	}
	return false
}

// ExpiresAt returns the expiration time from the "exp" claim.
// The second returned value is false if there is no "exp" claim.
func (c Claims) ExpiresAt() (time.Time, bool, error) {
	exp, ok := c.FindFirst(TypeExpiration)
	if !ok {
		return time.Time{}, false, nil
	}
	seconds, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		fs, fErr := strconv.ParseFloat(exp, 64)
		if fErr != nil {
			return time.Time{}, true, fmt.Errorf("parse %q claim %q: %w", TypeExpiration, exp, err)
		}
		seconds = int64(fs)
	}
	return time.Unix(seconds, 0), true, nil
}

// IsInactive checks whether the claims mark a token that is known to be not active.
func (c Claims) IsInactive() bool {
	return c.Has(TypeActive, "false")
}

// WithInactiveMarker returns a copy of the claims that is marked as belonging to a not active token.
func (c Claims) WithInactiveMarker() Claims {
	res := c.Clone()
	if !res.IsInactive() {
		res = append(res, Claim{Type: TypeActive, Value: "false"})
	}
	return res
}

// WithExpiration returns a copy of the claims with the "exp" claim set to the given time.
func (c Claims) WithExpiration(expiresAt time.Time) Claims {
	res := make(Claims, 0, len(c)+1)
	for i := range c {
		if c[i].Type != TypeExpiration {
			res = append(res, c[i])
		}
	}
	return append(res, Claim{Type: TypeExpiration, Value: strconv.FormatInt(expiresAt.Unix(), 10)})
}

// Clone returns a copy of the claims.
func (c Claims) Clone() Claims {
	if c == nil {
		return nil
	}
	res := make(Claims, len(c))
	copy(res, c)
	return res
}
