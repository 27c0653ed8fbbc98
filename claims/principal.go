/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package claims

// Principal is an identity built from the claims of a validated token.
type Principal struct {
	// AuthenticationType is a label of the authentication method (e.g. "Bearer").
	// Principal with empty authentication type is not authenticated.
	AuthenticationType string
	NameClaimType      string
	RoleClaimType      string
	Claims             Claims
}

// NewPrincipal maps the claims into a principal.
// Empty name and role claim types are replaced with the defaults ("name" and "role").
// Claims are used as is, the "active" marker is not exposed.
func NewPrincipal(c Claims, nameClaimType, roleClaimType, authenticationType string) *Principal {
	if nameClaimType == "" {
		nameClaimType = DefaultNameClaimType
	}
	if roleClaimType == "" {
		roleClaimType = DefaultRoleClaimType
	}
	principalClaims := make(Claims, 0, len(c))
	for i := range c {
		if c[i].Type != TypeActive {
			principalClaims = append(principalClaims, c[i])
		}
	}
	return &Principal{
		AuthenticationType: authenticationType,
		NameClaimType:      nameClaimType,
		RoleClaimType:      roleClaimType,
		Claims:             principalClaims,
	}
}

// IsAuthenticated returns true if the principal has an authentication type.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.AuthenticationType != ""
}

// Name returns the value of the first name claim.
func (p *Principal) Name() string {
	name, _ := p.Claims.FindFirst(p.NameClaimType)
	return name
}

// Roles returns values of all role claims.
func (p *Principal) Roles() []string {
	return p.Claims.FindAll(p.RoleClaimType)
}

// IsInRole checks whether the principal has the role.
func (p *Principal) IsInRole(role string) bool {
	return p.Claims.Has(p.RoleClaimType, role)
}
