/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package claims provides the claim set of an introspected reference token,
// its serialized form used for caching and the principal built from it.
package claims
