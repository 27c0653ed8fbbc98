/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/acronis/go-refauth/claims"
)

// ErrMalformedResponse is returned when the introspection endpoint responds with a body
// that is not a JSON object with the boolean "active" field.
var ErrMalformedResponse = errors.New("malformed introspection response")

// IntrospectionResponse is a successfully received result of the token introspection.
type IntrospectionResponse struct {
	// Active is the value of the "active" field.
	Active bool
	// Claims contains all top-level fields of the response except "active".
	Claims claims.Claims
}

var jsonNull = []byte("null")

// ParseIntrospectionResponse parses the body of the introspection response.
// Every top-level field (except "active") is projected into one or more claims:
// strings are used as is ("scope" is split by spaces), numbers and booleans keep their JSON text,
// each array element becomes a separate claim, objects are kept as compact JSON, nulls are skipped.
func ParseIntrospectionResponse(body []byte) (IntrospectionResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return IntrospectionResponse{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if fields == nil {
		return IntrospectionResponse{}, fmt.Errorf("%w: body is not a JSON object", ErrMalformedResponse)
	}
	activeRaw, ok := fields[claims.TypeActive]
	if !ok || bytes.Equal(bytes.TrimSpace(activeRaw), jsonNull) {
		return IntrospectionResponse{}, fmt.Errorf("%w: no %q field", ErrMalformedResponse, claims.TypeActive)
	}
	var active bool
	if err := json.Unmarshal(activeRaw, &active); err != nil {
		return IntrospectionResponse{}, fmt.Errorf("%w: %q field is not a boolean", ErrMalformedResponse, claims.TypeActive)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if name != claims.TypeActive {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	res := IntrospectionResponse{Active: active, Claims: make(claims.Claims, 0, len(names))}
	for _, name := range names {
		var err error
		if res.Claims, err = appendFieldClaims(res.Claims, name, fields[name]); err != nil {
			return IntrospectionResponse{}, fmt.Errorf("%w: field %q: %w", ErrMalformedResponse, name, err)
		}
	}
	return res, nil
}

func appendFieldClaims(dst claims.Claims, name string, raw json.RawMessage) (claims.Claims, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return dst, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if name == claims.TypeScope {
			for _, scope := range strings.Fields(s) {
				dst = append(dst, claims.Claim{Type: name, Value: scope})
			}
			return dst, nil
		}
		return append(dst, claims.Claim{Type: name, Value: s}), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if bytes.Equal(item, jsonNull) {
				continue
			}
			value, err := rawToClaimValue(item)
			if err != nil {
				return nil, err
			}
			dst = append(dst, claims.Claim{Type: name, Value: value})
		}
		return dst, nil
	default:
		value, err := rawToClaimValue(raw)
		if err != nil {
			return nil, err
		}
		return append(dst, claims.Claim{Type: name, Value: value}), nil
	}
}

func rawToClaimValue(raw json.RawMessage) (string, error) {
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
