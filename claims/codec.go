/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package claims

import (
	"encoding/json"
	"fmt"
)

// Marshal serializes claims into the form that is stored in the cache
// (JSON array of {"type": ..., "value": ...} objects).
func Marshal(c Claims) ([]byte, error) {
	if c == nil {
		c = Claims{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes claims previously serialized by Marshal.
func Unmarshal(data []byte) (Claims, error) {
	var c Claims
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}
	return c, nil
}
