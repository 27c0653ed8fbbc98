/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokencache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA256Key(t *testing.T) {
	// echo -n "sometoken" | openssl dgst -sha256 -binary | base64
	const sometokenSHA256Base64 = "nJKFR6Xc4vzCeI3jT+FjlC9k5Q/qVw0zd0gi1erL8ew="

	require.Equal(t, sometokenSHA256Base64, SHA256Key("", "sometoken"))
	require.Equal(t, "prefix:"+sometokenSHA256Base64, SHA256Key("prefix:", "sometoken"))
	require.Equal(t, SHA256Key("p", "token"), SHA256Key("p", "token"))
	require.NotEqual(t, SHA256Key("", "token1"), SHA256Key("", "token2"))

	hexKey := SHA256HexKey("p:", "sometoken")
	require.Len(t, hexKey, len("p:")+64)
	require.Regexp(t, "^p:[0-9a-f]{64}$", hexKey)
}
