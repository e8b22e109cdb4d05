package pwdhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash := HashPasswordBase64("correct horse battery staple")
	require.NotEmpty(t, hash)
	require.True(t, VerifyHashBase64("correct horse battery staple", hash))
	require.False(t, VerifyHashBase64("wrong password", hash))
	require.False(t, VerifyHashBase64("", hash))

	// Each hash gets its own salt
	require.NotEqual(t, hash, HashPasswordBase64("correct horse battery staple"))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	require.False(t, VerifyHashBase64("password", ""))
	require.False(t, VerifyHashBase64("password", "not base64 at all!!!"))
	require.False(t, VerifyHash("password", []byte{1, 2, 3}))

	// Unknown version byte
	hash := HashPassword("password")
	hash[0] = 99
	require.False(t, VerifyHash("password", hash))
}

func TestSessionTokenHash(t *testing.T) {
	a := HashSessionTokenBase64("token-one")
	b := HashSessionTokenBase64("token-two")
	require.NotEqual(t, a, b)
	require.Equal(t, a, HashSessionTokenBase64("token-one"))
}
