package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecretRoundtrip(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckSecretHash("s3cret", hash))
	assert.False(t, CheckSecretHash("wrong", hash))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(24)
	require.NoError(t, err)
	assert.Len(t, a, 48)

	b, err := GenerateToken(24)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSHA256Hash(t *testing.T) {
	assert.Equal(t, SHA256Hash("hello"), SHA256HashBytes([]byte("hello")))
	assert.Len(t, SHA256Hash(""), 64)
}

func TestSessionTokenRoundtrip(t *testing.T) {
	key := []byte("test-signing-key")

	token, err := IssueSessionToken(key, "admin", time.Hour)
	require.NoError(t, err)

	claims, err := VerifySessionToken(key, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "iacguard", claims.Issuer)

	_, err = VerifySessionToken([]byte("other-key"), token)
	assert.Error(t, err)
}

func TestSessionTokenExpiry(t *testing.T) {
	key := []byte("test-signing-key")
	token, err := IssueSessionToken(key, "admin", -time.Minute)
	require.NoError(t, err)

	_, err = VerifySessionToken(key, token)
	assert.Error(t, err)
}
