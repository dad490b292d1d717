package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/serataapp/serata-backend/pkg/config"
	"github.com/serataapp/serata-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", testPasswordConfig())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, err := security.VerifyPassword("irrelevant", "not-a-hash")
	require.ErrorIs(t, err, security.ErrInvalidHash)
}

func TestVerifyPasswordRejectsUnknownVersion(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", testPasswordConfig())
	require.NoError(t, err)

	tampered := strings.Replace(hash, "$v=19$", "$v=18$", 1)
	_, err = security.VerifyPassword("very-secure-password", tampered)
	require.ErrorIs(t, err, security.ErrInvalidHash)
}
