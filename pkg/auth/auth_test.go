package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Passwords(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	require.Nil(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
	assert.False(t, CheckPassword("not-a-hash", "hunter22"))
}

func Test_TokenIssuer(t *testing.T) {
	t.Run("Requires a secret", func(t *testing.T) {
		_, err := NewTokenIssuer("", time.Minute)
		assert.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("Round trips claims", func(t *testing.T) {
		ti, err := NewTokenIssuer("secret", time.Minute)
		require.Nil(t, err)

		tok, err := ti.Issue(42, true)
		require.Nil(t, err)

		claims, err := ti.Parse(tok.Token)
		require.Nil(t, err)
		assert.Equal(t, uint64(42), claims.UserId)
		assert.True(t, claims.IsAdmin)
		assert.Equal(t, "42", claims.Subject)
	})

	t.Run("Rejects expired tokens", func(t *testing.T) {
		ti, err := NewTokenIssuer("secret", time.Minute)
		require.Nil(t, err)
		ti.clock = func() time.Time { return time.Now().Add(-2 * time.Hour) }

		tok, err := ti.Issue(1, false)
		require.Nil(t, err)

		ti.clock = time.Now
		_, err = ti.Parse(tok.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Rejects tokens signed with another secret", func(t *testing.T) {
		a, _ := NewTokenIssuer("secret-a", time.Minute)
		b, _ := NewTokenIssuer("secret-b", time.Minute)

		tok, err := a.Issue(1, false)
		require.Nil(t, err)
		_, err = b.Parse(tok.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Rejects unsigned tokens", func(t *testing.T) {
		ti, _ := NewTokenIssuer("secret", time.Minute)
		claims := &Claims{UserId: 1, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.Nil(t, err)

		_, err = ti.Parse(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
