package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret-0123456789abcdef", time.Hour)

	t.Run("round trip", func(t *testing.T) {
		token, err := m.Generate("alice-phone")
		require.NoError(t, err)

		claims, err := m.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "alice-phone", claims.Replica)
		assert.Equal(t, "alice-phone", claims.Subject)
	})

	t.Run("empty replica", func(t *testing.T) {
		_, err := m.Generate(" ")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTManager("another-secret", time.Hour).Generate("bob")
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := NewJWTManager("test-secret-0123456789abcdef", -time.Minute).Generate("bob")
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Replica: "mallory"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Validate("not.a.token")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})
}
