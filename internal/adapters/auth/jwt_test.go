package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/podcall/internal/core"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret")
	tk, err := v.Issue("U1", time.Hour)
	require.NoError(t, err)

	uid, err := v.VerifyIdentity(context.Background(), tk)
	require.NoError(t, err)
	assert.EqualValues(t, "U1", uid)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("secret")

	expired, err := v.Issue("U1", -time.Minute)
	require.NoError(t, err)
	other, err := NewJWTVerifier("other").Issue("U1", time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "U1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tk := range map[string]string{
		"empty":   "",
		"garbage": "not.a.jwt",
		"expired": expired,
		"foreign": other,
		"none":    none,
	} {
		_, err := v.VerifyIdentity(context.Background(), tk)
		assert.ErrorIs(t, err, core.ErrInvalidIdentity, name)
	}

	_, err = NewJWTVerifier("").VerifyIdentity(context.Background(), expired)
	assert.ErrorIs(t, err, core.ErrInvalidIdentity)
}
