// Package auth verifies signed-in user credentials.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
)

const issuer = "podcall"

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HMAC-signed access tokens.
type JWTVerifier struct {
	secret []byte
}

var _ core.IdentityVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Issue signs an access token for userID valid for ttl.
func (v *JWTVerifier) Issue(userID domain.UserID, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	tks, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tks, nil
}

func (v *JWTVerifier) VerifyIdentity(_ context.Context, credential string) (domain.UserID, error) {
	if len(v.secret) == 0 || credential == "" {
		return "", core.ErrInvalidIdentity
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(credential, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return v.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidIdentity, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", core.ErrInvalidIdentity
	}
	return domain.UserID(claims.UserID), nil
}
