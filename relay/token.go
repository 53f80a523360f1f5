package relay

import (
	"fmt"
	"time"

	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "session-lab"

// SubscribeClaims proves that the subscriber knows the shared secret.
type SubscribeClaims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// NewSubscribeToken signs a short-lived HS256 token for identity.
func NewSubscribeToken(secret string, identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SubscribeClaims{
		Identity: identity.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifySubscribeToken checks signature, expiry and issuer, and returns the
// identity the token was issued for.
func VerifySubscribeToken(secret, tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SubscribeClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*SubscribeClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, jwt.ErrSignatureInvalid)
	}
	return domain.ParseIdentity(claims.Identity)
}
