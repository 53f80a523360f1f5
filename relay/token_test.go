package relay

import (
	"testing"
	"time"

	apperrors "session-lab/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestSubscribeToken_RoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := NewSubscribeToken(testSecret, alice, time.Minute)
	req.NoError(err)

	identity, err := VerifySubscribeToken(testSecret, token)
	req.NoError(err)
	req.Equal(alice, identity)
}

func TestSubscribeToken_Rejected(t *testing.T) {
	valid, err := NewSubscribeToken(testSecret, alice, time.Minute)
	require.NoError(t, err)
	expired, err := NewSubscribeToken(testSecret, alice, -time.Minute)
	require.NoError(t, err)
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &SubscribeClaims{
		Identity:         alice.String(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "wrong secret", secret: "another-shared-secret-of-32-chars", token: valid},
		{name: "expired", secret: testSecret, token: expired},
		{name: "wrong issuer", secret: testSecret, token: foreign},
		{name: "garbage", secret: testSecret, token: "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifySubscribeToken(tt.secret, tt.token)
			require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}
