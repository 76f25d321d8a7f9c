package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789-abcdefghijkl"

func newTestSessionStore(t *testing.T, revoker TokenRevoker, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(testSecret, time.Minute, revoker, opts)
	require.NoError(t, err)
	return s
}

func signClaims(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func registered(s *JWTSessionStore, issued time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    s.opts.Issuer,
		Audience:  jwt.ClaimStrings{s.opts.Audience},
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		ID:        "jti-1",
	}
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker(), JWTOptions{})
	token, err := s.NewSession("user-1")
	require.NoError(t, err)

	userID, ok, err := s.GetUserIDByToken(token)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "user-1", userID)
}

func TestNewJWTSessionStoreValidatesArguments(t *testing.T) {
	_, err := NewJWTSessionStore("short", time.Minute, nil, JWTOptions{})
	require.Error(t, err)
	_, err = NewJWTSessionStore(testSecret, 0, nil, JWTOptions{})
	require.Error(t, err)

	s := newTestSessionStore(t, nil, JWTOptions{Issuer: "  "})
	_, err = s.NewSession(" ")
	require.Error(t, err)
	require.Equal(t, defaultJWTIssuer, s.opts.Issuer)
	require.Equal(t, defaultJWTAudience, s.opts.Audience)
}

func TestJWTSessionStoreRejectsForeignTokens(t *testing.T) {
	s := newTestSessionStore(t, nil, JWTOptions{Leeway: time.Second})
	now := time.Now()

	otherAudience := newTestSessionStore(t, nil, JWTOptions{Audience: "other-api"})
	audToken, err := otherAudience.NewSession("user-1")
	require.NoError(t, err)

	otherSecret, err := NewJWTSessionStore(strings.Repeat("x", 40), time.Minute, nil, JWTOptions{})
	require.NoError(t, err)
	secretToken, err := otherSecret.NewSession("user-1")
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          " ",
		"garbage":        "not-a-jwt",
		"audience":       audToken,
		"secret":         secretToken,
		"expired":        signClaims(t, sessionClaims{Type: sessionTokenType, RegisteredClaims: registered(s, now.Add(-time.Hour), time.Minute)}),
		"missing type":   signClaims(t, registered(s, now, time.Minute)),
		"wrong type":     signClaims(t, sessionClaims{Type: "refresh", RegisteredClaims: registered(s, now, time.Minute)}),
		"missing expiry": signClaims(t, sessionClaims{Type: sessionTokenType, RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: s.opts.Issuer, Audience: jwt.ClaimStrings{s.opts.Audience}, ID: "jti-2"}}),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.GetUserIDByToken(token)
			require.False(t, ok)
			require.True(t, errors.Is(err, ErrSessionInvalid), "err = %v", err)
		})
	}
}

func TestJWTSessionStoreRevokesByJTI(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker(), JWTOptions{})
	token, err := s.NewSession("user-revoke")
	require.NoError(t, err)
	other, err := s.NewSession("user-revoke")
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(token))
	require.NoError(t, s.DeleteSession("not-a-jwt"))

	_, ok, err := s.GetUserIDByToken(token)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrSessionRevoked)

	_, ok, err = s.GetUserIDByToken(other)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestJWTSessionStoreRevokesByUserCutoff(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker(), JWTOptions{})
	token, err := s.NewSession("user-cutoff")
	require.NoError(t, err)
	bystander, err := s.NewSession("user-other")
	require.NoError(t, err)

	require.NoError(t, s.RevokeUserSessions("user-cutoff", time.Now().UTC()))

	_, ok, err := s.GetUserIDByToken(token)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrSessionRevoked)

	_, ok, err = s.GetUserIDByToken(bystander)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestJWTSessionStoreWithoutRevoker(t *testing.T) {
	s := newTestSessionStore(t, nil, JWTOptions{})
	token, err := s.NewSession("user-1")
	require.NoError(t, err)
	require.NoError(t, s.DeleteSession(token))
	require.NoError(t, s.RevokeUserSessions("user-1", time.Now()))

	_, ok, err := s.GetUserIDByToken(token)
	require.NoError(t, err)
	require.True(t, ok)
}
