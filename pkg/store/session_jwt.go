package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"smartimmo/internal/util"
)

const (
	defaultJWTIssuer   = "smartimmo-catalog"
	defaultJWTAudience = "smartimmo-api"
	defaultJWTLeeway   = 30 * time.Second
	minJWTSecretLength = 32

	sessionTokenType = "session"
)

var (
	// ErrSessionInvalid covers malformed, mis-signed, expired and
	// wrong-audience tokens.
	ErrSessionInvalid = errors.New("invalid session token")
	// ErrSessionRevoked is returned for tokens revoked by logout or by a
	// per-user cutoff.
	ErrSessionRevoked = errors.New("session revoked")
)

// JWTOptions configures claim validation. Zero values fall back to the
// catalog defaults.
type JWTOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type sessionClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTSessionStore issues and validates HS256 session tokens. Revocation is
// optional and delegated to a TokenRevoker.
type JWTSessionStore struct {
	secret  []byte
	ttl     time.Duration
	revoker TokenRevoker
	opts    JWTOptions
	parser  *jwt.Parser
}

// NewJWTSessionStore builds a session store signing with secret.
func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker, opts JWTOptions) (*JWTSessionStore, error) {
	if len(secret) < minJWTSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minJWTSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	if opts.Issuer = strings.TrimSpace(opts.Issuer); opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience = strings.TrimSpace(opts.Audience); opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return &JWTSessionStore{
		secret:  []byte(secret),
		ttl:     ttl,
		revoker: revoker,
		opts:    opts,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(opts.Issuer),
			jwt.WithAudience(opts.Audience),
			jwt.WithLeeway(opts.Leeway),
			jwt.WithIssuedAt(),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// NewSession signs a token whose subject is userID.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("session subject is required")
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		Type: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.opts.Issuer,
			Audience:  jwt.ClaimStrings{s.opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        util.NewID(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// GetUserIDByToken returns the subject of a valid, unrevoked token.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := s.verify(token)
	if err != nil {
		return "", false, err
	}
	if err := s.checkRevoked(claims); err != nil {
		return "", false, err
	}
	return claims.Subject, true, nil
}

// DeleteSession revokes token for the rest of its lifetime. Tokens that do
// not verify are already unusable and are ignored.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.verify(token)
	if err != nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

// RevokeUserSessions invalidates every token of userID issued at or before
// since.
func (s *JWTSessionStore) RevokeUserSessions(userID string, since time.Time) error {
	if s.revoker == nil {
		return nil
	}
	r, ok := s.revoker.(UserTokenRevoker)
	if !ok {
		return errors.New("session revoker does not support user revocation")
	}
	return r.RevokeUser(userID, since)
}

func (s *JWTSessionStore) verify(token string) (*sessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionInvalid
	}
	claims := &sessionClaims{}
	if _, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	switch {
	case claims.Type != sessionTokenType:
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrSessionInvalid, claims.Type)
	case strings.TrimSpace(claims.Subject) == "":
		return nil, fmt.Errorf("%w: subject missing", ErrSessionInvalid)
	case strings.TrimSpace(claims.ID) == "":
		return nil, fmt.Errorf("%w: jti missing", ErrSessionInvalid)
	}
	return claims, nil
}

func (s *JWTSessionStore) checkRevoked(claims *sessionClaims) error {
	if s.revoker == nil {
		return nil
	}
	revoked, err := s.revoker.IsRevoked(claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrSessionRevoked
	}
	r, ok := s.revoker.(UserTokenRevoker)
	if !ok {
		return nil
	}
	cutoff, err := r.RevokedAfter(claims.Subject)
	if err != nil {
		return err
	}
	if cutoff.IsZero() {
		return nil
	}
	if claims.IssuedAt == nil || !claims.IssuedAt.Time.After(cutoff) {
		return ErrSessionRevoked
	}
	return nil
}
