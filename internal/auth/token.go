package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every decode failure: bad signature, malformed token
// and expiry are reported identically.
var ErrInvalidToken = errors.New("auth: invalid token")

// Session token claim names.
const (
	ClaimUserID   = "user_id"
	ClaimUsername = "username"
	ClaimRoleCode = "rol_codigo"
)

// TokenService mints and verifies stateless HS256 bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService signing with secret. ttl is the
// default lifetime used by IssueSession.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs claims with an expiry of now+ttl. exp, iat and jti are always
// set by the service and override any caller values.
func (s *TokenService) Issue(claims map[string]any, ttl time.Duration) (string, error) {
	return s.issueAt(s.now(), claims, ttl)
}

func (s *TokenService) issueAt(now time.Time, claims map[string]any, ttl time.Duration) (string, error) {
	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		mapClaims[k] = v
	}
	mapClaims["exp"] = jwt.NewNumericDate(now.Add(ttl))
	mapClaims["iat"] = jwt.NewNumericDate(now)
	mapClaims["jti"] = uuid.NewString()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// IssueSession mints the login token for user with the default ttl.
func (s *TokenService) IssueSession(user *User, roleCode string) (string, time.Time, error) {
	now := s.now()
	token, err := s.issueAt(now, map[string]any{
		ClaimUserID:   user.ID,
		ClaimUsername: user.Username,
		ClaimRoleCode: roleCode,
	}, s.ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, now.Add(s.ttl), nil
}

// Decode verifies the signature, algorithm and expiry of token and returns
// its claims. Numeric claims are returned as json.Number.
func (s *TokenService) Decode(token string) (map[string]any, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
