package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
)

// TokenTTL is the fixed lifetime of an identity token.
const TokenTTL = 24 * time.Hour

const tokenLeeway = 30 * time.Second

// TokenService issues and verifies identity tokens.
type TokenService interface {
	// Issue signs a token for username valid for TokenTTL.
	Issue(username string) (model.Tokens, error)
	// Verify checks signature and expiry and returns the embedded username.
	Verify(token string) (string, error)
}

// Claims is the JWT payload: the username plus standard registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// JWTTokens implements TokenService with HS256 tokens.
type JWTTokens struct {
	signKey []byte
	now     func() time.Time
}

// NewTokenService constructs an HS256 token service for the shared secret.
func NewTokenService(signKey []byte) *JWTTokens {
	return &JWTTokens{signKey: signKey, now: time.Now}
}

// WithClock overrides the time source, used by tests to move across the expiry boundary.
func (s *JWTTokens) WithClock(now func() time.Time) *JWTTokens {
	s.now = now
	return s
}

// Issue creates a signed HS256 JWT carrying username.
func (s *JWTTokens) Issue(username string) (model.Tokens, error) {
	now := s.now()
	exp := now.Add(TokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: username,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// Verify returns the username embedded in a valid token. It does not look the account up:
// a token stays valid for its whole lifetime even if the account disappears.
func (s *JWTTokens) Verify(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", errs.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", errs.ErrInvalidSignature
	default:
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return "", fmt.Errorf("%w: no username claim", errs.ErrInvalidToken)
	}
	return username, nil
}
