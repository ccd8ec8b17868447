// Package service contains application services for authentication and todos.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/todo-keeper/internal/crypto"
	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/limiter"
	"github.com/and161185/todo-keeper/internal/model"
	"github.com/and161185/todo-keeper/internal/repository"
)

// CredentialStore owns accounts: it hashes passwords on the way in and verifies them on login.
type CredentialStore struct {
	accounts repository.AccountStore
	timeout  time.Duration
	now      func() time.Time
}

// NewCredentialStore wraps an account backend. Each backend call is bounded by timeout.
func NewCredentialStore(accounts repository.AccountStore, timeout time.Duration) *CredentialStore {
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	return &CredentialStore{accounts: accounts, timeout: timeout, now: time.Now}
}

// Create stores a new account with a bcrypt hash of password.
func (c *CredentialStore) Create(ctx context.Context, username, password string) (model.Account, error) {
	if len(password) > pkgcrypto.MaxPasswordBytes {
		return model.Account{}, fmt.Errorf("%w: password must be at most %d bytes", errs.ErrValidation, pkgcrypto.MaxPasswordBytes)
	}
	hash, err := pkgcrypto.HashPassword([]byte(password))
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}
	acc := model.Account{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    c.now().UTC().Truncate(time.Millisecond),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.accounts.Create(ctx, acc); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

// VerifyPassword reports whether password matches the stored hash for username.
// A missing account is not an error; only backend failures are returned.
func (c *CredentialStore) VerifyPassword(ctx context.Context, username, password string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	acc, err := c.accounts.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		// still burn a hash comparison so absent users are not cheaper to probe
		pkgcrypto.VerifyPassword([]byte(password), nil)
		return false, nil
	case err != nil:
		return false, err
	}
	return pkgcrypto.VerifyPassword([]byte(password), acc.PasswordHash), nil
}

// AuthService defines signup and login.
type AuthService interface {
	// Signup creates an account and returns a token for it.
	Signup(ctx context.Context, username, password string) (model.Tokens, error)
	// Authenticate checks credentials, applying rate limiting per (username, client).
	Authenticate(ctx context.Context, username, password, remoteAddr string) (model.Tokens, error)
}

type AuthServiceImpl struct {
	creds  *CredentialStore
	tokens TokenService
	lim    limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies. A nil limiter disables limiting.
func NewAuthService(creds *CredentialStore, tokens TokenService, lim limiter.Limiter) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Noop{}
	}
	return &AuthServiceImpl{creds: creds, tokens: tokens, lim: lim}
}

// Signup validates input, stores the account and issues a token.
func (s *AuthServiceImpl) Signup(ctx context.Context, username, password string) (model.Tokens, error) {
	if username == "" || password == "" {
		return model.Tokens{}, fmt.Errorf("%w: username and password required", errs.ErrValidation)
	}
	if _, err := s.creds.Create(ctx, username, password); err != nil {
		return model.Tokens{}, err
	}
	return s.tokens.Issue(username)
}

// Authenticate verifies the password and issues a token.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, username, password, remoteAddr string) (model.Tokens, error) {
	if username == "" || password == "" {
		return model.Tokens{}, fmt.Errorf("%w: username and password required", errs.ErrValidation)
	}
	key := limiter.KeyFor(username, remoteAddr)

	retryAfter, err := s.lim.Allow(ctx, key)
	if err != nil {
		return model.Tokens{}, err
	}
	if retryAfter > 0 {
		return model.Tokens{}, errs.ErrRateLimited
	}

	ok, err := s.creds.VerifyPassword(ctx, username, password)
	if err != nil {
		return model.Tokens{}, err
	}
	if !ok {
		if blocked, ferr := s.lim.Failure(ctx, key); ferr == nil && blocked {
			return model.Tokens{}, errs.ErrRateLimited
		}
		return model.Tokens{}, errs.ErrInvalidCredentials
	}

	// best-effort
	_ = s.lim.Reset(ctx, key)

	return s.tokens.Issue(username)
}
