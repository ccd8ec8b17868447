// Package limiter throttles repeated failed logins per (username, client) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"errors"
	"net"
	"time"

	"github.com/and161185/todo-keeper/internal/errs"
)

// Key identifies a throttled pair. Client is a hash, raw addresses are never stored.
type Key struct {
	Username string
	Client   []byte
}

// KeyFor builds a Key from a username and a remote address ("host:port" or bare host).
func KeyFor(username, remoteAddr string) Key {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	sum := sha256.Sum256([]byte(host))
	return Key{Username: username, Client: sum[:]}
}

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow returns a positive retry-after while the key is locked out.
	Allow(ctx context.Context, key Key) (time.Duration, error)
	// Failure records a failed attempt and reports whether the key is now locked out.
	Failure(ctx context.Context, key Key) (bool, error)
	// Reset clears the key after a successful login.
	Reset(ctx context.Context, key Key) error
}

// Policy configures the lockout window.
type Policy struct {
	Window   time.Duration // failures older than this are forgotten
	MaxFails int           // failures within Window that trigger a lockout
	BlockFor time.Duration // lockout duration
}

// DefaultPolicy allows 5 failures per 15 minutes, then locks for 15 minutes.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// Noop never limits; used by backends without a limiter table.
type Noop struct{}

func (Noop) Allow(context.Context, Key) (time.Duration, error) { return 0, nil }
func (Noop) Failure(context.Context, Key) (bool, error)        { return false, nil }
func (Noop) Reset(context.Context, Key) error                  { return nil }

// Gated fails every call with ErrBackendUnavailable until Ready reports true,
// e.g. while the attempts table has not been migrated yet.
type Gated struct {
	L     Limiter
	Ready func() bool
}

func (g Gated) check() error {
	if g.Ready() {
		return nil
	}
	return errs.Unavailable(errors.New("limiter not ready"))
}

func (g Gated) Allow(ctx context.Context, key Key) (time.Duration, error) {
	if err := g.check(); err != nil {
		return 0, err
	}
	return g.L.Allow(ctx, key)
}

func (g Gated) Failure(ctx context.Context, key Key) (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	return g.L.Failure(ctx, key)
}

func (g Gated) Reset(ctx context.Context, key Key) error {
	if err := g.check(); err != nil {
		return err
	}
	return g.L.Reset(ctx, key)
}
