package health

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Pinger is any backend that can answer a liveness round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Policy bounds the reconnect loop.
type Policy struct {
	MaxAttempts int           // attempts per reconnect round, including the first
	BaseDelay   time.Duration // first backoff step, doubled each attempt
	MaxDelay    time.Duration // cap for a single backoff step
	Interval    time.Duration // period between liveness checks once connected
	PingTimeout time.Duration // bound for one Ping
}

// DefaultPolicy: 5 attempts from 500ms doubling up to 10s, checked every 30s.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Interval:    30 * time.Second,
	PingTimeout: 5 * time.Second,
}

// Supervisor pings the backend and keeps State current.
type Supervisor struct {
	p      Pinger
	state  *State
	log    *zap.Logger
	policy Policy
}

// NewSupervisor wires a pinger to a state. Zero policy fields use DefaultPolicy.
func NewSupervisor(p Pinger, state *State, log *zap.Logger, policy Policy) *Supervisor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy.BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultPolicy.MaxDelay
	}
	if policy.Interval <= 0 {
		policy.Interval = DefaultPolicy.Interval
	}
	if policy.PingTimeout <= 0 {
		policy.PingTimeout = DefaultPolicy.PingTimeout
	}
	return &Supervisor{p: p, state: state, log: log, policy: policy}
}

func (s *Supervisor) backoff() retry.Backoff {
	b := retry.NewExponential(s.policy.BaseDelay)
	b = retry.WithCappedDuration(s.policy.MaxDelay, b)
	return retry.WithMaxRetries(uint64(s.policy.MaxAttempts-1), b)
}

func (s *Supervisor) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.policy.PingTimeout)
	defer cancel()
	return s.p.Ping(ctx)
}

// Connect runs one bounded reconnect round. It returns the last ping error when every
// attempt failed; the state is updated either way.
func (s *Supervisor) Connect(ctx context.Context) error {
	attempt := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		if err := s.ping(ctx); err != nil {
			s.log.Warn("backend not reachable",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", s.policy.MaxAttempts),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.state.Set(false)
		return err
	}
	if !s.state.Connected() {
		s.log.Info("backend connected", zap.Int("attempt", attempt))
	}
	s.state.Set(true)
	return nil
}

// Run supervises the backend until ctx is done: an initial reconnect round, then a
// liveness check every Interval, falling back to a new round whenever it fails.
// Giving up on a round only marks the backend disconnected; the next tick tries again.
func (s *Supervisor) Run(ctx context.Context) {
	if err := s.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("backend unreachable after retries", zap.Error(err))
	}

	t := time.NewTicker(s.policy.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := s.ping(ctx); err == nil {
			s.state.Set(true)
			continue
		}
		s.state.Set(false)
		if err := s.Connect(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("backend unreachable after retries", zap.Error(err))
		}
	}
}
