package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
)

// ErrNotReady is returned (as ErrBackendUnavailable) while a backend's schema or
// unique keys are not yet in place.
var ErrNotReady = errors.New("backend schema not ready")

// Gate holds store calls back until the backend has been prepared. The zero value is closed.
type Gate struct{ open atomic.Bool }

// Open lets calls through from now on.
func (g *Gate) Open() { g.open.Store(true) }

// Ready reports whether Open was called.
func (g *Gate) Ready() bool { return g.open.Load() }

func (g *Gate) check() error {
	if g.open.Load() {
		return nil
	}
	return errs.Unavailable(ErrNotReady)
}

type gatedTodos struct {
	next TodoStore
	g    *Gate
}

// GateTodos wraps s so every call fails with ErrBackendUnavailable until g opens.
// Ping is never gated: it is what opens the gate.
func GateTodos(s TodoStore, g *Gate) TodoStore { return &gatedTodos{next: s, g: g} }

func (s *gatedTodos) MaxID(ctx context.Context, owner string) (int64, error) {
	if err := s.g.check(); err != nil {
		return 0, err
	}
	return s.next.MaxID(ctx, owner)
}

func (s *gatedTodos) Insert(ctx context.Context, t model.Todo) error {
	if err := s.g.check(); err != nil {
		return err
	}
	return s.next.Insert(ctx, t)
}

func (s *gatedTodos) List(ctx context.Context, owner string) ([]model.Todo, error) {
	if err := s.g.check(); err != nil {
		return nil, err
	}
	return s.next.List(ctx, owner)
}

func (s *gatedTodos) Get(ctx context.Context, owner string, id int64) (*model.Todo, error) {
	if err := s.g.check(); err != nil {
		return nil, err
	}
	return s.next.Get(ctx, owner, id)
}

func (s *gatedTodos) Update(ctx context.Context, owner string, id int64, p model.TodoPatch, updatedAt time.Time) (*model.Todo, error) {
	if err := s.g.check(); err != nil {
		return nil, err
	}
	return s.next.Update(ctx, owner, id, p, updatedAt)
}

func (s *gatedTodos) Delete(ctx context.Context, owner string, id int64) error {
	if err := s.g.check(); err != nil {
		return err
	}
	return s.next.Delete(ctx, owner, id)
}

func (s *gatedTodos) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

type gatedAccounts struct {
	next AccountStore
	g    *Gate
}

// GateAccounts wraps s like GateTodos.
func GateAccounts(s AccountStore, g *Gate) AccountStore { return &gatedAccounts{next: s, g: g} }

func (s *gatedAccounts) Create(ctx context.Context, a model.Account) error {
	if err := s.g.check(); err != nil {
		return err
	}
	return s.next.Create(ctx, a)
}

func (s *gatedAccounts) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	if err := s.g.check(); err != nil {
		return nil, err
	}
	return s.next.GetByUsername(ctx, username)
}
