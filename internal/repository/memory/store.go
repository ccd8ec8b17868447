// Package memory keeps todos and accounts in process memory. It backs the development
// driver and end-to-end tests; data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
)

type todoKey struct {
	owner string
	id    int64
}

// Store implements repository.TodoStore and repository.AccountStore.
// MaxID and Insert are separate critical sections, like two round trips to a real backend;
// the map key plays the role of the unique index.
type Store struct {
	mu       sync.RWMutex
	todos    map[todoKey]model.Todo
	accounts map[string]model.Account
}

// New returns an empty store.
func New() *Store {
	return &Store{
		todos:    make(map[todoKey]model.Todo),
		accounts: make(map[string]model.Account),
	}
}

// MaxID returns the owner's highest id, 0 when none.
func (s *Store) MaxID(ctx context.Context, owner string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.Unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var maxID int64
	for k := range s.todos {
		if k.owner == owner && k.id > maxID {
			maxID = k.id
		}
	}
	return maxID, nil
}

// Insert stores t unless (owner, id) is taken.
func (s *Store) Insert(ctx context.Context, t model.Todo) error {
	if err := ctx.Err(); err != nil {
		return errs.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := todoKey{t.Owner, t.ID}
	if _, taken := s.todos[k]; taken {
		return fmt.Errorf("todo %s/%d: %w", t.Owner, t.ID, errs.ErrDuplicateID)
	}
	s.todos[k] = t
	return nil
}

// List returns the owner's todos by ascending id.
func (s *Store) List(ctx context.Context, owner string) ([]model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	s.mu.RLock()
	out := make([]model.Todo, 0)
	for k, t := range s.todos {
		if k.owner == owner {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns one todo.
func (s *Store) Get(ctx context.Context, owner string, id int64) (*model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.todos[todoKey{owner, id}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &t, nil
}

// Update applies p under the write lock.
func (s *Store) Update(ctx context.Context, owner string, id int64, p model.TodoPatch, updatedAt time.Time) (*model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := todoKey{owner, id}
	t, ok := s.todos[k]
	if !ok {
		return nil, errs.ErrNotFound
	}
	t = p.Apply(t, updatedAt)
	s.todos[k] = t
	return &t, nil
}

// Delete removes one todo.
func (s *Store) Delete(ctx context.Context, owner string, id int64) error {
	if err := ctx.Err(); err != nil {
		return errs.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := todoKey{owner, id}
	if _, ok := s.todos[k]; !ok {
		return errs.ErrNotFound
	}
	delete(s.todos, k)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Create adds an account unless the username is taken.
func (s *Store) Create(ctx context.Context, a model.Account) error {
	if err := ctx.Err(); err != nil {
		return errs.Unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[a.Username]; taken {
		return errs.ErrAlreadyExists
	}
	a.PasswordHash = append([]byte(nil), a.PasswordHash...)
	s.accounts[a.Username] = a
	return nil
}

// GetByUsername looks up an account by exact username.
func (s *Store) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &a, nil
}
