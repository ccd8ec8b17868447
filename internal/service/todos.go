package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
	"github.com/and161185/todo-keeper/internal/repository"
)

// DefaultBackendTimeout bounds every backend round trip when no timeout is configured.
const DefaultBackendTimeout = 5 * time.Second

// TodoService owns the todo collection: per-owner id allocation plus CRUD.
type TodoService interface {
	// NextID returns 1 + the owner's current maximum id (1 when the owner has none).
	NextID(ctx context.Context, owner string) (int64, error)
	// Create allocates the next id and stores the todo, retrying once on an id collision.
	Create(ctx context.Context, owner string, in model.NewTodo) (*model.Todo, error)
	// List returns the owner's todos ordered by ascending id.
	List(ctx context.Context, owner string) ([]model.Todo, error)
	// Get returns a single todo by id.
	Get(ctx context.Context, owner string, id int64) (*model.Todo, error)
	// Update changes description, target date and done flag; id and owner never change.
	Update(ctx context.Context, owner string, id int64, p model.TodoPatch) (*model.Todo, error)
	// Delete removes a todo permanently.
	Delete(ctx context.Context, owner string, id int64) error
}

type TodoServiceImpl struct {
	store   repository.TodoStore
	timeout time.Duration
	retries int
	now     func() time.Time
}

// TodoOption tunes a TodoServiceImpl.
type TodoOption func(*TodoServiceImpl)

// WithCreateRetries sets how many times Create re-reads the max id after a collision.
func WithCreateRetries(n int) TodoOption {
	return func(s *TodoServiceImpl) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithClock overrides the source of createdAt/updatedAt.
func WithClock(now func() time.Time) TodoOption {
	return func(s *TodoServiceImpl) { s.now = now }
}

// NewTodoService constructs TodoService over a store. Each operation is bounded by timeout.
func NewTodoService(store repository.TodoStore, timeout time.Duration, opts ...TodoOption) *TodoServiceImpl {
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	s := &TodoServiceImpl{store: store, timeout: timeout, retries: 1, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// readCtx follows the caller's lifetime.
func (s *TodoServiceImpl) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// writeCtx survives caller disconnects so a write is either fully applied or not at all,
// but is still bounded by the backend timeout.
func (s *TodoServiceImpl) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *TodoServiceImpl) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// NextID reads the owner's current maximum id.
func (s *TodoServiceImpl) NextID(ctx context.Context, owner string) (int64, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	return s.nextID(ctx, owner)
}

func (s *TodoServiceImpl) nextID(ctx context.Context, owner string) (int64, error) {
	maxID, err := s.store.MaxID(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("max id: %w", err)
	}
	return maxID + 1, nil
}

// Create validates input and inserts with a freshly allocated id.
// The id is not reserved: two creators may pick the same one, and the store's unique key
// decides. The loser re-reads the max and tries again, up to the retry budget.
func (s *TodoServiceImpl) Create(ctx context.Context, owner string, in model.NewTodo) (*model.Todo, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", errs.ErrValidation)
	}
	if in.TargetDate.IsZero() {
		return nil, fmt.Errorf("%w: targetDate is required", errs.ErrValidation)
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	for attempt := 0; ; attempt++ {
		id, err := s.nextID(ctx, owner)
		if err != nil {
			return nil, err
		}
		now := s.stamp()
		t := model.Todo{
			ID:          id,
			Owner:       owner,
			Description: in.Description,
			TargetDate:  model.TruncateDate(in.TargetDate),
			Done:        in.Done,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = s.store.Insert(ctx, t)
		if err == nil {
			return &t, nil
		}
		if !errors.Is(err, errs.ErrDuplicateID) {
			return nil, fmt.Errorf("insert todo: %w", err)
		}
		if attempt >= s.retries {
			return nil, fmt.Errorf("allocate id for %q after %d attempts: %w", owner, attempt+1, errs.ErrConflict)
		}
	}
}

// List returns todos in ascending id order; never nil.
func (s *TodoServiceImpl) List(ctx context.Context, owner string) ([]model.Todo, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	out, err := s.store.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Todo{}
	}
	return out, nil
}

// Get fetches a single todo.
func (s *TodoServiceImpl) Get(ctx context.Context, owner string, id int64) (*model.Todo, error) {
	if id <= 0 {
		return nil, errs.ErrNotFound
	}
	ctx, cancel := s.readCtx(ctx)
	defer cancel()
	return s.store.Get(ctx, owner, id)
}

// Update applies a partial change and refreshes updatedAt.
func (s *TodoServiceImpl) Update(ctx context.Context, owner string, id int64, p model.TodoPatch) (*model.Todo, error) {
	if id <= 0 {
		return nil, errs.ErrNotFound
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return nil, fmt.Errorf("%w: description must not be empty", errs.ErrValidation)
	}
	if p.TargetDate != nil {
		if p.TargetDate.IsZero() {
			return nil, fmt.Errorf("%w: targetDate must not be empty", errs.ErrValidation)
		}
		d := model.TruncateDate(*p.TargetDate)
		p.TargetDate = &d
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()
	return s.store.Update(ctx, owner, id, p, s.stamp())
}

// Delete removes the todo; a second delete of the same id reports ErrNotFound.
func (s *TodoServiceImpl) Delete(ctx context.Context, owner string, id int64) error {
	if id <= 0 {
		return errs.ErrNotFound
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()
	return s.store.Delete(ctx, owner, id)
}
