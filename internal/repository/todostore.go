package repository

import (
	"context"
	"time"

	"github.com/and161185/todo-keeper/internal/model"
)

// TodoStore is the persistence capability behind the todo repository. Every backend
// (direct driver or HTTP gateway) implements it with identical semantics; id allocation
// and retry policy live above it.
type TodoStore interface {
	// MaxID returns the largest id owned by owner, or 0 when the owner has no todos.
	MaxID(ctx context.Context, owner string) (int64, error)

	// Insert stores t as-is. It fails with errs.ErrDuplicateID when (t.Owner, t.ID) is taken.
	Insert(ctx context.Context, t model.Todo) error

	// List returns the owner's todos ordered by ascending id.
	List(ctx context.Context, owner string) ([]model.Todo, error)

	// Get returns a single todo or errs.ErrNotFound.
	Get(ctx context.Context, owner string, id int64) (*model.Todo, error)

	// Update applies the patch, sets updated_at and returns the stored record, or errs.ErrNotFound.
	Update(ctx context.Context, owner string, id int64, p model.TodoPatch, updatedAt time.Time) (*model.Todo, error)

	// Delete removes the todo permanently, or returns errs.ErrNotFound.
	Delete(ctx context.Context, owner string, id int64) error

	// Ping checks that the backend answers.
	Ping(ctx context.Context) error
}
