// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/todo-keeper/internal/model"
)

// AccountStore persists accounts keyed by username.
type AccountStore interface {
	// Create inserts a new account, or returns errs.ErrAlreadyExists.
	Create(ctx context.Context, a model.Account) error
	// GetByUsername loads an account by exact username, or returns errs.ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
}
