package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
)

// AccountRepo implements repository.AccountStore using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a model.Account) error {
	const q = `
INSERT INTO accounts (username, password_hash, created_at)
VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, a.Username, a.PasswordHash, a.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return classify(err)
}

// GetByUsername selects an account by exact username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	const q = `
SELECT username, password_hash, created_at
FROM accounts WHERE username=$1`
	var a model.Account
	if err := r.db.Pool.QueryRow(ctx, q, username).Scan(&a.Username, &a.PasswordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, classify(err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
