package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
)

// TodoRepo implements repository.TodoStore on the todos table.
// The (username, id) primary key is what rejects concurrent duplicate ids.
type TodoRepo struct{ db *DB }

// NewTodoRepo constructs a todo repository.
func NewTodoRepo(db *DB) *TodoRepo { return &TodoRepo{db: db} }

const todoColumns = `id, username, description, target_date, done, created_at, updated_at`

// MaxID returns the owner's highest id, 0 when none.
func (r *TodoRepo) MaxID(ctx context.Context, owner string) (int64, error) {
	const q = `SELECT COALESCE(MAX(id),0) FROM todos WHERE username=$1`
	var v int64
	if err := r.db.Pool.QueryRow(ctx, q, owner).Scan(&v); err != nil {
		return 0, classify(err)
	}
	return v, nil
}

// Insert stores a fully populated todo.
func (r *TodoRepo) Insert(ctx context.Context, t model.Todo) error {
	const q = `
INSERT INTO todos (id, username, description, target_date, done, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.Owner, t.Description, t.TargetDate, t.Done, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("todo %s/%d: %w", t.Owner, t.ID, errs.ErrDuplicateID)
	}
	return classify(err)
}

// List returns the owner's todos by ascending id.
func (r *TodoRepo) List(ctx context.Context, owner string) ([]model.Todo, error) {
	q := `SELECT ` + todoColumns + ` FROM todos WHERE username=$1 ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q, owner)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make([]model.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, t)
	}
	return out, classify(rows.Err())
}

// Get returns a single todo.
func (r *TodoRepo) Get(ctx context.Context, owner string, id int64) (*model.Todo, error) {
	q := `SELECT ` + todoColumns + ` FROM todos WHERE username=$1 AND id=$2`
	t, err := scanTodo(r.db.Pool.QueryRow(ctx, q, owner, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, classify(err)
	}
	return &t, nil
}

// Update changes only the fields set in p. NULL parameters keep the stored value.
func (r *TodoRepo) Update(
	ctx context.Context, owner string, id int64, p model.TodoPatch, updatedAt time.Time,
) (*model.Todo, error) {
	q := `
UPDATE todos SET
  description = COALESCE($3, description),
  target_date = COALESCE($4, target_date),
  done        = COALESCE($5, done),
  updated_at  = $6
WHERE username=$1 AND id=$2
RETURNING ` + todoColumns
	t, err := scanTodo(r.db.Pool.QueryRow(ctx, q, owner, id, p.Description, p.TargetDate, p.Done, updatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, classify(err)
	}
	return &t, nil
}

// Delete removes a todo row.
func (r *TodoRepo) Delete(ctx context.Context, owner string, id int64) error {
	const q = `DELETE FROM todos WHERE username=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, owner, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Ping checks the pool.
func (r *TodoRepo) Ping(ctx context.Context) error { return r.db.Ping(ctx) }

func scanTodo(row pgx.Row) (model.Todo, error) {
	var t model.Todo
	if err := row.Scan(&t.ID, &t.Owner, &t.Description, &t.TargetDate, &t.Done, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return model.Todo{}, err
	}
	t.TargetDate = model.TruncateDate(t.TargetDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
