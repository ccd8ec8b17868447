package dataapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
)

const (
	todosCollection = "todos"
	usersCollection = "users"
)

// todoDoc is the stored shape; dates travel as RFC 3339 strings.
type todoDoc struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Description string    `json:"description"`
	TargetDate  time.Time `json:"targetDate"`
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (d todoDoc) model() model.Todo {
	return model.Todo{
		ID:          d.ID,
		Owner:       d.Username,
		Description: d.Description,
		TargetDate:  model.TruncateDate(d.TargetDate),
		Done:        d.Done,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type userDoc struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
}

type filter map[string]any

// Store implements repository.TodoStore and repository.AccountStore over the gateway.
// It must be paired with a unique index on todos(username, id) and users(username),
// created on the cluster side.
type Store struct{ c *Client }

// New wraps a gateway client.
func New(c *Client) *Store { return &Store{c: c} }

// MaxID fetches the single highest-id document.
func (s *Store) MaxID(ctx context.Context, owner string) (int64, error) {
	var out struct {
		Documents []struct {
			ID int64 `json:"id"`
		} `json:"documents"`
	}
	err := s.c.do(ctx, "find", request{
		Collection: todosCollection,
		Filter:     filter{"username": owner},
		Sort:       filter{"id": -1},
		Projection: filter{"id": 1},
		Limit:      1,
	}, &out)
	if err != nil {
		return 0, err
	}
	if len(out.Documents) == 0 {
		return 0, nil
	}
	return out.Documents[0].ID, nil
}

// Insert stores t; a duplicate key response becomes ErrDuplicateID.
func (s *Store) Insert(ctx context.Context, t model.Todo) error {
	err := s.c.do(ctx, "insertOne", request{
		Collection: todosCollection,
		Document: todoDoc{
			ID:          t.ID,
			Username:    t.Owner,
			Description: t.Description,
			TargetDate:  t.TargetDate,
			Done:        t.Done,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		},
	}, nil)
	if errors.Is(err, errDuplicateKey) {
		return fmt.Errorf("todo %s/%d: %w", t.Owner, t.ID, errs.ErrDuplicateID)
	}
	return err
}

// List returns the owner's todos sorted by id.
func (s *Store) List(ctx context.Context, owner string) ([]model.Todo, error) {
	var out struct {
		Documents []todoDoc `json:"documents"`
	}
	err := s.c.do(ctx, "find", request{
		Collection: todosCollection,
		Filter:     filter{"username": owner},
		Sort:       filter{"id": 1},
	}, &out)
	if err != nil {
		return nil, err
	}
	todos := make([]model.Todo, 0, len(out.Documents))
	for _, d := range out.Documents {
		todos = append(todos, d.model())
	}
	return todos, nil
}

// Get returns one todo.
func (s *Store) Get(ctx context.Context, owner string, id int64) (*model.Todo, error) {
	var out struct {
		Document *todoDoc `json:"document"`
	}
	err := s.c.do(ctx, "findOne", request{
		Collection: todosCollection,
		Filter:     filter{"username": owner, "id": id},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Document == nil {
		return nil, errs.ErrNotFound
	}
	t := out.Document.model()
	return &t, nil
}

// Update runs updateOne with $set and reads the document back.
func (s *Store) Update(ctx context.Context, owner string, id int64, p model.TodoPatch, updatedAt time.Time) (*model.Todo, error) {
	set := filter{"updatedAt": updatedAt}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.TargetDate != nil {
		set["targetDate"] = *p.TargetDate
	}
	if p.Done != nil {
		set["done"] = *p.Done
	}

	var out struct {
		MatchedCount int64 `json:"matchedCount"`
	}
	err := s.c.do(ctx, "updateOne", request{
		Collection: todosCollection,
		Filter:     filter{"username": owner, "id": id},
		Update:     filter{"$set": set},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.MatchedCount == 0 {
		return nil, errs.ErrNotFound
	}
	return s.Get(ctx, owner, id)
}

// Delete removes one todo.
func (s *Store) Delete(ctx context.Context, owner string, id int64) error {
	var out struct {
		DeletedCount int64 `json:"deletedCount"`
	}
	err := s.c.do(ctx, "deleteOne", request{
		Collection: todosCollection,
		Filter:     filter{"username": owner, "id": id},
	}, &out)
	if err != nil {
		return err
	}
	if out.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Ping issues a cheap findOne; any 2xx answer counts as reachable.
func (s *Store) Ping(ctx context.Context) error {
	err := s.c.do(ctx, "findOne", request{
		Collection: usersCollection,
		Filter:     filter{"username": ""},
		Projection: filter{"_id": 1},
	}, nil)
	if err != nil && !errors.Is(err, errs.ErrBackendUnavailable) {
		return errs.Unavailable(err)
	}
	return err
}

// Create inserts an account.
func (s *Store) Create(ctx context.Context, a model.Account) error {
	err := s.c.do(ctx, "insertOne", request{
		Collection: usersCollection,
		Document: userDoc{
			Username:  a.Username,
			Password:  string(a.PasswordHash),
			CreatedAt: a.CreatedAt,
		},
	}, nil)
	if errors.Is(err, errDuplicateKey) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByUsername loads an account.
func (s *Store) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	var out struct {
		Document *userDoc `json:"document"`
	}
	err := s.c.do(ctx, "findOne", request{
		Collection: usersCollection,
		Filter:     filter{"username": username},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Document == nil {
		return nil, errs.ErrNotFound
	}
	return &model.Account{
		Username:     out.Document.Username,
		PasswordHash: []byte(out.Document.Password),
		CreatedAt:    out.Document.CreatedAt.UTC(),
	}, nil
}
