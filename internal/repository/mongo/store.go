// Package mongo implements the repository interfaces on MongoDB through the official driver.
//
// Collections mirror the document layout used by the data API gateway backend:
// "todos" keyed by the unique index (username, id) and "users" keyed by username.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
)

const (
	todosCollection = "todos"
	usersCollection = "users"
)

type todoDoc struct {
	ID          int64     `bson:"id"`
	Username    string    `bson:"username"`
	Description string    `bson:"description"`
	TargetDate  time.Time `bson:"targetDate"`
	Done        bool      `bson:"done"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
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
	Username  string    `bson:"username"`
	Password  string    `bson:"password"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Store implements repository.TodoStore and repository.AccountStore on one database.
type Store struct {
	db    *mongo.Database
	todos *mongo.Collection
	users *mongo.Collection
}

// New binds a store to db. Call EnsureIndexes once before serving.
func New(db *mongo.Database) *Store {
	return &Store{
		db:    db,
		todos: db.Collection(todosCollection),
		users: db.Collection(usersCollection),
	}
}

// Connect dials uri without waiting for the server; the first operation or Ping does.
// Server selection and connect are both bounded by timeout.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	return mongo.Connect(ctx, opts)
}

// EnsureIndexes creates the unique keys the id allocation and signup rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.todos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}, {Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("todos index: %w", classify(err))
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", classify(err))
	}
	return nil
}

// MaxID reads the highest id through the (username, id) index.
func (s *Store) MaxID(ctx context.Context, owner string) (int64, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "id", Value: -1}}).
		SetProjection(bson.D{{Key: "id", Value: 1}})
	var doc struct {
		ID int64 `bson:"id"`
	}
	err := s.todos.FindOne(ctx, bson.D{{Key: "username", Value: owner}}, opts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return 0, nil
	case err != nil:
		return 0, classify(err)
	}
	return doc.ID, nil
}

// Insert stores t; the unique index rejects a taken (username, id).
func (s *Store) Insert(ctx context.Context, t model.Todo) error {
	doc := todoDoc{
		ID:          t.ID,
		Username:    t.Owner,
		Description: t.Description,
		TargetDate:  t.TargetDate,
		Done:        t.Done,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	_, err := s.todos.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("todo %s/%d: %w", t.Owner, t.ID, errs.ErrDuplicateID)
	}
	return classify(err)
}

// List returns the owner's todos sorted by id.
func (s *Store) List(ctx context.Context, owner string) ([]model.Todo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	cur, err := s.todos.Find(ctx, bson.D{{Key: "username", Value: owner}}, opts)
	if err != nil {
		return nil, classify(err)
	}
	var docs []todoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}
	out := make([]model.Todo, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// Get returns one todo.
func (s *Store) Get(ctx context.Context, owner string, id int64) (*model.Todo, error) {
	var doc todoDoc
	err := s.todos.FindOne(ctx, todoFilter(owner, id)).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, errs.ErrNotFound
	case err != nil:
		return nil, classify(err)
	}
	t := doc.model()
	return &t, nil
}

// Update applies p with $set and returns the document after the change.
func (s *Store) Update(ctx context.Context, owner string, id int64, p model.TodoPatch, updatedAt time.Time) (*model.Todo, error) {
	set := bson.D{{Key: "updatedAt", Value: updatedAt}}
	if p.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *p.Description})
	}
	if p.TargetDate != nil {
		set = append(set, bson.E{Key: "targetDate", Value: *p.TargetDate})
	}
	if p.Done != nil {
		set = append(set, bson.E{Key: "done", Value: *p.Done})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc todoDoc
	err := s.todos.FindOneAndUpdate(ctx, todoFilter(owner, id), bson.D{{Key: "$set", Value: set}}, opts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, errs.ErrNotFound
	case err != nil:
		return nil, classify(err)
	}
	t := doc.model()
	return &t, nil
}

// Delete removes one todo.
func (s *Store) Delete(ctx context.Context, owner string, id int64) error {
	res, err := s.todos.DeleteOne(ctx, todoFilter(owner, id))
	if err != nil {
		return classify(err)
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Ping asks the primary for a round trip.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return errs.Unavailable(err)
	}
	return nil
}

// Create inserts an account; the bcrypt hash is stored as text.
func (s *Store) Create(ctx context.Context, a model.Account) error {
	_, err := s.users.InsertOne(ctx, userDoc{
		Username:  a.Username,
		Password:  string(a.PasswordHash),
		CreatedAt: a.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrAlreadyExists
	}
	return classify(err)
}

// GetByUsername loads an account.
func (s *Store) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, errs.ErrNotFound
	case err != nil:
		return nil, classify(err)
	}
	return &model.Account{
		Username:     doc.Username,
		PasswordHash: []byte(doc.Password),
		CreatedAt:    doc.CreatedAt.UTC(),
	}, nil
}

func todoFilter(owner string, id int64) bson.D {
	return bson.D{{Key: "username", Value: owner}, {Key: "id", Value: id}}
}

// classify marks network failures and timeouts as ErrBackendUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, mongo.ErrClientDisconnected) {
		return errs.Unavailable(err)
	}
	return err
}
