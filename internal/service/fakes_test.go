package service

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/limiter"
	"github.com/and161185/todo-keeper/internal/model"
	"github.com/and161185/todo-keeper/internal/repository"
)

type fakeAccounts struct {
	mu     sync.Mutex
	byName map[string]model.Account

	createErr error
	getErr    error
}

var _ repository.AccountStore = (*fakeAccounts)(nil)

func (f *fakeAccounts) Create(_ context.Context, a model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]model.Account{}
	}
	if _, exists := f.byName[a.Username]; exists {
		return errs.ErrAlreadyExists
	}
	f.byName[a.Username] = a
	return nil
}

func (f *fakeAccounts) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

type fakeLimiter struct {
	retryAfter time.Duration
	allowErr   error

	failBlocked bool
	failErr     error

	allowCalls   int
	failureCalls int
	resetCalls   int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, limiter.Key) (time.Duration, error) {
	l.allowCalls++
	return l.retryAfter, l.allowErr
}
func (l *fakeLimiter) Failure(context.Context, limiter.Key) (bool, error) {
	l.failureCalls++
	return l.failBlocked, l.failErr
}
func (l *fakeLimiter) Reset(context.Context, limiter.Key) error {
	l.resetCalls++
	return nil
}

// fakeTodos emulates a backend with a unique (owner, id) key. MaxID and Insert take the
// lock separately, so concurrent creators really race between them.
type fakeTodos struct {
	mu   sync.Mutex
	rows map[string]map[int64]model.Todo

	// insertErrs are returned (and consumed) by successive Insert calls before touching rows.
	insertErrs []error
	maxErr     error
	opErr      error

	maxCalls    int
	insertCalls int
	lastCtx     context.Context

	// state of the context seen by the last Insert, captured before the caller cancels it
	insertCtxErr      error
	insertHasDeadline bool
}

var _ repository.TodoStore = (*fakeTodos)(nil)

func newFakeTodos() *fakeTodos {
	return &fakeTodos{rows: map[string]map[int64]model.Todo{}}
}

func (f *fakeTodos) MaxID(ctx context.Context, owner string) (int64, error) {
	f.mu.Lock()
	f.maxCalls++
	f.lastCtx = ctx
	if f.maxErr != nil {
		f.mu.Unlock()
		return 0, f.maxErr
	}
	var maxID int64
	for id := range f.rows[owner] {
		if id > maxID {
			maxID = id
		}
	}
	f.mu.Unlock()
	runtime.Gosched()
	return maxID, nil
}

func (f *fakeTodos) Insert(ctx context.Context, t model.Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	f.lastCtx = ctx
	f.insertCtxErr = ctx.Err()
	_, f.insertHasDeadline = ctx.Deadline()
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if f.rows[t.Owner] == nil {
		f.rows[t.Owner] = map[int64]model.Todo{}
	}
	if _, taken := f.rows[t.Owner][t.ID]; taken {
		return errs.ErrDuplicateID
	}
	f.rows[t.Owner][t.ID] = t
	return nil
}

func (f *fakeTodos) List(ctx context.Context, owner string) ([]model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCtx = ctx
	if f.opErr != nil {
		return nil, f.opErr
	}
	var out []model.Todo
	for _, t := range f.rows[owner] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTodos) Get(ctx context.Context, owner string, id int64) (*model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCtx = ctx
	if f.opErr != nil {
		return nil, f.opErr
	}
	t, ok := f.rows[owner][id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &t, nil
}

func (f *fakeTodos) Update(ctx context.Context, owner string, id int64, p model.TodoPatch, at time.Time) (*model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCtx = ctx
	if f.opErr != nil {
		return nil, f.opErr
	}
	t, ok := f.rows[owner][id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	t = p.Apply(t, at)
	f.rows[owner][id] = t
	return &t, nil
}

func (f *fakeTodos) Delete(ctx context.Context, owner string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCtx = ctx
	if f.opErr != nil {
		return f.opErr
	}
	if _, ok := f.rows[owner][id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.rows[owner], id)
	return nil
}

func (f *fakeTodos) Ping(context.Context) error { return nil }
