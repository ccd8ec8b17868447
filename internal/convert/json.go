// Package convert maps domain models to the JSON wire shapes of the HTTP API and back.
package convert

import (
	"fmt"
	"strings"
	"time"

	"github.com/and161185/todo-keeper/internal/errs"
	"github.com/and161185/todo-keeper/internal/model"
)

// Todo is the wire shape of a todo.
type Todo struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Description string    `json:"description"`
	TargetDate  string    `json:"targetDate"` // YYYY-MM-DD
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateTodo is the body of POST /api/users/{username}/todos.
type CreateTodo struct {
	Description string `json:"description"`
	TargetDate  string `json:"targetDate"`
	Done        bool   `json:"done"`
}

// UpdateTodo is the body of PUT .../todos/{id}. Absent fields stay unchanged;
// id and username in the body are not part of the shape and are ignored.
type UpdateTodo struct {
	Description *string `json:"description,omitempty"`
	TargetDate  *string `json:"targetDate,omitempty"`
	Done        *bool   `json:"done,omitempty"`
}

// Credentials is the body of signup and authenticate.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse answers signup and authenticate.
type AuthResponse struct {
	Message  string `json:"message,omitempty"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Message is the generic {"message": ...} body, also used for errors.
type Message struct {
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
}

// Health is the body of GET /api/health.
type Health struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Database string `json:"database"`
}

// ToTodo renders a todo for the wire.
func ToTodo(t model.Todo) Todo {
	return Todo{
		ID:          t.ID,
		Username:    t.Owner,
		Description: t.Description,
		TargetDate:  FormatDate(t.TargetDate),
		Done:        t.Done,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// ToTodos renders a list; never nil so it encodes as [].
func ToTodos(ts []model.Todo) []Todo {
	out := make([]Todo, 0, len(ts))
	for _, t := range ts {
		out = append(out, ToTodo(t))
	}
	return out
}

// FromCreateTodo validates the date and builds a creation request.
// Description checks happen in the service.
func FromCreateTodo(in CreateTodo) (model.NewTodo, error) {
	if strings.TrimSpace(in.TargetDate) == "" {
		return model.NewTodo{}, fmt.Errorf("%w: targetDate is required", errs.ErrValidation)
	}
	d, err := ParseDate(in.TargetDate)
	if err != nil {
		return model.NewTodo{}, err
	}
	return model.NewTodo{Description: in.Description, TargetDate: d, Done: in.Done}, nil
}

// FromUpdateTodo builds a patch from the supplied fields.
func FromUpdateTodo(in UpdateTodo) (model.TodoPatch, error) {
	p := model.TodoPatch{Description: in.Description, Done: in.Done}
	if in.TargetDate != nil {
		d, err := ParseDate(*in.TargetDate)
		if err != nil {
			return model.TodoPatch{}, err
		}
		p.TargetDate = &d
	}
	return p, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(model.DateLayout)
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp and keeps only the UTC date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: targetDate %q is not a date (want YYYY-MM-DD)", errs.ErrValidation, s)
	}
	return model.TruncateDate(t), nil
}
