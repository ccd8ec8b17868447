// Package model defines domain entities used by services and repositories.
package model

import "time"

// DateLayout is the wire format of a todo target date.
const DateLayout = "2006-01-02"

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Account represents a user stored on the server. The password is never stored in plaintext.
type Account struct {
	Username     string // unique, case-sensitive
	PasswordHash []byte // bcrypt(password), salt embedded
	CreatedAt    time.Time
}

// Todo is a single task owned by one username.
type Todo struct {
	ID          int64  // per-owner sequential, >= 1
	Owner       string // username, immutable
	Description string
	TargetDate  time.Time // calendar date, UTC midnight
	Done        bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTodo is a creation request; the repository assigns ID and timestamps.
type NewTodo struct {
	Description string
	TargetDate  time.Time
	Done        bool
}

// TodoPatch lists the mutable fields of a todo; nil fields are left untouched.
type TodoPatch struct {
	Description *string
	TargetDate  *time.Time
	Done        *bool
}

// Apply returns a copy of t with the patch applied and UpdatedAt set to at.
func (p TodoPatch) Apply(t Todo, at time.Time) Todo {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.TargetDate != nil {
		t.TargetDate = *p.TargetDate
	}
	if p.Done != nil {
		t.Done = *p.Done
	}
	t.UpdatedAt = at
	return t
}

// TruncateDate drops the time-of-day part of t, normalizing to UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
