package httpserver

import (
	"net/http"
	"strconv"

	"github.com/and161185/todo-keeper/internal/convert"
	"github.com/and161185/todo-keeper/internal/errs"
)

// --- public ---

// Health reports liveness plus the advisory backend flag. It always answers 200.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, convert.Health{
		Status:   "OK",
		Message:  "Server is running",
		Database: h.state.Label(),
	})
}

// HelloWorld greets the path parameter.
func (h *Handler) HelloWorld(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "Hello World, "+r.PathValue("param")+"!")
}

// BasicAuth echoes the claimed identity bound by RequireBasic.
func (h *Handler) BasicAuth(w http.ResponseWriter, r *http.Request) {
	username, _ := UsernameFromCtx(r.Context())
	writeJSON(w, http.StatusOK, convert.Message{Message: "Success", Username: username})
}

// --- auth ---

func (h *Handler) readCredentials(w http.ResponseWriter, r *http.Request) (convert.Credentials, bool) {
	var in convert.Credentials
	if err := decodeBody(w, r, &in); err != nil || in.Username == "" || in.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password required")
		return in, false
	}
	return in, true
}

// Signup creates an account and returns its first token.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	tok, err := h.auth.Signup(r.Context(), in.Username, in.Password)
	if err != nil {
		h.writeError(w, r, "signup", err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.AuthResponse{
		Message:  "User created successfully",
		Token:    tok.AccessToken,
		Username: in.Username,
	})
}

// Authenticate exchanges credentials for a token.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	tok, err := h.auth.Authenticate(r.Context(), in.Username, in.Password, r.RemoteAddr)
	if err != nil {
		h.writeError(w, r, "authenticate", err)
		return
	}
	writeJSON(w, http.StatusOK, convert.AuthResponse{Token: tok.AccessToken, Username: in.Username})
}

// --- todos (behind RequireBearer + Gate) ---

// owner is the gate-checked path username.
func owner(r *http.Request) string { return r.PathValue("username") }

// todoID parses the {id} segment; anything but a positive integer cannot name a todo.
func todoID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.ErrNotFound
	}
	return id, nil
}

// ListTodos returns the owner's todos ordered by id.
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	list, err := h.todos.List(r.Context(), owner(r))
	if err != nil {
		h.writeError(w, r, "list todos", err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToTodos(list))
}

// CreateTodo allocates the next id and stores the todo.
func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var in convert.CreateTodo
	if err := decodeBody(w, r, &in); err != nil {
		h.writeError(w, r, "create todo", err)
		return
	}
	nt, err := convert.FromCreateTodo(in)
	if err != nil {
		h.writeError(w, r, "create todo", err)
		return
	}
	t, err := h.todos.Create(r.Context(), owner(r), nt)
	if err != nil {
		h.writeError(w, r, "create todo", err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToTodo(*t))
}

// GetTodo returns one todo.
func (h *Handler) GetTodo(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		h.writeError(w, r, "get todo", err)
		return
	}
	t, err := h.todos.Get(r.Context(), owner(r), id)
	if err != nil {
		h.writeError(w, r, "get todo", err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToTodo(*t))
}

// UpdateTodo applies the supplied fields.
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		h.writeError(w, r, "update todo", err)
		return
	}
	var in convert.UpdateTodo
	if err := decodeBody(w, r, &in); err != nil {
		h.writeError(w, r, "update todo", err)
		return
	}
	p, err := convert.FromUpdateTodo(in)
	if err != nil {
		h.writeError(w, r, "update todo", err)
		return
	}
	t, err := h.todos.Update(r.Context(), owner(r), id, p)
	if err != nil {
		h.writeError(w, r, "update todo", err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToTodo(*t))
}

// DeleteTodo removes a todo.
func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := todoID(r)
	if err != nil {
		h.writeError(w, r, "delete todo", err)
		return
	}
	if err := h.todos.Delete(r.Context(), owner(r), id); err != nil {
		h.writeError(w, r, "delete todo", err)
		return
	}
	writeMessage(w, http.StatusOK, "Todo deleted successfully")
}
