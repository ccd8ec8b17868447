// Package httpserver exposes the todo HTTP API: identity middleware, the per-owner
// authorization gate, request handlers and the health endpoint.
package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/todo-keeper/internal/health"
	"github.com/and161185/todo-keeper/internal/service"
)

// Handler wires services into HTTP handlers.
type Handler struct {
	auth   service.AuthService
	todos  service.TodoService
	tokens service.TokenService
	state  *health.State
	log    *zap.Logger
}

// NewHandler constructs a Handler with injected services. A nil state reports disconnected.
func NewHandler(auth service.AuthService, todos service.TodoService, tokens service.TokenService, state *health.State, log *zap.Logger) *Handler {
	if state == nil {
		state = health.NewState()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{auth: auth, todos: todos, tokens: tokens, state: state, log: log}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/hello-world/{param}", h.HelloWorld)
	mux.HandleFunc("POST /api/signup", h.Signup)
	mux.HandleFunc("POST /api/authenticate", h.Authenticate)
	mux.Handle("GET /api/basicauth", h.RequireBasic(http.HandlerFunc(h.BasicAuth)))

	owned := func(fn http.HandlerFunc) http.Handler {
		return h.RequireBearer(h.Gate(fn))
	}
	mux.Handle("GET /api/users/{username}/todos", owned(h.ListTodos))
	mux.Handle("POST /api/users/{username}/todos", owned(h.CreateTodo))
	mux.Handle("GET /api/users/{username}/todos/{id}", owned(h.GetTodo))
	mux.Handle("PUT /api/users/{username}/todos/{id}", owned(h.UpdateTodo))
	mux.Handle("DELETE /api/users/{username}/todos/{id}", owned(h.DeleteTodo))

	return mux
}

// New returns the full handler chain: recover, request id, access log, CORS, routes.
func New(h *Handler, corsOpts CORSOptions) http.Handler {
	var next http.Handler = h.Routes()
	next = CORS(corsOpts)(next)
	next = Logging(h.log)(next)
	next = RequestID(next)
	next = Recover(h.log)(next)
	return next
}
