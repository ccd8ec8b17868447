package httpserver

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/and161185/todo-keeper/internal/errs"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// RequestID reuses a well-formed incoming X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.FromString(id); err != nil {
			id = uuid.Must(uuid.NewV4()).String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// Logging writes one access log line per request. Bodies and headers are never logged.
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", RequestIDFromCtx(r.Context())),
			)
		})
	}
}

// Recover converts a handler panic into a 500.
func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					if rv == http.ErrAbortHandler {
						panic(rv)
					}
					log.Error("panic",
						zap.Any("reason", rv),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
					)
					writeMessage(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(v[7:])
	return t, t != ""
}

// RequireBearer binds the token's username to the request context.
// No token is 401; a token that fails verification is 403.
func (h *Handler) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			h.writeError(w, r, "auth", errs.ErrUnauthenticated)
			return
		}
		username, err := h.tokens.Verify(tok)
		if err != nil {
			h.writeError(w, r, "auth", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
	})
}

// BasicUsername decodes "Authorization: Basic base64(user:pass)" and returns the claimed user.
// The password is NOT checked: this path only carries an identity claim.
func BasicUsername(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) < 6 || !strings.EqualFold(header[:6], "basic ") {
		return "", errs.ErrUnauthenticated
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[6:]))
	if err != nil {
		return "", errs.ErrInvalidCredentials
	}
	username, _, _ := strings.Cut(string(raw), ":")
	if username == "" {
		return "", errs.ErrInvalidCredentials
	}
	return username, nil
}

// RequireBasic binds the Basic-auth username without verifying the password.
func (h *Handler) RequireBasic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, err := BasicUsername(r.Header.Get("Authorization"))
		if err != nil {
			if errors.Is(err, errs.ErrUnauthenticated) {
				writeMessage(w, http.StatusUnauthorized, "Basic authentication required")
				return
			}
			h.writeError(w, r, "basic auth", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
	})
}

// Allowed is the authorization gate: the caller may only touch their own path.
func Allowed(identity, pathUsername string) bool {
	return identity != "" && identity == pathUsername
}

// Gate rejects requests whose {username} path segment differs from the bound identity.
// It runs before any handler, so a denied request never reaches the repository.
func (h *Handler) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := UsernameFromCtx(r.Context())
		if !Allowed(identity, r.PathValue("username")) {
			h.writeError(w, r, "gate", errs.ErrAccessDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORSOptions lists allowed browser origins.
type CORSOptions struct {
	Origins  []string // exact origins, e.g. http://localhost:4200
	Suffixes []string // host suffixes, e.g. .pages.dev
}

func (o CORSOptions) allow(origin string) bool {
	for _, exact := range o.Origins {
		if origin == exact {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	for _, sfx := range o.Suffixes {
		if sfx != "" && strings.HasSuffix(host, sfx) {
			return true
		}
	}
	return false
}

// CORS answers preflights and decorates responses for allowed origins.
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowOriginFunc:      o.allow,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization"},
		ExposedHeaders:       []string{RequestIDHeader},
		AllowCredentials:     true,
		OptionsSuccessStatus: http.StatusOK,
	})
	return c.Handler
}
