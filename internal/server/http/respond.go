package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/todo-keeper/internal/convert"
	"github.com/and161185/todo-keeper/internal/errs"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, convert.Message{Message: msg})
}

// decodeBody reads a bounded JSON body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.ErrValidation
	}
	return nil
}

// statusFor maps a domain error to its HTTP status and caller-visible message.
// Messages never carry the underlying cause except for validation errors, which are ours.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), errs.ErrValidation.Error())
		msg = strings.TrimPrefix(msg, ": ")
		if msg == "" {
			msg = "Invalid request body"
		}
		return http.StatusBadRequest, msg
	case errors.Is(err, errs.ErrUnauthenticated):
		return http.StatusUnauthorized, "Access token required"
	case errors.Is(err, errs.ErrInvalidToken):
		return http.StatusForbidden, "Invalid or expired token"
	case errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, errs.ErrAccessDenied):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "Todo not found"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "Username already exists"
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrDuplicateID):
		return http.StatusConflict, "Concurrent update, please retry"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many failed attempts, try again later"
	case errors.Is(err, errs.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeError answers with the mapped status. Server-side failures are logged with the cause.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error(op,
			zap.Error(err),
			zap.Int("status", code),
			zap.String("request_id", RequestIDFromCtx(r.Context())),
		)
	}
	writeMessage(w, code, msg)
}
