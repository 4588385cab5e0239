package web

// errors.go maps domain errors to JSON error responses. Technical detail is
// logged server-side with the request ID; clients get a stable code and a
// short message.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sabata/salesd/internal/logging"
	"github.com/sabata/salesd/internal/sales"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusForError classifies err into an HTTP status and a stable error code.
func statusForError(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	var pgErr *pgconn.PgError

	switch {
	case errors.Is(err, sales.ErrBadCursor):
		return http.StatusBadRequest, "BAD_CURSOR"
	case errors.Is(err, sales.ErrInvalidUTF8):
		return http.StatusBadRequest, "INVALID_UTF8"
	case errors.Is(err, sales.ErrTooManyImports):
		return http.StatusServiceUnavailable, "IMPORTS_BUSY"
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.As(err, &pgErr):
		switch pgErr.Code[:2] {
		case "22", "23":
			// Data exceptions and integrity violations come from bad input.
			return http.StatusBadRequest, "CONSTRAINT_VIOLATION"
		case "08":
			return http.StatusServiceUnavailable, "DB_UNAVAILABLE"
		}
		return http.StatusInternalServerError, "DB_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// respondError logs err with request context and writes the mapped JSON
// error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)

	logger := logging.FromContext(r.Context())
	logger.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"error", err.Error(),
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Code: code})
}

// respondBadRequest reports a malformed request parameter.
func (s *Server) respondBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	logger := logging.FromContext(r.Context())
	logger.Warn("bad request",
		"path", r.URL.Path,
		"error", msg,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: "BAD_REQUEST"})
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing to do beyond logging.
		slog.Error("json encode error", "error", err)
	}
}
