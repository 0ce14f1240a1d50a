package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/playperu/quizboard/internal/quizboard"
)

const maxBodyBytes = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON body")

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v. A value of the wrong JSON
// type for a field is reported as a *quizboard.ValidationError.
// The body must hold exactly one JSON value.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	err := dec.Decode(v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &quizboard.ValidationError{Field: typeErr.Field, Message: "must be " + describeType(typeErr.Type.Kind().String())}
	}
	if err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func describeType(kind string) string {
	switch kind {
	case "int", "int64", "ptr":
		return "an integer"
	case "string":
		return "a string"
	default:
		return "a " + kind
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps the quizboard error taxonomy onto a status and a
// client-safe message. Only validation messages are passed through.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *quizboard.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, quizboard.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, quizboard.ErrRankFailed):
		logger.Error("rank computation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "rank computation failed")
	case errors.Is(err, quizboard.ErrStorageUnavailable):
		logger.Error("storage unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
	default:
		logger.Error("unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// clientIP is the request's source address without the port. RealIP has
// already applied forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
