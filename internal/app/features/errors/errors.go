// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/tripledger/internal/app/system/auth"
	"go.uber.org/zap"
)

// maxBody bounds JSON request bodies.
const maxBody = 1 << 20

// Error codes carried in the "error" field of every error response.
const (
	CodeBadRequest      = "invalid-argument"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "permission-denied"
	CodeNotFound        = "not-found"
	CodeConflict        = "already-exists"
	CodeInternal        = "internal"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write sends an error response.
func Write(w http.ResponseWriter, status int, code, msg string) {
	JSON(w, status, errorBody{Error: code, Message: msg})
}

func BadRequest(w http.ResponseWriter, msg string) {
	Write(w, http.StatusBadRequest, CodeBadRequest, msg)
}

func Unauthorized(w http.ResponseWriter) {
	Write(w, http.StatusUnauthorized, CodeUnauthenticated, "sign in required")
}

func Forbidden(w http.ResponseWriter, msg string) {
	Write(w, http.StatusForbidden, CodeForbidden, msg)
}

func NotFound(w http.ResponseWriter, msg string) {
	Write(w, http.StatusNotFound, CodeNotFound, msg)
}

func Conflict(w http.ResponseWriter, msg string) {
	Write(w, http.StatusConflict, CodeConflict, msg)
}

// DecodeJSON reads a JSON request body into v, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errBadContentType
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errEmptyBody
		}
		return err
	}
	return nil
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

const (
	errBadContentType decodeError = "content type must be application/json"
	errEmptyBody      decodeError = "request body is empty"
)

// ErrorLogger logs server errors with request context and answers 500.
type ErrorLogger struct {
	log *zap.Logger
}

func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: log}
}

// LogServerError logs err as msg and sends userMsg to the client. The
// internal error text is never sent.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fields = append(fields, zap.String("user_id", u.ID))
	}
	e.log.Error(msg, fields...)
	Write(w, http.StatusInternalServerError, CodeInternal, userMsg)
}
