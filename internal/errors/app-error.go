package app_error

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not-found"
	KindUnauthorized   Kind = "unauthorized"
	KindValidation     Kind = "validation"
	KindPersistence    Kind = "persistence"
)

type AppError struct {
	Code    int    `json:"-"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e AppError) Error() string {
	return e.Message
}

// JSON writes e as the response body with e.Code as status.
func (e AppError) JSON(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	if e.Code != 0 {
		w.WriteHeader(e.Code)
	}
	return json.NewEncoder(w).Encode(e)
}

func NewAppError(code int, msg, field string) *AppError {
	return &AppError{
		Code:    code,
		Message: msg,
		Field:   field,
	}
}

func newKind(code int, kind Kind, msg, field string) *AppError {
	return &AppError{Code: code, Kind: kind, Message: msg, Field: field}
}

// Authentication failures never say why; bad token and deleted user look the same.
func Authentication() *AppError {
	return newKind(http.StatusUnauthorized, KindAuthentication, "authentication failed", "auth")
}

func NotFound(msg, field string) *AppError {
	return newKind(http.StatusNotFound, KindNotFound, msg, field)
}

func Unauthorized(msg, field string) *AppError {
	return newKind(http.StatusForbidden, KindUnauthorized, msg, field)
}

func Validation(msg, field string) *AppError {
	return newKind(http.StatusBadRequest, KindValidation, msg, field)
}

func Persistence(msg, field string) *AppError {
	return newKind(http.StatusInternalServerError, KindPersistence, msg, field)
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
