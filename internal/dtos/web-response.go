package dtos

import app_error "github.com/ThinkYuvraj/Sociale/internal/errors"

// Response is the envelope every REST endpoint answers with.
type Response[T any] struct {
	Message   string         `json:"message"`
	Data      T              `json:"data"`
	RequestID string         `json:"request_id,omitempty"`
	Errors    *ErrorResponse `json:"errors,omitempty"`
}

type ErrorResponse struct {
	Code    int            `json:"code"`
	Kind    app_error.Kind `json:"kind,omitempty"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
}

func NewErrorResponse(err *app_error.AppError) *ErrorResponse {
	return &ErrorResponse{
		Code:    err.Code,
		Kind:    err.Kind,
		Message: err.Message,
		Field:   err.Field,
	}
}
