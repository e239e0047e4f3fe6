package handlers

import (
	"fmt"
	"net/http"

	"github.com/ThinkYuvraj/Sociale/internal/dtos"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/middleware"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type HandlerFunc func(w http.ResponseWriter, r *http.Request) *app_error.AppError

func WrapHandler(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			reqID := middleware.RequestID(r.Context())
			event := log.Warn()
			if err.Code >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.Err(err).Str("request_id", reqID).Str("path", r.URL.Path).Msg("request failed")

			writeJSON(w, err.Code, dtos.Response[any]{
				Message:   "Error occur",
				Errors:    dtos.NewErrorResponse(err),
				RequestID: reqID,
			})
		}
	}
}

func CreateResponse[T any](message string, data T, requestId string) dtos.Response[T] {
	return dtos.Response[T]{
		Message:   message,
		Data:      data,
		RequestID: requestId,
	}
}

// Respond writes data in the standard envelope.
func Respond[T any](w http.ResponseWriter, r *http.Request, status int, message string, data T) {
	writeJSON(w, status, CreateResponse(message, data, middleware.RequestID(r.Context())))
}

// DecodeAndValidate reads a JSON body into dst and runs struct validation.
func DecodeAndValidate(r *http.Request, validate *validator.Validate, dst any) *app_error.AppError {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return app_error.Validation("Invalid JSON", "body")
	}

	return Validate(validate, dst)
}

func Validate(validate *validator.Validate, v any) *app_error.AppError {
	if err := validate.Struct(v); err != nil {
		var field string
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field = verrs[0].Field()
		}
		return app_error.Validation(fmt.Sprintf("Invalid fields: %v", err), field)
	}
	return nil
}

// CurrentUser returns the authenticated caller's id.
func CurrentUser(r *http.Request) (string, *app_error.AppError) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return "", app_error.Authentication()
	}
	return user.ID, nil
}
