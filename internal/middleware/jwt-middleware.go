package middleware

import (
	"context"
	"net/http"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/websocket"
	"github.com/rs/zerolog/log"
)

type claimsKey string

const UserClaimsKey claimsKey = "userClaims"

// RequireAuth resolves the caller with the same authenticator the socket
// endpoint uses and stores the user summary in the request context.
func RequireAuth(authenticate websocket.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticate(r)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
				writeAppError(w, app_error.Authentication())
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFromContext(ctx context.Context) (*entity.UserSummary, bool) {
	user, ok := ctx.Value(UserClaimsKey).(*entity.UserSummary)
	return user, ok && user != nil && user.ID != ""
}

func writeAppError(w http.ResponseWriter, appErr *app_error.AppError) {
	_ = appErr.JSON(w)
}
