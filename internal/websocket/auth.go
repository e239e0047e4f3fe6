package websocket

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/utils"
	"github.com/rs/zerolog/log"
)

// Authenticator verifies the credentials on r and returns the caller.
// Failures are always app_error.Authentication().
type Authenticator func(r *http.Request) (*entity.UserSummary, error)

type UserResolver interface {
	Resolve(ctx context.Context, userID string) (*entity.UserSummary, *app_error.AppError)
}

// JWTAuthenticator accepts RS256 tokens signed by the account service whose
// subject is an existing, active user.
func JWTAuthenticator(publicKey *rsa.PublicKey, users UserResolver) Authenticator {
	return func(r *http.Request) (*entity.UserSummary, error) {
		token := TokenFromRequest(r)
		if token == "" {
			log.Debug().Msg("auth: missing token")
			return nil, app_error.Authentication()
		}

		claims, err := utils.ParseAndVerifySign(token, publicKey)
		if err != nil {
			log.Debug().Err(err).Msg("auth: token rejected")
			return nil, app_error.Authentication()
		}

		user, appErr := users.Resolve(r.Context(), claims.Subject)
		if appErr != nil {
			log.Debug().Str("userID", claims.Subject).Str("reason", appErr.Message).Msg("auth: subject rejected")
			return nil, app_error.Authentication()
		}

		return user, nil
	}
}

func TokenFromRequest(r *http.Request) string {
	// Option 1: Authorization header
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Option 2: Query parameter
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	// Option 3: Cookie
	cookie, err := r.Cookie("access_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}
