package user_repo

import (
	"context"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
)

type UserRepoContract interface {
	FindUserByID(ctx context.Context, userID string) (*entity.User, *app_error.AppError)
	FindUsersByIDs(ctx context.Context, userIDs []string) ([]entity.User, *app_error.AppError)
	UpdatePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) *app_error.AppError
	ResetPresence(ctx context.Context) *app_error.AppError
}
