package user_repo

import (
	"context"
	"errors"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type UserRepo struct {
	DB *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{
		DB: db,
	}
}

// FindUserByID only returns active users.
func (r *UserRepo) FindUserByID(ctx context.Context, userID string) (*entity.User, *app_error.AppError) {
	var user entity.User

	if err := r.DB.WithContext(ctx).Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.NotFound("cannot find user", "user-id")
		}
		log.Error().Err(err).Str("userID", userID).Msg("failed to fetch user")
		return nil, app_error.Persistence("unexpected error occur when fetch user", "db-error")
	}

	return &user, nil
}

func (r *UserRepo) FindUsersByIDs(ctx context.Context, userIDs []string) ([]entity.User, *app_error.AppError) {
	users := make([]entity.User, 0, len(userIDs))
	if len(userIDs) == 0 {
		return users, nil
	}

	if err := r.DB.WithContext(ctx).Where("id IN ? AND is_active = ?", userIDs, true).Find(&users).Error; err != nil {
		log.Error().Err(err).Int("count", len(userIDs)).Msg("failed to fetch users")
		return nil, app_error.Persistence("unexpected error occur when fetch users", "db-error")
	}

	return users, nil
}

// UpdatePresence mirrors the in-memory presence into the users table. The
// stored last_seen never moves backwards.
func (r *UserRepo) UpdatePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) *app_error.AppError {
	err := r.DB.WithContext(ctx).Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_online": online,
			"last_seen": gorm.Expr("CASE WHEN last_seen IS NULL OR last_seen < ? THEN ? ELSE last_seen END", lastSeen, lastSeen),
		}).Error
	if err != nil {
		return app_error.Persistence("unexpected error occur when updating presence", "db-update")
	}

	return nil
}

// ResetPresence marks everyone offline; a fresh process has no connections.
func (r *UserRepo) ResetPresence(ctx context.Context) *app_error.AppError {
	err := r.DB.WithContext(ctx).Model(&entity.User{}).
		Where("is_online = ?", true).
		Update("is_online", false).Error
	if err != nil {
		return app_error.Persistence("unexpected error occur when resetting presence", "db-update")
	}

	return nil
}
