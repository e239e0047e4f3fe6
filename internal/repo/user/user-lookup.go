package user_repo

import (
	"context"
	"errors"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/ThinkYuvraj/Sociale/internal/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	summaryCachePrefix = "user:summary:"
	summaryCacheTTL    = 5 * time.Minute
)

// UserLookup resolves user ids to public summaries, read-through a Redis
// cache. Concurrent misses for one id share a single database query.
type UserLookup struct {
	repo  UserRepoContract
	redis *redis.Client
	group singleflight.Group
}

func NewUserLookup(repo UserRepoContract, rdb *redis.Client) *UserLookup {
	return &UserLookup{
		repo:  repo,
		redis: rdb,
	}
}

func summaryKey(userID string) string {
	return summaryCachePrefix + userID
}

func (l *UserLookup) Resolve(ctx context.Context, userID string) (*entity.UserSummary, *app_error.AppError) {
	cached, appErr := utils.GetCacheData[entity.UserSummary](ctx, l.redis, summaryKey(userID))
	if appErr != nil {
		log.Warn().Str("userID", userID).Str("error", appErr.Message).Msg("user cache read failed, falling back to db")
	}
	if cached != nil {
		return cached, nil
	}

	return l.load(ctx, userID, userID)
}

// load reads userID from the directory and refreshes its cache entry. An
// account that no longer resolves loses its entry.
func (l *UserLookup) load(ctx context.Context, flightKey, userID string) (*entity.UserSummary, *app_error.AppError) {
	v, err, _ := l.group.Do(flightKey, func() (any, error) {
		user, appErr := l.repo.FindUserByID(ctx, userID)
		if appErr != nil {
			if app_error.Is(appErr, app_error.KindNotFound) {
				if err := l.Invalidate(ctx, userID); err != nil {
					log.Warn().Err(err).Str("userID", userID).Msg("failed to drop cached user summary")
				}
			}
			return nil, appErr
		}

		summary := user.Summary()
		if err := utils.SetCacheData(ctx, l.redis, summaryKey(userID), &summary, summaryCacheTTL); err != nil {
			log.Warn().Err(err).Str("userID", userID).Msg("failed to cache user summary")
		}
		return &summary, nil
	})
	if err != nil {
		var lookupErr *app_error.AppError
		if errors.As(err, &lookupErr) {
			return nil, lookupErr
		}
		return nil, app_error.Persistence(err.Error(), "user-lookup")
	}

	return v.(*entity.UserSummary), nil
}

// ResolveFresh skips the cache read so a deactivated or deleted account is
// seen at once.
func (l *UserLookup) ResolveFresh(ctx context.Context, userID string) (*entity.UserSummary, *app_error.AppError) {
	return l.load(ctx, "fresh:"+userID, userID)
}

// Fresh adapts ResolveFresh to the single-method resolver the socket
// authenticator takes.
func (l *UserLookup) Fresh() FreshLookup {
	return FreshLookup{lookup: l}
}

type FreshLookup struct {
	lookup *UserLookup
}

func (f FreshLookup) Resolve(ctx context.Context, userID string) (*entity.UserSummary, *app_error.AppError) {
	return f.lookup.ResolveFresh(ctx, userID)
}

// ResolveMany returns summaries for every id that resolves. Unknown ids are
// left out of the map.
func (l *UserLookup) ResolveMany(ctx context.Context, userIDs []string) map[string]entity.UserSummary {
	out := make(map[string]entity.UserSummary, len(userIDs))
	missing := make([]string, 0)
	seen := make(map[string]struct{}, len(userIDs))

	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cached, _ := utils.GetCacheData[entity.UserSummary](ctx, l.redis, summaryKey(id))
		if cached != nil {
			out[id] = *cached
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out
	}

	users, appErr := l.repo.FindUsersByIDs(ctx, missing)
	if appErr != nil {
		log.Error().Str("error", appErr.Message).Msg("failed to resolve users")
		return out
	}

	for i := range users {
		summary := users[i].Summary()
		out[summary.ID] = summary
		if err := utils.SetCacheData(ctx, l.redis, summaryKey(summary.ID), &summary, summaryCacheTTL); err != nil {
			log.Warn().Err(err).Str("userID", summary.ID).Msg("failed to cache user summary")
		}
	}

	return out
}

func (l *UserLookup) Invalidate(ctx context.Context, userID string) error {
	return utils.DeleteCacheData(ctx, l.redis, summaryKey(userID))
}
