package state

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/ThinkYuvraj/Sociale/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"
)

type AppState struct {
	Ctx       context.Context
	Cancel    context.CancelFunc
	DB        *gorm.DB
	Redis     *redis.Client
	Mongo     *mongo.Client
	MongoDB   *mongo.Database
	PublicKey *rsa.PublicKey
}

// InitAppState opens every backing store. Stores opened before a failure
// are closed again.
func InitAppState(ctx context.Context, cancel context.CancelFunc, conf *config.AppConfig) (*AppState, error) {
	app := &AppState{Ctx: ctx, Cancel: cancel}

	publicKey, err := InitSecret(conf.AUTH.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load jwt public key: %w", err)
	}
	app.PublicKey = publicKey

	if app.DB, _, err = InitPostgres(conf.DATABASE.Postgres.DSN); err != nil {
		return nil, err
	}

	if app.Mongo, app.MongoDB, err = InitMongo(ctx, conf.DATABASE.Mongo.Url, conf.DATABASE.Mongo.Name); err != nil {
		app.Close()
		return nil, err
	}

	if app.Redis, err = InitRedis(conf.DATABASE.Redis.Addr, conf.DATABASE.Redis.Password, conf.DATABASE.Redis.DB); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func (a *AppState) Close() {
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			log.Info().Msg("Closing PostgreSQL database connection...")
			sqlDB.Close()
		}
	}

	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		log.Info().Msg("Closing MongoDB client...")
		defer cancel()
		if err := a.Mongo.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect MongoDB client")
		}
	}

	if a.Redis != nil {
		log.Info().Msg("Closing Redis client...")
		if err := a.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis client")
		}
	}
}
