package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppConfig struct {
	App struct {
		Name           string   `mapstructure:"NAME"`
		Port           string   `mapstructure:"PORT"`
		LogLevel       string   `mapstructure:"LOG_LEVEL"`
		CorsOrigins    []string `mapstructure:"CORS_ORIGINS"`
		TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`
	}

	DATABASE struct {
		Postgres struct {
			DSN string `mapstructure:"URL"`
		}
		Redis struct {
			Addr     string `mapstructure:"ADDR"`
			Password string `mapstructure:"PASSWORD"`
			DB       int    `mapstructure:"DB"`
		}
		Mongo struct {
			Url  string `mapstructure:"URL"`
			Name string `mapstructure:"NAME"`
		}
	}

	AUTH struct {
		PublicKeyPath string `mapstructure:"PUBLIC_KEY_PATH"`
	}

	WEBSOCKET struct {
		MaxConnections   int `mapstructure:"MAX_CONNECTIONS"`
		ConnectionsPerIP int `mapstructure:"CONNECTIONS_PER_IP"`
	}

	RATE_LIMIT struct {
		Requests int           `mapstructure:"REQUESTS"`
		Window   time.Duration `mapstructure:"WINDOW"`
	}

	WORKER struct {
		Num              int           `mapstructure:"NUM"`
		DLQBatchSize     int           `mapstructure:"DLQ_BATCH_SIZE"`
		DLQRetryInterval time.Duration `mapstructure:"DLQ_RETRY_INTERVAL"`
		DLQMaxRetry      int           `mapstructure:"DLQ_MAX_RETRY"`
		DLQBackoffFactor float64       `mapstructure:"DLQ_BACKOFF_FACTOR"`
		DLQCollection    string        `mapstructure:"DLQ_COLLECTION"`
	}

	MAILTRAP struct {
		SMTPHost string `mapstructure:"SMTP_HOST"`
		SMTPPort int    `mapstructure:"SMTP_PORT"`
		Username string `mapstructure:"USERNAME"`
		Password string `mapstructure:"PASSWORD"`
		From     string `mapstructure:"FROM"`
	}
}

var Conf *AppConfig

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP.NAME", "sociale")
	v.SetDefault("APP.PORT", ":5000")
	v.SetDefault("APP.LOG_LEVEL", "info")
	v.SetDefault("APP.CORS_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("APP.TRUSTED_PROXIES", []string{})

	v.SetDefault("DATABASE.REDIS.ADDR", "localhost:6379")
	v.SetDefault("DATABASE.REDIS.DB", 0)
	v.SetDefault("DATABASE.MONGO.NAME", "sociale")

	v.SetDefault("AUTH.PUBLIC_KEY_PATH", "public.pem")

	v.SetDefault("WEBSOCKET.MAX_CONNECTIONS", 10000)
	v.SetDefault("WEBSOCKET.CONNECTIONS_PER_IP", 20)

	v.SetDefault("RATE_LIMIT.REQUESTS", 100)
	v.SetDefault("RATE_LIMIT.WINDOW", 15*time.Minute)

	v.SetDefault("WORKER.NUM", 5)
	v.SetDefault("WORKER.DLQ_BATCH_SIZE", 50)
	v.SetDefault("WORKER.DLQ_RETRY_INTERVAL", time.Minute)
	v.SetDefault("WORKER.DLQ_MAX_RETRY", 5)
	v.SetDefault("WORKER.DLQ_BACKOFF_FACTOR", 2.0)
	v.SetDefault("WORKER.DLQ_COLLECTION", "dlq_jobs")
}

// Load reads application.yaml from path (if present), then the environment.
// A .env file in the working directory is applied to the environment first.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetEnvPrefix("CHATAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Warn().Msg("application.yaml not found, using defaults and environment")
	}

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"DATABASE.POSTGRES.URL",
		"DATABASE.REDIS.PASSWORD",
		"DATABASE.MONGO.URL",
		"MAILTRAP.SMTP_HOST",
		"MAILTRAP.SMTP_PORT",
		"MAILTRAP.USERNAME",
		"MAILTRAP.PASSWORD",
		"MAILTRAP.FROM",
	} {
		_ = v.BindEnv(key)
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

func LoadConfig() error {
	config, err := Load(".")
	if err != nil {
		return err
	}

	Conf = config
	log.Info().Msg("configuration loaded...")
	return nil
}
