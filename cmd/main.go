package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThinkYuvraj/Sociale/config"
	"github.com/ThinkYuvraj/Sociale/internal/presence"
	"github.com/ThinkYuvraj/Sociale/internal/queue"
	chat_repo "github.com/ThinkYuvraj/Sociale/internal/repo/chat"
	user_repo "github.com/ThinkYuvraj/Sociale/internal/repo/user"
	"github.com/ThinkYuvraj/Sociale/internal/routers"
	chat_service "github.com/ThinkYuvraj/Sociale/internal/use-case/chat-case"
	"github.com/ThinkYuvraj/Sociale/internal/utils/types"
	"github.com/ThinkYuvraj/Sociale/internal/websocket"
	"github.com/ThinkYuvraj/Sociale/internal/worker"
	worker_handler "github.com/ThinkYuvraj/Sociale/internal/worker/worker-handler"
	worker_service "github.com/ThinkYuvraj/Sociale/internal/worker/worker-service"
	"github.com/ThinkYuvraj/Sociale/state"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	conf := config.Conf

	level, err := zerolog.ParseLevel(conf.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	appState, err := state.InitAppState(ctx, stop, conf)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application state")
	}
	defer appState.Close()

	userRepo := user_repo.NewUserRepo(appState.DB)
	// nobody is connected yet
	if err := userRepo.ResetPresence(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to reset presence columns")
	}
	users := user_repo.NewUserLookup(userRepo, appState.Redis)

	chatRepo := chat_repo.NewChatRepo(appState.MongoDB)
	if err := chatRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create chat indexes")
	}

	if err := websocket.SetTrustedProxies(conf.App.TrustedProxies); err != nil {
		log.Fatal().Err(err).Msg("invalid trusted proxy list")
	}

	wsHub := websocket.NewHub()
	registry := presence.NewRegistry()
	log.Info().Msg("Websocket hub initialized")

	producer := queue.NewProducer(appState.Redis)
	engine := chat_service.NewChatEngine(wsHub, chatRepo, users, registry, userRepo, queue.NewOfflineNotifier(producer))
	chatService := chat_service.NewChatService(chatRepo, users, registry, wsHub)

	authenticator := websocket.JWTAuthenticator(appState.PublicKey, users.Fresh())
	wsHandler := websocket.NewWebSocketHandler(wsHub, engine, authenticator, websocket.ConnectionLimits{
		MaxConnections:   conf.WEBSOCKET.MaxConnections,
		ConnectionsPerIP: conf.WEBSOCKET.ConnectionsPerIP,
	}, conf.App.CorsOrigins)
	log.Info().Msg("Websocket handler initialized")

	workerPool := worker.NewWorkerPool(appState.Redis, appState.MongoDB, conf.WORKER.Num, types.DLQRetryConfig{
		BatchSize:      conf.WORKER.DLQBatchSize,
		RetryInterval:  conf.WORKER.DLQRetryInterval,
		MaxRetryCount:  conf.WORKER.DLQMaxRetry,
		BackoffFactor:  conf.WORKER.DLQBackoffFactor,
		CollectionName: conf.WORKER.DLQCollection,
	}, worker_handler.NewWorkerHandler(userRepo, worker_service.NewPushNotifier(conf)))
	workerPool.Start(ctx)
	workerPool.StartDLQWorker(ctx)
	workerPool.StartDLQRetryConsumer(ctx)

	r := routers.NewRouter(routers.Deps{
		Redis:       appState.Redis,
		CorsOrigins: conf.App.CorsOrigins,
		RateLimit: routers.RateLimitConfig{
			Requests: conf.RATE_LIMIT.Requests,
			Window:   conf.RATE_LIMIT.Window,
		},
		Authenticator: authenticator,
		Chats:         chatService,
		Membership:    chatRepo,
		Hub:           wsHub,
		Presence:      registry,
		WebSocket:     wsHandler,
		DLQ:           workerPool,
	})

	server := &http.Server{
		Addr:              conf.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Msgf("Starting server on http://localhost%s", conf.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ListenAndServe failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown initiated...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	wsHub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	} else {
		log.Info().Msg("Server exited gracefully.")
	}

	workerPool.Wait()
	registry.Reset()
	if err := userRepo.ResetPresence(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("failed to reset presence columns")
	}
}
