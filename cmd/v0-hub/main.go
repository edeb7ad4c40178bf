package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/TommyBez/v0-hub/internal/cache"
	"github.com/TommyBez/v0-hub/internal/client"
	"github.com/TommyBez/v0-hub/internal/config"
	"github.com/TommyBez/v0-hub/internal/resolver"
	"github.com/TommyBez/v0-hub/internal/service"
	"github.com/TommyBez/v0-hub/internal/storage"
	"github.com/TommyBez/v0-hub/internal/storage/postgres"
	transport "github.com/TommyBez/v0-hub/internal/transport/http"
	"github.com/TommyBez/v0-hub/pkg/logger"
)

func main() {
	// .env is optional; viper env bindings pick up whatever it sets
	_ = godotenv.Load()

	pathConfig := os.Getenv("CONFIG_PATH")
	if err := config.MustLoadConfig(pathConfig); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	env := cfg.ENV
	log := logger.NewLogger(env)
	ctx := context.Background()
	ctx = logger.WithLogger(ctx, log)
	ctx = logger.WithRequestID(ctx, uuid.NewString())
	log.Info(ctx, "starting v0-hub",
		zap.String("env", env),
	)

	if cfg.Chat.SystemKey == "" {
		// Public chat creation cannot work without it; refuse to start.
		log.Fatal(ctx, "chat.system_key (V0_API_KEY) is not configured")
	}

	// Connect to the shared cache with retry logic (exponential backoff)
	store, err := connectCacheWithRetry(ctx, log, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		Database: cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal(ctx, "failed to connect to cache after retries", zap.Error(err))
	}
	log.Info(ctx, "cache connection established")

	tokens, closeTokens := newTokenStore(ctx, log, cfg)
	defer closeTokens()

	directory := client.NewGitHubClient(cfg.GitHub.APIURL, cfg.GitHub.Token)
	chat := client.NewChatClient(cfg.Chat.APIURL)
	branches := resolver.NewResolver(directory, store)

	svc := service.NewService(branches, chat, store, tokens, cfg.Chat.SystemKey)
	handler := transport.NewHandler(svc)
	router := mux.NewRouter()
	handler.RegisterRoutes(router, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info(ctx, "http server starting", zap.String("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(ctx, "server error", zap.Error(err))
		}

	case sig := <-shutdown:
		log.Info(ctx, "shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "graceful shutdown failed, forcing shutdown", zap.Error(err))
			if closeErr := server.Close(); closeErr != nil {
				log.Error(ctx, "server close error", zap.Error(closeErr))
			}
		}
		log.Info(ctx, "server shutdown completed gracefully")
	}
}

// connectCacheWithRetry attempts to connect to Redis with exponential backoff retry logic
func connectCacheWithRetry(ctx context.Context, log logger.Logger, cfg cache.Config) (cache.Cache, error) {
	const (
		maxRetries     = 10
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
	)

	var store cache.Cache
	var err error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Info(ctx, "attempting to connect to cache",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetries),
		)

		store, err = cache.NewRedisCache(cfg)
		if err == nil {
			log.Info(ctx, "successfully connected to cache",
				zap.Int("attempt", attempt),
			)
			return store, nil
		}

		if attempt == maxRetries {
			log.Error(ctx, "max retry attempts reached, giving up",
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)
		}

		log.Warn(ctx, "cache connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		time.Sleep(backoff)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return nil, fmt.Errorf("failed to connect to cache: %w", err)
}

// newTokenStore opens the Postgres-backed token store, falling back to the
// in-process store when no encryption key is configured (dev only: private
// chats then lose their tokens on restart).
func newTokenStore(ctx context.Context, log logger.Logger, cfg *config.Config) (storage.TokenStore, func()) {
	if cfg.Security.TokenKey == "" {
		log.Warn(ctx, "no token encryption key configured, using in-memory token store")
		return storage.NewMemoryStore(), func() {}
	}

	store, err := postgres.NewPostgresStorage(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
		cfg.Security.TokenKey,
	)
	if err != nil {
		log.Fatal(ctx, "failed to connect to database", zap.Error(err))
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close storage connection", zap.Error(err))
		}
	}
}
