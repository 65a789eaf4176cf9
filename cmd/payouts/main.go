// Package main запускает HTTP-сервер сервиса выплат.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/octa-payouts/internal/config"
	"github.com/mmeshcher/octa-payouts/internal/handler"
	"github.com/mmeshcher/octa-payouts/internal/metrics"
	"github.com/mmeshcher/octa-payouts/internal/middleware"
	"github.com/mmeshcher/octa-payouts/internal/model"
	"github.com/mmeshcher/octa-payouts/internal/notify"
	"github.com/mmeshcher/octa-payouts/internal/repository"
	"github.com/mmeshcher/octa-payouts/internal/service"
	"github.com/mmeshcher/octa-payouts/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Warn("DATABASE_URI is empty, using in-memory store")
		repo = repository.NewMemoryRepository()
	}

	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			sugar.Fatalw("redis connection error", "addr", cfg.RedisAddress, "error", err.Error())
		}
		notifier = notify.NewRedisPublisher(rdb, logger)
	}

	documents, err := storage.NewLocalStore(cfg.DocumentsDir, cfg.DocumentsBaseURL, logger)
	if err != nil {
		sugar.Fatalw("document storage initialization error", "error", err.Error())
	}

	collector := metrics.NewCollector()

	svc := service.NewService(repo, logger,
		service.WithNotifier(notifier),
		service.WithDocumentStore(documents),
		service.WithRecorder(collector),
		service.WithUniqueIDAttempts(cfg.UniqueIDAttempts),
	)
	defer svc.Close()

	if err := bootstrapAdmin(svc, cfg); err != nil {
		sugar.Fatalw("bootstrap admin error", "error", err.Error())
	}

	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is empty, tokens will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.TokenTTL)
	h := handler.NewHandler(svc, logger, authMiddleware,
		handler.WithMetrics(collector.Handler()),
		handler.WithDocuments(documents.BaseURL(), documents.Handler()),
		handler.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting payouts server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Остановка по сигналу или при ошибке сервера.
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func bootstrapAdmin(svc *service.Service, cfg *config.Config) error {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return svc.EnsureAdmin(ctx, model.Admin{
		Name:         cfg.BootstrapAdminName,
		Email:        cfg.BootstrapAdminEmail,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	})
}
