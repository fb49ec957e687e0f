// Package main запускает HTTP-сервер программы лояльности.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/loyalty-system/internal/config"
	"github.com/mmeshcher/loyalty-system/internal/handler"
	"github.com/mmeshcher/loyalty-system/internal/metrics"
	"github.com/mmeshcher/loyalty-system/internal/middleware"
	"github.com/mmeshcher/loyalty-system/internal/notify"
	"github.com/mmeshcher/loyalty-system/internal/repository"
	"github.com/mmeshcher/loyalty-system/internal/service"
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
		sugar.Warn("DATABASE_URI is not set, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	m := metrics.New()

	opts := service.Options{
		Threshold:       cfg.WinnerThresholdPoints,
		CodeLength:      cfg.WinnerCodeLength,
		CodeMaxAttempts: cfg.WinnerCodeMaxAttempts,
		QRBaseURL:       cfg.QRBaseURL,
		Metrics:         m,
		Logger:          logger,
	}
	if cfg.NotificationServiceAddress != "" {
		opts.Notifier = notify.NewClient(cfg.NotificationServiceAddress)
	}

	svc := service.NewService(repo, opts)
	defer svc.Close()

	if cfg.Development() {
		if err := svc.SeedStaff(context.Background(), service.DevelopmentStaff); err != nil {
			sugar.Fatalw("staff seeding error", "error", err.Error())
		}
	}

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, staff tokens will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, m.Handler())

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая отправка уведомлений победителям
	g.Go(func() error {
		svc.StartWinnerNotifications(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting loyalty server",
			"addr", cfg.RunAddress,
			"threshold", cfg.WinnerThresholdPoints,
			"code_length", cfg.WinnerCodeLength,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
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
