package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safecase/backend/internal/api/handler"
	"safecase/backend/internal/casehub"
	"safecase/backend/internal/config"
	"safecase/backend/internal/ledger"
	"safecase/backend/internal/localization"
	"safecase/backend/internal/logging"
	"safecase/backend/internal/metrics"
	"safecase/backend/internal/storage"
	"safecase/backend/internal/telegram"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gorm.DB, *redis.Client, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect Redis: %w", err)
	}

	logger.Info("database and redis connections established")
	return db, rdb, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting safecase backend", zap.String("addr", cfg.HTTPAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	db, rdb, err := setupDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()

	s := storage.NewStorageService(db, rdb, logger.Named("storage"))
	if err := s.Migrate(); err != nil {
		return err
	}

	// 2. Ledger, rebuilt from the persisted state
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	l := ledger.New(logger.Named("ledger"),
		ledger.WithJournal(s),
		ledger.WithNotifier(s),
		ledger.WithRecorder(metrics.Default()),
	)
	if err := l.Restore(snap); err != nil {
		return fmt.Errorf("failed to restore ledger: %w", err)
	}

	// 3. Case hub and the optional Telegram bot
	hub := casehub.NewManager(s, logger.Named("casehub"))
	go hub.Run(ctx)

	if cfg.TelegramBotToken != "" {
		localizer, err := localization.NewLocalizer()
		if err != nil {
			return fmt.Errorf("failed to create localizer: %w", err)
		}
		bot, err := telegram.NewBotService(cfg.TelegramBotToken, l, hub, localizer, logger.Named("telegram"))
		if err != nil {
			return fmt.Errorf("failed to start telegram bot: %w", err)
		}
		go bot.Run(ctx)
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, reporter bot disabled")
	}

	// 4. HTTP
	tokens := handler.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	h := handler.NewHandler(l, s, hub, tokens, logger.Named("http"))

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        handler.NewRouter(h),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
