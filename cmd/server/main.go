package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/wallet-auth/internal/config"
	"github.com/hongminglow/wallet-auth/internal/logging"
	"github.com/hongminglow/wallet-auth/internal/server"
	postgres "github.com/hongminglow/wallet-auth/internal/storage/postgres"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger, closeLog := logging.New(logging.Options{Debug: cfg.Debug, File: cfg.LogFile})
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found; relying on existing environment")
	}

	code := 0
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		code = 1
	}
	if err := closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
	os.Exit(code)
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	userStore, err := postgres.NewUserStore(ctx, cfg.DatabaseURL,
		postgres.WithLogger(logger),
		postgres.WithQueryTracing(cfg.Debug),
	)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer userStore.Close()

	if cfg.BootstrapOnStart {
		if err := userStore.InitializeDatabase(ctx); err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
	}

	srv := server.New(cfg, userStore, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("wallet auth listening", slog.String("addr", cfg.HTTPAddress()), slog.String("env", cfg.Environment))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", slog.Any("error", err))
	}
	return nil
}
