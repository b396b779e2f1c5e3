// Command initdb creates the users table and its wallet index if they are missing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/wallet-auth/internal/config"
	"github.com/hongminglow/wallet-auth/internal/logging"
	postgres "github.com/hongminglow/wallet-auth/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	settings := config.LoadLogSettings()
	logger, closeLog := logging.New(logging.Options{Debug: settings.Debug, File: settings.File})

	code := 0
	if err := run(context.Background(), logger); err != nil {
		logger.Error("database initialization failed", slog.Any("error", err))
		code = 1
	}
	if err := closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, logger *slog.Logger) error {
	dbURL, err := config.LoadDatabaseURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	logger.Info("initializing database")
	store, err := postgres.NewUserStore(ctx, dbURL, postgres.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	return store.InitializeDatabase(ctx)
}
