package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/kvetinski/identity/config"
	"github.com/kvetinski/identity/internal/adapters/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	direction := flag.String("direction", "up", "migration direction: up or down")
	dsn := flag.String("dsn", "", "postgres connection string (defaults to POSTGRES_URI)")
	flag.Parse()

	uri := *dsn
	if uri == "" {
		uri = config.PostgresURI()
	}

	if err := repository.Migrate(uri, *direction); err != nil {
		logger.Error("migration failed", "direction", *direction, "error", err)
		os.Exit(1)
	}

	logger.Info("migration complete", "direction", *direction)
}
