package main

import (
	"context"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/IsmaHaa12/smp-announcement/internal/config"
	"github.com/IsmaHaa12/smp-announcement/internal/identity"
	"github.com/IsmaHaa12/smp-announcement/internal/logging"
	"github.com/IsmaHaa12/smp-announcement/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg)
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("db connection failed")
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		logger.WithError(err).Fatal("db migration failed")
	}

	cli := commandLine{
		users:    identity.NewDirectory(pool, logger),
		validate: validator.New(),
		out:      os.Stdout,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			logger.WithError(err).Error("admin command failed")
		}
		pool.Close()
		os.Exit(1)
	}
}
