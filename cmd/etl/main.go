package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"empleo-dw/internal/app"
	"empleo-dw/internal/config"
	"empleo-dw/internal/database/migration"
	"empleo-dw/migrations"

	"github.com/lmittmann/tint"
)

func main() {
	dataDir := flag.String("data-dir", "", "directory with the cleaned CSV extracts (overrides DATA_DIR)")
	skipMigrations := flag.Bool("skip-migrations", false, "do not apply schema migrations before the run")
	timeout := flag.Duration("timeout", 2*time.Hour, "overall batch deadline")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.ETL.DataDir = *dataDir
	}

	c, err := app.NewContainer(cfg, log)
	if err != nil {
		log.Error("init container", "err", err)
		os.Exit(1)
	}
	defer func() {
		_ = c.Close()
	}()

	if !*skipMigrations {
		migCtx, migCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		r := migration.Runner{FS: migrations.FS}
		err := r.Run(migCtx, c.DB.SQLDB())
		migCancel()
		if err != nil {
			log.Error("apply migrations", "err", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := c.Batch.Run(ctx)
	if err != nil {
		log.Error("batch failed", "err", err)
		os.Exit(1)
	}

	log.Info("warehouse build complete",
		"run_id", report.RunID,
		"duration", report.Duration,
	)
}
