package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/packquote-backend/internal/rates"
	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/db"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/migrate"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
)

type options struct {
	cmd       string
	dir       string
	name      string
	version   string
	ratesFile string
	reason    string
	eventType string
	limit     int
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "command: up|down|status|redo|version|create|validate|import-rates|dlq")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (create)")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.StringVar(&opts.ratesFile, "rates", "", "JSON rate table to publish (import-rates)")
	flag.StringVar(&opts.reason, "reason", "", "dead-letter reason filter (dlq)")
	flag.StringVar(&opts.eventType, "event-type", "", "event type filter (dlq)")
	flag.IntVar(&opts.limit, "limit", 50, "rows to list (dlq)")
	flag.Parse()

	cfg, err := config.Load()
	exitOn(context.Background(), logg, "load config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	// create and validate only touch the filesystem.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			exitOn(ctx, logg, "create", fmt.Errorf("missing -name"))
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created migration:", path)
		return
	case "validate":
		exitOn(ctx, logg, "validate migrations", migrate.ValidateDir(opts.dir))
		fmt.Println("migration validation passed")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "bootstrap database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "sql handle", err)

	exitOn(ctx, logg, opts.cmd, run(ctx, opts, dbClient, sqlDB))
	logg.Info(ctx, "migrate finished")
}

func run(ctx context.Context, opts options, client *db.Client, sqlDB *sql.DB) error {
	switch opts.cmd {
	case "up", "down", "status", "redo":
		m, err := migrate.NewMigrator(sqlDB, opts.dir)
		if err != nil {
			return err
		}
		return m.Exec(ctx, migrate.Command(opts.cmd))
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version")
		}
		m, err := migrate.NewMigrator(sqlDB, opts.dir)
		if err != nil {
			return err
		}
		return m.To(ctx, opts.version)
	case "import-rates":
		if opts.ratesFile == "" {
			return fmt.Errorf("missing -rates")
		}
		table, err := loadRates(opts.ratesFile)
		if err != nil {
			return err
		}
		return rates.NewRepository(client.DB()).Publish(ctx, table, time.Now().UTC())
	case "dlq":
		filter, err := dlqFilter(opts)
		if err != nil {
			return err
		}
		rows, err := outbox.NewDLQRepository(client.DB()).List(ctx, filter)
		if err != nil {
			return err
		}
		return writeDeadLetters(os.Stdout, rows)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("migrate step failed: %s", step), err)
	os.Exit(1)
}
