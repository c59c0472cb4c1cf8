package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/db"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

type bootAction int

const (
	bootCheck bootAction = iota
	bootApply
)

// Applying on boot is a dev convenience; deployed environments run the
// migrate command and only check here.
func actionFor(cfg *config.Config) bootAction {
	if cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate {
		return bootApply
	}
	return bootCheck
}

// OnBoot brings the schema up in dev with PACKQUOTE_AUTO_MIGRATE set.
// Anywhere else it logs migrations the database has not seen yet. In prod a
// lagging schema is an error so the service refuses to start against it.
func OnBoot(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if err := ValidateDir(DefaultDir); err != nil {
		return fmt.Errorf("validating migrations: %w", err)
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})

	if actionFor(cfg) == bootApply {
		logg.Info(ctx, "applying migrations")
		m, err := NewMigrator(sqlDB, DefaultDir)
		if err != nil {
			return err
		}
		if err := m.Exec(ctx, CommandUp); err != nil {
			return err
		}
		logg.Info(ctx, "migrations applied")
		return nil
	}

	pending, err := Pending(sqlDB, DefaultDir)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	logg.Warn(logg.WithField(ctx, "pending", pending), "database schema is behind")
	if cfg.App.IsProd() {
		return fmt.Errorf("%d pending migrations, first %d", len(pending), pending[0])
	}
	return nil
}

// Pending lists migration versions in dir newer than the database's version.
func Pending(sqlDB *sql.DB, dir string) ([]int64, error) {
	if err := goose.SetDialect(dialect); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	current, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	return pendingAfter(dir, current)
}

func pendingAfter(dir string, current int64) ([]int64, error) {
	migrations, err := goose.CollectMigrations(dir, current, goose.MaxVersion)
	if errors.Is(err, goose.ErrNoMigrationFiles) {
		// Nothing newer than current: the schema is up to date.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("collect migrations: %w", err)
	}
	versions := make([]int64, 0, len(migrations))
	for _, m := range migrations {
		if m.Version > current {
			versions = append(versions, m.Version)
		}
	}
	return versions, nil
}
