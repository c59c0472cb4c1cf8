package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where the goose SQL files live relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

const (
	dialect       = "postgres"
	versionLayout = "20060102150405"
)

// Command is a goose command the migrate binary passes through.
type Command string

const (
	CommandUp     Command = "up"
	CommandDown   Command = "down"
	CommandStatus Command = "status"
	CommandRedo   Command = "redo"
)

// Migrator runs goose against one database and migrations directory.
type Migrator struct {
	db  *sql.DB
	dir string
}

func NewMigrator(db *sql.DB, dir string) (*Migrator, error) {
	switch {
	case db == nil:
		return nil, errors.New("db is required")
	case dir == "":
		return nil, errors.New("dir is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{db: db, dir: dir}, nil
}

// Exec runs one of the pass-through commands.
func (m *Migrator) Exec(ctx context.Context, cmd Command) error {
	switch cmd {
	case CommandUp, CommandDown, CommandStatus, CommandRedo:
	default:
		return fmt.Errorf("unsupported goose command %q", cmd)
	}
	if err := goose.RunContext(ctx, string(cmd), m.db, m.dir); err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

// To moves the schema to an exact version in whichever direction it needs.
func (m *Migrator) To(ctx context.Context, rawVersion string) error {
	target, err := ParseVersion(rawVersion)
	if err != nil {
		return err
	}
	current, err := goose.GetDBVersion(m.db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch directionTo(current, target) {
	case directionUp:
		err = goose.UpToContext(ctx, m.db, m.dir, target)
	case directionDown:
		err = goose.DownToContext(ctx, m.db, m.dir, target)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

type direction int

const (
	directionNone direction = iota
	directionUp
	directionDown
)

func directionTo(current, target int64) direction {
	switch {
	case current < target:
		return directionUp
	case current > target:
		return directionDown
	}
	return directionNone
}

// ParseVersion reads a migration version. Versions are UTC timestamps, so
// "20241399000000" is rejected even though it has the right length.
func ParseVersion(raw string) (int64, error) {
	if _, err := time.Parse(versionLayout, raw); err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	var v int64
	for _, r := range raw {
		v = v*10 + int64(r-'0')
	}
	return v, nil
}
