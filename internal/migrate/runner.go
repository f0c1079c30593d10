// Package migrate applies the embedded SQL migrations using golang-migrate.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/newsletter/newsletter/migrations"
)

// ErrNoChange is returned when the schema is already at the target version.
var ErrNoChange = migrate.ErrNoChange

// Direction selects which way to migrate.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a direction supplied on the command line.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("direction must be up or down, got %q", s)
	}
}

// Run applies all migrations in direction against dsn.
// ErrNoChange is returned as-is so callers can decide whether it matters.
func Run(dsn string, direction Direction, logger *slog.Logger) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if _, err := ParseDirection(string(direction)); err != nil {
		return err
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if logger != nil {
		m.Log = &migrateLogger{logger: logger}
	}

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return ErrNoChange
		}
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	return nil
}

// migrateLogger adapts slog to migrate.Logger.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
