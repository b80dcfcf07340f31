package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cupid-chocolate/giftlab/internal/config"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Open opens the configured database and applies pool settings.
// Statements in this package use $N placeholders, which both drivers accept
// as long as arguments are numbered in order of appearance.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite3", sqliteDSN(cfg.SQLite))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if cfg.SQLite.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
		}
		return db, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func sqliteDSN(cfg config.SQLiteConfig) string {
	path := cfg.Path
	if path == "" || path == ":memory:" || strings.Contains(path, "?") || cfg.JournalMode == "" {
		return path
	}
	return path + "?_journal_mode=" + cfg.JournalMode + "&_busy_timeout=5000"
}

// placeholders numbers query arguments as they are appended.
type placeholders struct {
	args []interface{}
}

// add appends an argument and returns its placeholder.
func (p *placeholders) add(v interface{}) string {
	p.args = append(p.args, v)
	return fmt.Sprintf("$%d", len(p.args))
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func str(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}
