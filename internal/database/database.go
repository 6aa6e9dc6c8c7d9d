package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"slotbook/internal/config"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrSlotTaken              = errors.New("slot already has a confirmed reservation")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DB wraps the connection pool with a driver-aware query builder.
type DB struct {
	*sql.DB
	driver string
	path   string
	sb     sq.StatementBuilderType
	logger *zerolog.Logger
}

// NewDB opens a sqlite database at path, creating parent directories as needed.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path, BusyTimeout: 5000}, logger)
}

// Open connects to the configured driver and runs migrations.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	var (
		dsn         string
		placeholder sq.PlaceholderFormat
	)

	switch cfg.Driver {
	case config.DriverSQLite, "":
		cfg.Driver = config.DriverSQLite
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on", cfg.Path, cfg.BusyTimeout)
		placeholder = sq.Question
	case config.DriverPostgres:
		dsn = cfg.Postgres.DSN()
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	conn, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// each :memory: connection is a separate database
	if cfg.Path == ":memory:" {
		conn.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:     conn,
		driver: cfg.Driver,
		path:   cfg.Path,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger: logger,
	}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("driver", cfg.Driver).Msg("Database initialized")
	return db, nil
}

func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) migrate(ctx context.Context) error {
	ts, boolTrue, float, serial := "DATETIME", "1", "REAL", "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.driver == config.DriverPostgres {
		ts, boolTrue, float, serial = "TIMESTAMPTZ", "TRUE", "DOUBLE PRECISION", "BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT ` + boolTrue + `,
			address TEXT NOT NULL DEFAULT '',
			telegram_chat_id BIGINT NOT NULL DEFAULT 0,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL REFERENCES companies(id),
			name TEXT NOT NULL,
			price ` + float + ` NOT NULL DEFAULT 0,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT ` + boolTrue + `
		)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			company_id TEXT PRIMARY KEY REFERENCES companies(id),
			slot_granularity_minutes INTEGER NOT NULL,
			days TEXT NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			service_id TEXT NOT NULL DEFAULT '',
			slot_date TEXT NOT NULL,
			slot_time TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL,
			cancelled_at ` + ts + `
		)`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
			id ` + serial + `,
			task_type TEXT NOT NULL,
			reservation_id TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at ` + ts + ` NOT NULL,
			processed_at ` + ts + `,
			next_retry_at ` + ts + `
		)`,

		// at most one confirmed reservation per slot
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_reservations_confirmed_slot
			ON reservations(company_id, slot_date, slot_time) WHERE status = 'confirmed'`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_company_date ON reservations(company_id, slot_date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_client ON reservations(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_services_company ON services(company_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
