// ABOUTME: SQLite store using modernc.org/sqlite with automatic schema creation
// ABOUTME: Holds sandbox CRM records per tenant and the action audit log

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements SandboxStore and AuditStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema exists.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	memory := path == MemoryPath || strings.Contains(path, "mode=memory")
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS contacts (
			tenant          TEXT NOT NULL,
			id              TEXT NOT NULL,
			firstname       TEXT NOT NULL,
			lastname        TEXT NOT NULL,
			email           TEXT NOT NULL DEFAULT '',
			properties_json TEXT NOT NULL DEFAULT '{}',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			PRIMARY KEY (tenant, id)
		);

		CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(tenant, firstname, lastname);

		CREATE TABLE IF NOT EXISTS companies (
			tenant          TEXT NOT NULL,
			id              TEXT NOT NULL,
			name            TEXT NOT NULL,
			properties_json TEXT NOT NULL DEFAULT '{}',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			PRIMARY KEY (tenant, id)
		);

		CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(tenant, name);

		CREATE TABLE IF NOT EXISTS engagements (
			tenant            TEXT NOT NULL,
			id                TEXT NOT NULL,
			type              TEXT NOT NULL,
			ts_ms             INTEGER NOT NULL,
			created_at_ms     INTEGER NOT NULL DEFAULT 0,
			last_updated_ms   INTEGER NOT NULL DEFAULT 0,
			created_by        TEXT NOT NULL DEFAULT '',
			modified_by       TEXT NOT NULL DEFAULT '',
			associations_json TEXT NOT NULL DEFAULT '{}',
			content_json      TEXT,
			PRIMARY KEY (tenant, id)
		);

		CREATE INDEX IF NOT EXISTS idx_engagements_ts ON engagements(tenant, ts_ms);

		CREATE TABLE IF NOT EXISTS engagement_companies (
			tenant        TEXT NOT NULL,
			engagement_id TEXT NOT NULL,
			company_id    TEXT NOT NULL,
			position      INTEGER NOT NULL,
			PRIMARY KEY (tenant, engagement_id, company_id),
			FOREIGN KEY (tenant, engagement_id) REFERENCES engagements(tenant, id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_engagement_companies_company
			ON engagement_companies(tenant, company_id);

		CREATE TABLE IF NOT EXISTS action_log (
			log_id      TEXT PRIMARY KEY,
			ts          TEXT NOT NULL,
			tenant      TEXT NOT NULL DEFAULT '',
			action      TEXT NOT NULL,
			kind        TEXT NOT NULL DEFAULT '',
			status      INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_action_log_ts ON action_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_action_log_tenant ON action_log(tenant, ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE/PRIMARY KEY constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString returns nil for empty strings so the column stores NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
