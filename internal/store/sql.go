package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/nhle/taskboard/internal/realtime"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore implements Store on top of sqlx. The same queries serve SQLite
// and Postgres; placeholders are rebound per driver.
type SQLStore struct {
	db        *sqlx.DB
	driver    string
	publisher Publisher
	now       func() time.Time
}

// Open opens a store for the named driver. dsn is a file path (or
// ":memory:") for sqlite and a connection string for postgres.
func Open(driver, dsn string, opts ...Option) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		return NewSQLiteStore(dsn, opts...)
	case DriverPostgres:
		return NewPostgresStore(dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLStore, error) {
	db, err := sqlx.Open(DriverSQLite, dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return newSQLStore(db, DriverSQLite, opts)
}

// NewPostgresStore connects to Postgres and runs any pending migrations,
// including the triggers that publish inserts over NOTIFY.
func NewPostgresStore(dsn string, opts ...Option) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return newSQLStore(db, DriverPostgres, opts)
}

func newSQLStore(db *sqlx.DB, driver string, opts []Option) (*SQLStore, error) {
	s := &SQLStore{
		db:     db,
		driver: driver,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle for maintenance and tests.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order, each inside its own transaction.
func (s *SQLStore) runMigrations() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	currentVersion := 0
	if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if m.driver != "" && m.driver != s.driver {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLStore) applyMigration(m migration) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning migration v%d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(renderDDL(m.sql, s.driver)); err != nil {
		return fmt.Errorf("applying migration v%d: %w", m.version, err)
	}
	if _, err := tx.Exec(s.db.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.version); err != nil {
		return fmt.Errorf("recording migration v%d: %w", m.version, err)
	}
	return tx.Commit()
}

// publish hands a written record to the configured publisher, if any.
func (s *SQLStore) publish(table string, event realtime.Event, record any) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	s.publisher.Publish(realtime.Change{Table: table, Event: event, Record: payload})
}

// in expands a query with an IN (?) clause and rebinds it for the driver.
func (s *SQLStore) in(query string, args ...any) (string, []any, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return s.db.Rebind(query), args, nil
}

// boolToInt converts a boolean to 0 or 1 for INTEGER flag columns.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}
