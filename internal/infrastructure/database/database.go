package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// pingTimeout bounds the connectivity check in Open.
	pingTimeout = 5 * time.Second

	// defaultBusyTimeout is used when Config.BusyTimeout is zero.
	defaultBusyTimeout = 5 * time.Second
)

// DB is an in-memory SQLite database that lives exactly as long as the
// process holding it.
//
// The database exists only while at least one connection is open, so the
// pool is pinned to a single connection that is never recycled.
type DB struct {
	*sql.DB
	name string
}

// Config contains database options.
type Config struct {
	// Name identifies the in-memory database. Handles opened with the
	// same Name in one process share it.
	Name string

	// BusyTimeout is the maximum wait for a lock.
	BusyTimeout time.Duration
}

// DSN returns the go-sqlite3 connection string for cfg.
func (cfg Config) DSN() string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	q := url.Values{}
	q.Set("mode", "memory")
	q.Set("cache", "shared")
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.FormatInt(busy.Milliseconds(), 10))
	return "file:" + url.PathEscape(cfg.Name) + "?" + q.Encode()
}

// Open creates the in-memory database and verifies it answers.
//
// Parameters:
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If the name is empty or the connection fails
func Open(cfg Config) (*DB, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("opening database: name is required")
	}

	sqlDB, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Closing the last connection discards the data.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	db := &DB{DB: sqlDB, name: cfg.Name}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	return db, nil
}

// Close releases the connection and with it all data.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Name returns the in-memory database name.
func (db *DB) Name() string {
	return db.name
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// ExecContext executes a statement that returns no rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// BeginTx starts a transaction.
//
// Example:
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // no-op after commit
//
//	// ... execute queries on tx ...
//
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
