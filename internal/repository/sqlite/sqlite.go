// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// An office gift exchange has a few dozen participants and a handful of writes
// per person. An embedded, single-file database is plenty, and there is no
// server to run next to the app.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code.
//
// MIGRATIONS:
// Schema changes live in migrations/*.sql and are embedded into the binary.
// goose records which ones have run in its own goose_db_version table, so
// New() is safe to call on every start-up.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	// BLANK-ISH IMPORT:
	// Importing the driver registers it with database/sql under the name "sqlite".
	// We also use its Error type to recognise constraint violations.
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// busyTimeoutMS is how long a writer waits for another writer's lock before
// giving up with SQLITE_BUSY.
const busyTimeoutMS = 5000

// DB wraps a sql.DB connection pool and provides repository methods.
// One *DB implements every interface in the repository package.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/santa.db" → file-based database (persistent)
//   - ":memory:"      → in-memory database
//
// PER-CONNECTION PRAGMAS:
// database/sql keeps a pool of connections, and a PRAGMA executed with
// conn.Exec only reaches whichever connection ran it. modernc's _pragma DSN
// parameters are applied to every new connection instead, so each one gets the
// busy timeout and foreign-key enforcement.
//
// IN-MEMORY DATABASES:
// Every connection to ":memory:" would get its own empty database, so we cap
// the pool at a single connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMS),
		"_pragma=foreign_keys(1)",
	}
	if dbPath != ":memory:" {
		// WAL lets readers proceed while a write is in progress.
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return dbPath + "?" + strings.Join(pragmas, "&")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies any pending embedded migrations.
func (db *DB) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.conn, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing if fn returns nil and
// rolling back otherwise.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		// Rollback after a failed statement can itself fail; the original
		// error is the one worth reporting.
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Code() may be the extended code (e.g. SQLITE_CONSTRAINT_UNIQUE); the low
	// byte is always the primary code.
	if sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	msg := sqliteErr.Error()
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "PRIMARY KEY")
}

// nullableTime converts a *time.Time into something database/sql can bind as NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// nullTime converts a nullable column into the *time.Time our models use.
func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
