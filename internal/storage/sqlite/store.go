// Package sqlite implements the storage interface using SQLite.
//
// The store is the serialization point for the whole system: every
// read-then-write invariant (claim selection, cycle check + edge insert,
// transition validation + status write) runs inside a single BEGIN
// IMMEDIATE transaction, so concurrent writers are funneled through one
// writer at a time. Read-only queries go through the connection pool
// without exclusive locking.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"
	"go.opentelemetry.io/otel/metric"

	"github.com/skeinhq/skein/internal/telemetry"
	"github.com/skeinhq/skein/internal/workflow"
)

// Store implements the storage.Storage interface using SQLite.
type Store struct {
	db       *sql.DB
	dbPath   string
	registry *workflow.Registry
	closed   atomic.Bool

	mutations   metric.Int64Counter
	claimsWon   metric.Int64Counter
	claimsEmpty metric.Int64Counter
	undos       metric.Int64Counter
}

// setupWASMCache configures WASM compilation caching so the embedded
// SQLite build is compiled once per machine, not once per process.
// Falls back to an in-memory cache if the cache dir cannot be created.
func setupWASMCache() {
	var cache wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(userCache, "skein", "wasm")
		if c, err := wazero.NewCompilationCacheWithDir(dir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

// New creates a SQLite store at path, initializing the schema and running
// any pending migrations. The registry supplies template validation for
// every mutation; it is immutable for the life of the store.
func New(ctx context.Context, path string, registry *workflow.Registry) (*Store, error) {
	var connStr string
	if path == ":memory:" {
		// Shared in-memory database so multiple pooled connections see the
		// same data. WAL does not apply to in-memory databases.
		connStr = "file:memdb?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		connStr = "file:" + path + "?_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	isInMemory := path == ":memory:"
	if isInMemory {
		// In-memory databases are per-connection by default; a single
		// connection keeps every query on the same data.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// WAL supports one writer plus concurrent readers; cap the pool so
		// writers queue instead of piling up goroutines on the write lock.
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
		db.SetMaxIdleConns(2)
	}

	if !isInMemory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	absPath := path
	if path != ":memory:" {
		absPath, err = filepath.Abs(path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
	}

	s := &Store{
		db:       db,
		dbPath:   absPath,
		registry: registry,
	}
	s.initMetrics()
	return s, nil
}

func (s *Store) initMetrics() {
	meter := telemetry.Meter()
	s.mutations, _ = meter.Int64Counter("skein.mutations",
		metric.WithDescription("Mutating operations applied to the store"))
	s.claimsWon, _ = meter.Int64Counter("skein.claims.won",
		metric.WithDescription("Issues handed out by claim operations"))
	s.claimsEmpty, _ = meter.Int64Counter("skein.claims.empty",
		metric.WithDescription("claim_next calls that found an exhausted pool"))
	s.undos, _ = meter.Int64Counter("skein.undo",
		metric.WithDescription("Undo attempts, successful or not"))
}

// Close closes the database connection, checkpointing the WAL so no
// writes are stranded between process invocations.
func (s *Store) Close() error {
	s.closed.Store(true)
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Path returns the absolute path to the database file.
func (s *Store) Path() string {
	return s.dbPath
}

// IsClosed returns true if Close() has been called on this store.
func (s *Store) IsClosed() bool {
	return s.closed.Load()
}

// Registry returns the workflow template registry this store validates
// against.
func (s *Store) Registry() *workflow.Registry {
	return s.registry
}

// Prefix returns the configured issue prefix, or ErrNotInitialized.
func (s *Store) Prefix(ctx context.Context) (string, error) {
	return s.prefixConn(ctx, s.db)
}

func (s *Store) prefixConn(ctx context.Context, q querier) (string, error) {
	var prefix string
	err := q.QueryRowContext(ctx, `SELECT value FROM config WHERE key = 'issue_prefix'`).Scan(&prefix)
	if err == sql.ErrNoRows || (err == nil && strings.TrimSpace(prefix) == "") {
		return "", fmt.Errorf("issue_prefix config is missing: %w", errNotInitialized)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read issue prefix: %w", err)
	}
	return prefix, nil
}
