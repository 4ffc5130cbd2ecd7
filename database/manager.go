package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Storage drivers.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// Config holds the configuration for the database manager.
type Config struct {
	// StorageDriver selects the engine for studio storage: duckdb or sqlite.
	StorageDriver string
	// StoragePath is the studio storage file. Empty means in-memory.
	StoragePath string
	// SandboxPath is the DuckDB file queries run against. Empty means
	// in-memory.
	SandboxPath  string
	Threads      int
	AccessMode   string
	MemoryLimit  string
	QueryTimeout time.Duration
	Logger       *zap.Logger
}

// Manager owns two connections: the DuckDB sandbox that SOQL text is
// executed against, and the studio storage holding saved queries.
type Manager struct {
	sandboxDB     *sql.DB
	storeDB       *sql.DB
	storageDriver string
	queryTimeout  time.Duration
	logger        *zap.Logger
}

// NewManager opens both databases and creates the storage schema.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = DriverDuckDB
	}

	mgr := &Manager{
		storageDriver: cfg.StorageDriver,
		queryTimeout:  cfg.QueryTimeout,
		logger:        cfg.Logger,
	}

	var err error
	mgr.sandboxDB, err = openSandbox(cfg)
	if err != nil {
		return nil, err
	}

	mgr.storeDB, err = openStore(cfg)
	if err != nil {
		mgr.sandboxDB.Close()
		return nil, err
	}

	if err := mgr.initStoreSchema(); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("failed to initialize storage schema: %w", err)
	}

	mgr.logger.Info("Databases connected",
		zap.String("sandbox", displayPath(cfg.SandboxPath)),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("storage", displayPath(cfg.StoragePath)),
		zap.Int("max_open_conns", cfg.Threads*2),
	)

	return mgr, nil
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

func openSandbox(cfg Config) (*sql.DB, error) {
	dsn := cfg.SandboxPath
	if dsn == "" {
		dsn = ":memory:"
	}
	// Query text comes from clients: no file, network or extension access.
	dsn = fmt.Sprintf("%s?threads=%d&enable_external_access=false", dsn, cfg.Threads)

	// read_only is rejected for in-memory databases.
	if cfg.AccessMode != "" && cfg.SandboxPath != "" {
		dsn = fmt.Sprintf("%s&access_mode=%s", dsn, cfg.AccessMode)
	}
	if cfg.MemoryLimit != "" {
		dsn = fmt.Sprintf("%s&memory_limit=%s", dsn, cfg.MemoryLimit)
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Threads * 2)
	db.SetMaxIdleConns(cfg.Threads)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sandbox database: %w", err)
	}
	if _, err := db.Exec("SET lock_configuration = true"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to lock sandbox configuration: %w", err)
	}
	return db, nil
}

func openStore(cfg Config) (*sql.DB, error) {
	switch cfg.StorageDriver {
	case DriverDuckDB:
		dsn := cfg.StoragePath
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := sql.Open("duckdb", fmt.Sprintf("%s?threads=%d", dsn, cfg.Threads))
		if err != nil {
			return nil, fmt.Errorf("failed to open storage database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping storage database: %w", err)
		}
		return db, nil

	case DriverSQLite:
		return openSQLite(cfg.StoragePath)

	default:
		return nil, fmt.Errorf("unsupported storage driver %q: must be %s or %s", cfg.StorageDriver, DriverDuckDB, DriverSQLite)
	}
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to open storage database: %w", err)
		}
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		return db, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage database: %w", err)
	}
	db.SetMaxOpenConns(4)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", pragma, err)
		}
	}
	return db, nil
}

// initStoreSchema creates the key-value table used for studio state.
func (m *Manager) initStoreSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.queryTimeout)
	defer cancel()

	textType := "VARCHAR"
	if m.storageDriver == DriverSQLite {
		textType = "TEXT"
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS studio_kv (
			key %[1]s PRIMARY KEY,
			value %[1]s NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, textType)

	if _, err := m.storeDB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create studio_kv: %w", err)
	}
	return nil
}

// StorageDriver returns the storage engine name.
func (m *Manager) StorageDriver() string {
	return m.storageDriver
}

// Close closes both database connections.
func (m *Manager) Close() error {
	var err1, err2 error
	if m.sandboxDB != nil {
		err1 = m.sandboxDB.Close()
	}
	if m.storeDB != nil {
		err2 = m.storeDB.Close()
	}

	if err1 != nil {
		return err1
	}
	return err2
}

// ExecSandbox executes a statement on the sandbox with timeout.
func (m *Manager) ExecSandbox(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()
	return m.sandboxDB.ExecContext(ctx, query, args...)
}

// QuerySandbox runs query on the sandbox and hands the rows to scan before
// the timeout context is released. Rows are closed afterwards.
func (m *Manager) QuerySandbox(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	rows, err := m.sandboxDB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := scan(rows); err != nil {
		return err
	}
	return rows.Err()
}

// WarmConnections opens and pings every sandbox connection in the background.
func (m *Manager) WarmConnections(ctx context.Context) {
	maxConns := m.sandboxDB.Stats().MaxOpenConnections

	m.logger.Debug("Pre-warming sandbox connections",
		zap.Int("target_connections", maxConns),
	)

	for i := 0; i < maxConns; i++ {
		go func(idx int) {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			conn, err := m.sandboxDB.Conn(ctx)
			if err != nil {
				m.logger.Warn("Failed to create warm connection",
					zap.Int("connection_index", idx),
					zap.Error(err),
				)
				return
			}
			defer conn.Close()

			if err := conn.PingContext(ctx); err != nil {
				m.logger.Warn("Failed to ping warm connection",
					zap.Int("connection_index", idx),
					zap.Error(err),
				)
			}
		}(i)
	}
}
