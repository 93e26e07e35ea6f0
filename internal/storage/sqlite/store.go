package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/LuminLynx/misty/pkg/logger"
)

// Store owns the SQLite database shared by the cache, preferences, and
// locations stores.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string, log *logger.Logger) (*Store, error) {
	storeLogger := log.Named("sqlite")
	storeLogger.Info("Initializing SQLite storage", logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: storeLogger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS weather_cache (
			key TEXT NOT NULL,
			namespace TEXT NOT NULL DEFAULT 'weather',
			payload TEXT NOT NULL,
			captured_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE TABLE IF NOT EXISTS gateway_cache (
			cache_name TEXT NOT NULL,
			url TEXT NOT NULL,
			status INTEGER NOT NULL,
			content_type TEXT,
			body BLOB,
			stored_at INTEGER NOT NULL,
			PRIMARY KEY (cache_name, url)
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			country TEXT,
			state TEXT,
			is_favorite INTEGER DEFAULT 0,
			last_accessed INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
