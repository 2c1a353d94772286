package cache

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteCache is a verdict cache in a local SQLite file
type SQLiteCache struct {
	*sqlStore
}

// NewSQLiteCache opens (or creates) the SQLite cache at dbPath
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdict_cache (
			cache_key TEXT PRIMARY KEY,
			tier TEXT NOT NULL,
			rationale TEXT,
			model TEXT,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_verdict_expires_at ON verdict_cache(expires_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	upsert := func(b sq.InsertBuilder) sq.InsertBuilder { return b.Options("OR REPLACE") }
	return &SQLiteCache{sqlStore: newSQLStore(db, "sqlite", upsert, logger, cleanupFreq)}, nil
}
