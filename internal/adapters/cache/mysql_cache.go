package cache

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLCache is a verdict cache shared between runs through MySQL
type MySQLCache struct {
	*sqlStore
}

// NewMySQLCache connects to MySQL and ensures the cache table exists
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdict_cache (
			cache_key VARCHAR(255) PRIMARY KEY,
			tier VARCHAR(16) NOT NULL,
			rationale TEXT,
			model VARCHAR(128),
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_verdict_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	upsert := func(b sq.InsertBuilder) sq.InsertBuilder {
		return b.Suffix("ON DUPLICATE KEY UPDATE tier = VALUES(tier), rationale = VALUES(rationale), " +
			"model = VALUES(model), created_at = VALUES(created_at), expires_at = VALUES(expires_at)")
	}
	return &MySQLCache{sqlStore: newSQLStore(db, "mysql", upsert, logger, cleanupFreq)}, nil
}
