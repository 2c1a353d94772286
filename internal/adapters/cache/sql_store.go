package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
)

const tableName = "verdict_cache"

var columns = []string{"cache_key", "tier", "rationale", "model", "created_at", "expires_at"}

// sqlStore is the verdict cache over database/sql shared by the SQLite and
// MySQL adapters. Timestamps are stored as unix seconds so both dialects
// compare them the same way.
type sqlStore struct {
	db          *sql.DB
	name        string
	upsert      func(sq.InsertBuilder) sq.InsertBuilder
	logger      *zap.Logger
	cleanupFreq time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func newSQLStore(db *sql.DB, name string, upsert func(sq.InsertBuilder) sq.InsertBuilder, logger *zap.Logger, cleanupFreq time.Duration) *sqlStore {
	s := &sqlStore{
		db:          db,
		name:        name,
		upsert:      upsert,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
	if cleanupFreq > 0 {
		go startCleanupTask(s, cleanupFreq, s.stopCh, logger)
	}
	return s
}

// Get retrieves a live entry
func (s *sqlStore) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	query, args, err := sq.Select(columns...).
		From(tableName).
		Where(sq.Eq{"cache_key": key}).
		Where(sq.Gt{"expires_at": s.now().Unix()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry core.CacheEntry
	var tier string
	var created, expires int64
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&entry.Key, &tier, &entry.Rationale, &entry.Model, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache key %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s cache: %w", s.name, err)
	}
	entry.Tier = core.Tier(tier)
	entry.CreatedAt = time.Unix(created, 0)
	entry.ExpiresAt = time.Unix(expires, 0)
	return &entry, nil
}

// Set stores an entry, replacing any previous one for the key
func (s *sqlStore) Set(ctx context.Context, entry *core.CacheEntry) error {
	insert := sq.Insert(tableName).
		Columns(columns...).
		Values(entry.Key, string(entry.Tier), entry.Rationale, entry.Model, entry.CreatedAt.Unix(), entry.ExpiresAt.Unix())
	query, args, err := s.upsert(insert).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s cache entry: %w", s.name, err)
	}
	return nil
}

// Delete removes an entry
func (s *sqlStore) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete(tableName).Where(sq.Eq{"cache_key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (s *sqlStore) Cleanup(ctx context.Context) error {
	query, args, err := sq.Delete(tableName).Where(sq.LtOrEq{"expires_at": s.now().Unix()}).ToSql()
	if err != nil {
		return fmt.Errorf("build cleanup: %w", err)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *sqlStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.String("driver", s.name), zap.Error(err))
		}
	})
}
