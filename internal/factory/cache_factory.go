package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/reply-intel/internal/adapters/cache"
	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
)

// StoppableCache is a verdict cache with a background cleanup task
type StoppableCache interface {
	core.VerdictCache
	Stop()
}

// CacheFactory creates verdict caches based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCache creates a verdict cache based on the configuration. It returns
// nil when caching is disabled.
func (f *CacheFactory) CreateCache() (StoppableCache, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}
	if !cacheCfg.Enabled {
		f.logger.Info("Verdict cache disabled")
		return nil, nil
	}

	switch cacheCfg.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return cache.NewSQLiteCache(cacheCfg.SQLitePath, f.logger, cacheCfg.CleanupFrequency)
	case "mysql":
		return cache.NewMySQLCache(cacheCfg.MySQLDSN, f.logger, cacheCfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}
