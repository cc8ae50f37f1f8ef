package cache

import (
	"fmt"
	"strings"

	"github.com/voltlock/voltlock/pkg/config"
	"github.com/voltlock/voltlock/pkg/locking"
	"github.com/voltlock/voltlock/pkg/observability/logger"
)

// Cosa fa: seleziona e inizializza il cache repository in base alla config.
// Cosa NON fa: non migra dati tra backend diversi.
// Esempio minimo: repo, err := cache.NewRepository(cfg.Cache, cfg.Redis, locks, log)
func NewRepository(cfg config.CacheConfig, redisCfg config.RedisConfig, locks locking.Manager, log logger.Logger) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case config.CacheBackendMemory:
		return NewMemoryRepository(MemoryRepositoryConfig{}, locks, log)
	case config.CacheBackendRedis:
		return NewRedisRepository(RedisRepositoryConfig{
			URL:              redisCfg.URL,
			Prefix:           cfg.Prefix,
			MaxConns:         redisCfg.MaxConns,
			OperationTimeout: redisCfg.OperationTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported cache.backend %q (supported: memory, redis)", cfg.Backend)
	}
}
