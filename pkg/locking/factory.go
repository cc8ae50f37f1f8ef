package locking

import (
	"fmt"
	"strings"

	"github.com/voltlock/voltlock/pkg/config"
	"github.com/voltlock/voltlock/pkg/observability/logger"
)

// Cosa fa: seleziona e inizializza il lock manager in base alla config.
// Cosa NON fa: non gestisce fallback tra backend diversi.
// Esempio minimo: mgr, err := locking.NewManager(cfg.Locks, cfg.Redis, log)
func NewManager(cfg config.LocksConfig, redisCfg config.RedisConfig, log logger.Logger) (Manager, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case config.LockBackendMemory:
		return NewInProcessManager(InProcessManagerConfig{
			RetryInterval: cfg.RetryInterval,
		}, log)
	case config.LockBackendRedis:
		return NewRedisManager(RedisManagerConfig{
			URL:              redisCfg.URL,
			Prefix:           cfg.Prefix,
			TTL:              cfg.TTL,
			RetryInterval:    cfg.RetryInterval,
			MaxConns:         redisCfg.MaxConns,
			OperationTimeout: redisCfg.OperationTimeout,
		}, log)
	case config.LockBackendPostgres:
		return NewPostgresManager(PostgresManagerConfig{
			URL:              cfg.Postgres.URL,
			Table:            cfg.Postgres.Table,
			TTL:              cfg.TTL,
			RetryInterval:    cfg.RetryInterval,
			OperationTimeout: cfg.Postgres.OperationTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported locks.backend %q (supported: memory, redis, postgres)", cfg.Backend)
	}
}
