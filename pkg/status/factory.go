package status

import (
	"fmt"
	"strings"

	"github.com/voltlock/voltlock/pkg/config"
	"github.com/voltlock/voltlock/pkg/observability/logger"
)

// Cosa fa: seleziona e inizializza lo store dei flag in base alla config.
// Cosa NON fa: non sincronizza flag tra backend diversi.
// Esempio minimo: flags, err := status.NewStore(cfg.Flags, cfg.Redis, log)
func NewStore(cfg config.FlagsConfig, redisCfg config.RedisConfig, log logger.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case config.FlagBackendMemory:
		return NewMemoryStore(log)
	case config.FlagBackendRedis:
		return NewRedisStore(RedisStoreConfig{
			URL:              redisCfg.URL,
			Prefix:           cfg.Prefix,
			MaxConns:         redisCfg.MaxConns,
			OperationTimeout: redisCfg.OperationTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported flags.backend %q (supported: memory, redis)", cfg.Backend)
	}
}
