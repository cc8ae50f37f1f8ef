package locking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/voltlock/voltlock/pkg/observability/logger"
)

const (
	defaultPostgresLockTable        = "voltlock_locks"
	defaultPostgresOperationTimeout = 3 * time.Second
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresManagerConfig configures the PostgreSQL lock backend.
type PostgresManagerConfig struct {
	URL              string
	Table            string
	TTL              time.Duration
	RetryInterval    time.Duration
	OperationTimeout time.Duration
}

func (c *PostgresManagerConfig) normalize() {
	if strings.TrimSpace(c.Table) == "" {
		c.Table = defaultPostgresLockTable
	}
	if c.TTL <= 0 {
		c.TTL = defaultRedisTTL
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRedisRetryInterval
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultPostgresOperationTimeout
	}
}

// PostgresManager stores distributed lock rows in PostgreSQL. A row is the
// lock: insert-if-absent-or-expired acquires, token-checked delete releases.
// Expiry is evaluated against the database clock so all holders agree on it.
type PostgresManager struct {
	db     *sql.DB
	log    logger.Logger
	config PostgresManagerConfig
}

// NewPostgresManager creates a lock manager backed by PostgreSQL table rows.
func NewPostgresManager(cfg PostgresManagerConfig, log logger.Logger) (*PostgresManager, error) {
	if log == nil {
		return nil, lockError(ErrInvalidArgument, "logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, lockError(ErrInvalidArgument, "postgres url is required")
	}
	cfg.normalize()
	if !validTableName.MatchString(cfg.Table) {
		return nil, lockError(ErrInvalidArgument, fmt.Sprintf("invalid lock table name %q", cfg.Table))
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, errors.Join(lockError(ErrInvalidArgument, "open postgres failed"), err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(lockError(ErrBackendUnavailable, "ping postgres failed"), err)
	}

	manager := &PostgresManager{
		db:     db,
		log:    log,
		config: cfg,
	}
	if err := manager.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(lockError(ErrBackendUnavailable, "create lock table failed"), err)
	}
	return manager, nil
}

// newPostgresManagerWithDB wires an existing handle, for tests.
func newPostgresManagerWithDB(db *sql.DB, cfg PostgresManagerConfig, log logger.Logger) (*PostgresManager, error) {
	if db == nil {
		return nil, lockError(ErrInvalidArgument, "db is required")
	}
	if log == nil {
		return nil, lockError(ErrInvalidArgument, "logger is required")
	}
	cfg.normalize()
	if !validTableName.MatchString(cfg.Table) {
		return nil, lockError(ErrInvalidArgument, fmt.Sprintf("invalid lock table name %q", cfg.Table))
	}
	return &PostgresManager{
		db:     db,
		log:    log,
		config: cfg,
	}, nil
}

// Acquire polls an atomic insert-or-take-over-expired upsert until the row is
// owned or timeout elapses.
func (m *PostgresManager) Acquire(ctx context.Context, resource string, timeout time.Duration) (*Guard, error) {
	if m == nil || m.db == nil {
		return nil, lockError(ErrNotInitialized, "postgres lock manager is not initialized")
	}
	resource, err := validResource(resource)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, lockError(ErrInvalidArgument, "timeout cannot be negative")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token := uuid.NewString()
	start := time.Now()

	var deadline time.Time
	if timeout > 0 {
		deadline = start.Add(timeout)
	}

	for {
		acquired, err := m.tryAcquire(ctx, resource, token)
		if err != nil {
			recordLockAcquire(resource, "error", time.Since(start))
			return nil, errors.Join(lockError(ErrBackendUnavailable, "acquire lock failed for "+resource), err)
		}
		if acquired {
			waited := time.Since(start)
			recordLockAcquire(resource, "acquired", waited)
			m.log.Debug("lock acquired", "resource", resource, "token", token, "waited", waited)
			return newGuard(resource, token, func(releaseCtx context.Context) error {
				return m.release(releaseCtx, resource, token)
			}), nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			waited := time.Since(start)
			recordLockAcquire(resource, "timeout", waited)
			m.log.Warn("lock acquire timed out", "resource", resource, "timeout", timeout, "waited", waited)
			return nil, lockError(ErrAcquireTimeout, "resource "+resource)
		}

		select {
		case <-ctx.Done():
			recordLockAcquire(resource, "canceled", time.Since(start))
			return nil, errors.Join(lockError(ErrAcquireTimeout, "context ended waiting for "+resource), ctx.Err())
		case <-time.After(m.config.RetryInterval):
		}
	}
}

func (m *PostgresManager) tryAcquire(ctx context.Context, resource, token string) (bool, error) {
	opCtx, cancel := m.operationContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
WITH upsert AS (
	INSERT INTO %s(resource, token, expires_at, updated_at)
	VALUES ($1, $2, NOW() + $3::interval, NOW())
	ON CONFLICT(resource) DO UPDATE
	SET token = EXCLUDED.token,
	    expires_at = EXCLUDED.expires_at,
	    updated_at = NOW()
	WHERE %s.expires_at <= NOW()
	RETURNING 1
)
SELECT EXISTS(SELECT 1 FROM upsert)
`, m.config.Table, m.config.Table)

	var acquired bool
	interval := fmt.Sprintf("%d milliseconds", m.config.TTL.Milliseconds())
	if err := m.db.QueryRowContext(opCtx, query, resource, token, interval).Scan(&acquired); err != nil {
		return false, err
	}
	return acquired, nil
}

// release deletes the lock row when the token matches. Zero rows affected
// means the lock expired and was re-acquired by someone else: a no-op.
func (m *PostgresManager) release(ctx context.Context, resource, token string) error {
	opCtx, cancel := m.operationContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE resource=$1 AND token=$2`, m.config.Table)
	result, err := m.db.ExecContext(opCtx, query, resource, token)
	if err != nil {
		recordLockRelease(resource, "error")
		return errors.Join(lockError(ErrBackendUnavailable, "release lock failed for "+resource), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		recordLockRelease(resource, "error")
		return errors.Join(lockError(ErrBackendUnavailable, "release lock failed for "+resource), err)
	}
	if affected == 0 {
		recordLockRelease(resource, "stale")
		m.log.Warn("lock already expired or re-acquired, release skipped", "resource", resource, "token", token)
		return nil
	}

	recordLockRelease(resource, "released")
	m.log.Debug("lock released", "resource", resource, "token", token)
	return nil
}

// IsLocked reports whether a non-expired lock row exists for resource.
func (m *PostgresManager) IsLocked(ctx context.Context, resource string) (bool, error) {
	if m == nil || m.db == nil {
		return false, lockError(ErrNotInitialized, "postgres lock manager is not initialized")
	}
	resource, err := validResource(resource)
	if err != nil {
		return false, err
	}

	opCtx, cancel := m.operationContext(ctx)
	defer cancel()
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE resource=$1 AND expires_at > NOW())`, m.config.Table)

	var locked bool
	if err := m.db.QueryRowContext(opCtx, query, resource).Scan(&locked); err != nil {
		return false, errors.Join(lockError(ErrBackendUnavailable, "inspect lock failed for "+resource), err)
	}
	return locked, nil
}

// HealthCheck verifies PostgreSQL connectivity.
func (m *PostgresManager) HealthCheck(ctx context.Context) error {
	if m == nil || m.db == nil {
		return lockError(ErrNotInitialized, "postgres lock manager is not initialized")
	}
	opCtx, cancel := m.operationContext(ctx)
	defer cancel()
	if err := m.db.PingContext(opCtx); err != nil {
		return errors.Join(lockError(ErrBackendUnavailable, "postgres healthcheck failed"), err)
	}
	return nil
}

// Close closes database resources.
func (m *PostgresManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *PostgresManager) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	resource TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, m.config.Table)
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *PostgresManager) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, m.config.OperationTimeout)
}
