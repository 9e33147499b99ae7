package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultConnectRetries is used when the caller passes zero.
const DefaultConnectRetries = 5

// Connect opens a connection pool for dbURL and pings it, retrying with
// exponential backoff while the database comes up.
func Connect(ctx context.Context, dbURL string, retries uint, logger *zap.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dbURL == "" {
		return nil, fmt.Errorf("database URL not set")
	}
	if retries == 0 {
		retries = DefaultConnectRetries
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	notify := func(err error, d time.Duration) {
		logger.Warn("[STORE] Database not ready, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(retries),
		backoff.WithNotify(notify))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable after %d tries: %w", retries, err)
	}

	logger.Info("[STORE] Connected", zap.String("host", config.ConnConfig.Host))
	return pool, nil
}
