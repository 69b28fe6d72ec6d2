// Package adapter implements the relational and document database adapters
// (spec.md §4.2, §4.3) and the per-account adapter factory (spec.md §4.4),
// grounded on the teacher's connection-lifecycle conventions
// (client/reconnect.go, server/server.go's sql.Open/pool-config pattern) and
// generalized across two distinct database engines.
package adapter

import (
	"context"
	"time"

	"github.com/dbrevel/queryplane/pkg/model"
)

// Health reports the outcome of a liveness probe.
type Health struct {
	OK      bool
	Latency time.Duration
	Err     error
}

// Adapter is the common surface every database adapter implements.
type Adapter interface {
	// Name returns the fixed adapter key ("postgres" or "mongodb").
	Name() string

	// IntrospectSchema returns the cached schema, introspecting and caching it
	// on first call (spec.md §4.5, invariant 8: idempotent after first call).
	IntrospectSchema(ctx context.Context) (model.DatabaseSchema, error)

	// Execute runs a single query against the adapter's database.
	Execute(ctx context.Context, query model.DatabaseQuery, maxRows int) ([]model.Record, error)

	// HealthCheck performs a lightweight liveness probe.
	HealthCheck(ctx context.Context) Health

	// Close releases the adapter's underlying connection pool.
	Close(ctx context.Context) error
}

// PoolConfig mirrors the teacher's server.PoolConfig shape (MaxIdleConns,
// MaxOpenConns, ConnMaxLifetime), generalized with the timeouts the original
// Python adapters hard-code (command/connect/idle timeouts).
type PoolConfig struct {
	MinConns        int
	MaxConns        int
	ConnMaxLifetime time.Duration
	ConnMaxIdle     time.Duration
	ConnectTimeout  time.Duration
	CommandTimeout  time.Duration
}

// DefaultPostgresPoolConfig matches the documented pool defaults
// (min=1, max=10, command_timeout=60).
func DefaultPostgresPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:        1,
		MaxConns:        10,
		ConnMaxLifetime: 45 * time.Minute,
		ConnMaxIdle:     45 * time.Second,
		ConnectTimeout:  10 * time.Second,
		CommandTimeout:  60 * time.Second,
	}
}

// DefaultMongoPoolConfig mirrors mongodb.py's motor client defaults as
// described in spec.md §4.3 (server_selection_timeout=10s, connect_timeout=10s,
// socket_timeout=30s, idle_close=45s, retryable reads/writes enabled).
func DefaultMongoPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:        1,
		MaxConns:        10,
		ConnMaxIdle:     45 * time.Second,
		ConnectTimeout:  10 * time.Second,
		CommandTimeout:  30 * time.Second,
	}
}

const defaultMaxRows = 10000
