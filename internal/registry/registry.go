package registry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/config"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/dberrors"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/metrics"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/shard"
)

// Backend roles, used as metric labels and error context.
const (
	RolePrimary   = "primary"
	RoleReplica   = "replica"
	RoleShard     = "shard"
	RoleAnalytics = "analytics"
	RoleCache     = "cache"
)

// RelationalPool is the subset of *pgxpool.Pool the registry uses.
// Acquire/release is the pool's job; Query and Exec return the connection
// to the pool on every path.
type RelationalPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// backend pairs one pool with its role and per-query timeout.
type backend struct {
	name         string
	role         string
	pool         RelationalPool
	queryTimeout time.Duration
}

// shardBackend is a backend bound to the key range it owns.
type shardBackend struct {
	desc shard.Descriptor
	backend
}

// Registry owns one connection pool per backend role and is the only
// component permitted to open or close backend connections. Pools are
// never shared across backends.
type Registry struct {
	primary   backend
	replicas  []backend
	shards    []shardBackend
	shardIdx  map[int]int
	analytics backend
	cache     KVClient
	router    *shard.Router

	// rrIndex is the single rotating replica index. Advanced atomically;
	// over N calls with R replicas each replica is selected ⌊N/R⌋ or
	// ⌈N/R⌉ times.
	rrIndex atomic.Uint64

	cacheTimeout time.Duration
	probeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// New builds a registry from configuration: one pgx pool for the primary,
// each replica, each shard, and the analytics engine, plus the Redis cache
// client. Every backend is pinged during construction; any failure closes
// what was already opened and fails startup.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Registry, error) {
	router, err := shard.NewRouter(cfg.Shards)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		shardIdx:     make(map[int]int),
		router:       router,
		cacheTimeout: cfg.Cache.CommandTimeout,
		probeTimeout: cfg.Health.ProbeTimeout,
		metrics:      m,
		logger:       logger,
	}

	pool, err := newPgxPool(ctx, cfg.Primary)
	if err != nil {
		return nil, dberrors.Unavailable(RolePrimary, err)
	}
	r.primary = backend{name: RolePrimary, role: RolePrimary, pool: pool, queryTimeout: cfg.Primary.QueryTimeout}

	for i, rc := range cfg.Replicas {
		pool, err := newPgxPool(ctx, rc)
		if err != nil {
			r.closeOpened()
			return nil, dberrors.Unavailable(fmt.Sprintf("replica[%d]", i), err)
		}
		r.replicas = append(r.replicas, backend{
			name:         fmt.Sprintf("replica[%d]", i),
			role:         RoleReplica,
			pool:         pool,
			queryTimeout: rc.QueryTimeout,
		})
	}

	for i, desc := range router.All() {
		pool, err := newPgxPool(ctx, desc.Backend)
		if err != nil {
			r.closeOpened()
			return nil, dberrors.Unavailable(fmt.Sprintf("shard[%d]", desc.ID), err)
		}
		r.shards = append(r.shards, shardBackend{
			desc: desc,
			backend: backend{
				name:         fmt.Sprintf("shard[%d]", desc.ID),
				role:         RoleShard,
				pool:         pool,
				queryTimeout: desc.Backend.QueryTimeout,
			},
		})
		r.shardIdx[desc.ID] = i
	}

	pool, err = newPgxPool(ctx, cfg.Analytics)
	if err != nil {
		r.closeOpened()
		return nil, dberrors.Unavailable(RoleAnalytics, err)
	}
	r.analytics = backend{name: RoleAnalytics, role: RoleAnalytics, pool: pool, queryTimeout: cfg.Analytics.QueryTimeout}

	cache, err := newRedisKV(ctx, cfg.Cache)
	if err != nil {
		r.closeOpened()
		return nil, dberrors.Unavailable(RoleCache, err)
	}
	r.cache = cache

	logger.Info("Pool registry initialized",
		zap.Int("replicas", len(r.replicas)),
		zap.Int("shards", len(r.shards)))

	return r, nil
}

// newPgxPool creates and pings one pgx pool for a backend
func newPgxPool(ctx context.Context, cfg config.BackendConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d pool_max_conn_idle_time=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password,
		cfg.MaxConnections, cfg.MinConnections, cfg.IdleTimeout, int(cfg.ConnectTimeout.Seconds()),
	)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping backend: %w", err)
	}

	return pool, nil
}

// closeOpened tears down pools opened so far during a failed construction
func (r *Registry) closeOpened() {
	for _, b := range r.allBackends() {
		b.pool.Close()
	}
	if r.cache != nil {
		_ = r.cache.Close()
	}
}

// allBackends returns the flat set of relational backends, primary first.
func (r *Registry) allBackends() []backend {
	all := make([]backend, 0, 2+len(r.replicas)+len(r.shards))
	if r.primary.pool != nil {
		all = append(all, r.primary)
	}
	all = append(all, r.replicas...)
	for _, s := range r.shards {
		all = append(all, s.backend)
	}
	if r.analytics.pool != nil {
		all = append(all, r.analytics)
	}
	return all
}

// ShardFor resolves the shard owning an entity id.
func (r *Registry) ShardFor(id string) (int, error) {
	desc, err := r.router.Resolve(id)
	if err != nil {
		return 0, err
	}
	return desc.ID, nil
}

// ShardIDs returns the ids of all shards in MinKey order.
func (r *Registry) ShardIDs() []int {
	ids := make([]int, len(r.shards))
	for i, s := range r.shards {
		ids[i] = s.desc.ID
	}
	return ids
}

// nextReplica picks a replica pool round-robin. ok is false when no
// replicas are configured.
func (r *Registry) nextReplica() (backend, bool) {
	if len(r.replicas) == 0 {
		return backend{}, false
	}
	i := int((r.rrIndex.Add(1) - 1) % uint64(len(r.replicas)))
	return r.replicas[i], true
}

// ExecuteOnPrimary runs a query against the primary pool.
func (r *Registry) ExecuteOnPrimary(ctx context.Context, sql string, args ...any) ([]Row, error) {
	return r.query(ctx, r.primary, sql, args...)
}

// ExecuteOnReplica runs a query against the next replica in rotation. If
// the replica fails, the query is rerun on the primary: reads never
// hard-fail merely because a replica is down, as long as the primary is
// reachable.
func (r *Registry) ExecuteOnReplica(ctx context.Context, sql string, args ...any) ([]Row, error) {
	if replica, ok := r.nextReplica(); ok {
		rows, err := r.query(ctx, replica, sql, args...)
		if err == nil {
			return rows, nil
		}
		r.metrics.ReplicaFallbacks.Inc()
		r.logger.Warn("Replica query failed, falling back to primary",
			zap.String("replica", replica.name),
			zap.Error(err))
	}
	return r.ExecuteOnPrimary(ctx, sql, args...)
}

// ExecuteOnShard routes an entity id to its shard and runs the query there.
func (r *Registry) ExecuteOnShard(ctx context.Context, id string, sql string, args ...any) ([]Row, error) {
	sb, err := r.shardForID(id)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, sb.backend, sql, args...)
}

// ExecuteAnalyticsQuery runs a single query against the analytics engine.
func (r *Registry) ExecuteAnalyticsQuery(ctx context.Context, sql string, args ...any) ([]Row, error) {
	return r.query(ctx, r.analytics, sql, args...)
}

// ExecOnPrimary runs a write statement against the primary pool and
// returns the number of rows affected.
func (r *Registry) ExecOnPrimary(ctx context.Context, sql string, args ...any) (int64, error) {
	return r.exec(ctx, r.primary, sql, args...)
}

// ExecOnShard routes an entity id to its shard and runs a write statement
// there, returning the number of rows affected.
func (r *Registry) ExecOnShard(ctx context.Context, id string, sql string, args ...any) (int64, error) {
	sb, err := r.shardForID(id)
	if err != nil {
		return 0, err
	}
	return r.exec(ctx, sb.backend, sql, args...)
}

func (r *Registry) shardForID(id string) (shardBackend, error) {
	desc, err := r.router.Resolve(id)
	if err != nil {
		return shardBackend{}, err
	}
	return r.shards[r.shardIdx[desc.ID]], nil
}

// query acquires, runs, and releases on all paths: rows are always closed
// before returning and the per-role query timeout bounds the whole call.
func (r *Registry) query(ctx context.Context, b backend, sql string, args ...any) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		r.metrics.QueryErrors.WithLabelValues(b.role).Inc()
		return nil, dberrors.QueryFailed(b.name, err)
	}
	defer rows.Close()

	out, err := CollectRows(rows)
	if err != nil {
		r.metrics.QueryErrors.WithLabelValues(b.role).Inc()
		return nil, dberrors.QueryFailed(b.name, err)
	}

	r.metrics.QueriesTotal.WithLabelValues(b.role).Inc()
	r.metrics.QueryDuration.WithLabelValues(b.role).Observe(time.Since(start).Seconds())
	return out, nil
}

func (r *Registry) exec(ctx context.Context, b backend, sql string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	start := time.Now()
	tag, err := b.pool.Exec(ctx, sql, args...)
	if err != nil {
		r.metrics.QueryErrors.WithLabelValues(b.role).Inc()
		return 0, dberrors.QueryFailed(b.name, err)
	}

	r.metrics.QueriesTotal.WithLabelValues(b.role).Inc()
	r.metrics.QueryDuration.WithLabelValues(b.role).Observe(time.Since(start).Seconds())
	return tag.RowsAffected(), nil
}
