package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/dberrors"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/model"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/registry"
)

// Backends is the pool-registry surface the facade composes. Implemented
// by *registry.Registry; mocked in tests.
type Backends interface {
	ExecuteOnPrimary(ctx context.Context, sql string, args ...any) ([]registry.Row, error)
	ExecuteOnReplica(ctx context.Context, sql string, args ...any) ([]registry.Row, error)
	ExecuteOnShard(ctx context.Context, id string, sql string, args ...any) ([]registry.Row, error)
	ExecuteOnAllShards(ctx context.Context, sql string, args ...any) ([]registry.Row, error)
	ExecuteAnalyticsQuery(ctx context.Context, sql string, args ...any) ([]registry.Row, error)
	ExecOnPrimary(ctx context.Context, sql string, args ...any) (int64, error)
	ExecOnShard(ctx context.Context, id string, sql string, args ...any) (int64, error)
	ShardFor(id string) (int, error)
	CacheGet(ctx context.Context, key string) (string, error)
	CacheSet(ctx context.Context, key string, value string, ttl time.Duration) error
	CacheDel(ctx context.Context, key string) error
}

const (
	insertEntitySQL = `
		INSERT INTO entities (id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	insertProjectionSQL = `
		INSERT INTO entity_projections (id, email, created_at)
		VALUES ($1, $2, $3)
	`
	selectEntitySQL = `
		SELECT id, email, name, created_at, updated_at
		FROM entities
		WHERE id = $1
	`
	countProjectionsSQL = `
		SELECT COUNT(*) AS total
		FROM entity_projections
	`
	deleteEntitySQL     = `DELETE FROM entities WHERE id = $1`
	deleteProjectionSQL = `DELETE FROM entity_projections WHERE id = $1`
	analyticsSQL        = `
		SELECT COUNT(*) AS event_count, COALESCE(SUM(value), 0) AS total_value
		FROM entity_events
		WHERE entity_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`
)

// EntityService is the domain-level facade over the pool registry. Every
// operation is a self-contained request/response unit; the service itself
// carries no cross-call state.
type EntityService struct {
	backends Backends
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewEntityService creates a new entity facade
func NewEntityService(backends Backends, cacheTTL time.Duration, logger *zap.Logger) *EntityService {
	return &EntityService{
		backends: backends,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func cacheKey(id string) string {
	return "entity:" + id
}

// CreateEntity dual-writes a new entity: the canonical record goes to the
// primary (the durability source of truth), then a projection goes to the
// shard owning the id. There is no cross-store transaction: a shard
// failure after the primary commit leaves the stores diverged, and is
// surfaced as a typed error with the committed id rather than dropped.
func (s *EntityService) CreateEntity(ctx context.Context, entity *model.Entity) (string, error) {
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	if _, err := s.backends.ExecOnPrimary(ctx, insertEntitySQL,
		entity.ID, entity.Email, entity.Name, entity.CreatedAt, entity.UpdatedAt); err != nil {
		return "", err
	}

	if _, err := s.backends.ExecOnShard(ctx, entity.ID, insertProjectionSQL,
		entity.ID, entity.Email, entity.CreatedAt); err != nil {
		shardID, _ := s.backends.ShardFor(entity.ID)
		s.logger.Error("Shard projection write failed after primary commit",
			zap.String("id", entity.ID),
			zap.Int("shard_id", shardID),
			zap.Error(err))
		return entity.ID, dberrors.ShardWriteFailed(entity.ID, shardID, err)
	}

	s.populateCache(ctx, entity)

	return entity.ID, nil
}

// GetEntityByID is a cache-first read: cache hit returns directly; a miss
// reads from a replica (with the registry's primary fallback) and
// repopulates the cache. A miss everywhere returns (nil, nil), never an
// error.
func (s *EntityService) GetEntityByID(ctx context.Context, id string) (*model.Entity, error) {
	cached, err := s.backends.CacheGet(ctx, cacheKey(id))
	if err == nil {
		var entity model.Entity
		if err := json.Unmarshal([]byte(cached), &entity); err == nil {
			return &entity, nil
		}
		// Undecodable cache entry, fall through to the replica read.
		s.logger.Warn("Dropping undecodable cache entry", zap.String("id", id))
		_ = s.backends.CacheDel(ctx, cacheKey(id))
	} else if !errors.Is(err, dberrors.ErrCacheMiss) {
		// Cache outage degrades to a replica read.
		s.logger.Warn("Cache read failed, reading from replica", zap.String("id", id), zap.Error(err))
	}

	rows, err := s.backends.ExecuteOnReplica(ctx, selectEntitySQL, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	entity := entityFromRow(rows[0])
	s.populateCache(ctx, entity)
	return entity, nil
}

// GetTotalCount is the representative cross-shard aggregate: the same
// count runs on every shard in parallel and the partial counts are summed
// client-side. Any shard failing fails the whole count; an aggregate with
// a shard missing would be silently wrong.
func (s *EntityService) GetTotalCount(ctx context.Context) (int64, error) {
	rows, err := s.backends.ExecuteOnAllShards(ctx, countProjectionsSQL)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, row := range rows {
		total += row.Int64("total")
	}
	return total, nil
}

// GetAnalytics returns a time-bounded aggregate for one entity from the
// analytics engine. No matching rows yields a zero-valued report, never
// nil.
func (s *EntityService) GetAnalytics(ctx context.Context, id string, from, to time.Time) (*model.AnalyticsReport, error) {
	report := &model.AnalyticsReport{
		EntityID: id,
		From:     from,
		To:       to,
	}

	rows, err := s.backends.ExecuteAnalyticsQuery(ctx, analyticsSQL, id, from, to)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return report, nil
	}

	report.EventCount = rows[0].Int64("event_count")
	report.TotalValue = rows[0].Float64("total_value")
	return report, nil
}

// DeleteEntity removes an entity from the cache, the primary, and its
// shard projection, in that order so a partial failure never leaves a
// cached record without a canonical row.
func (s *EntityService) DeleteEntity(ctx context.Context, id string) error {
	if err := s.backends.CacheDel(ctx, cacheKey(id)); err != nil {
		return err
	}
	if _, err := s.backends.ExecOnPrimary(ctx, deleteEntitySQL, id); err != nil {
		return err
	}
	if _, err := s.backends.ExecOnShard(ctx, id, deleteProjectionSQL, id); err != nil {
		shardID, _ := s.backends.ShardFor(id)
		return dberrors.ShardWriteFailed(id, shardID, err)
	}
	return nil
}

// populateCache pushes an entity into the cache with the fixed TTL policy.
// Best-effort: a cache failure is logged, never surfaced.
func (s *EntityService) populateCache(ctx context.Context, entity *model.Entity) {
	data, err := json.Marshal(entity)
	if err != nil {
		s.logger.Warn("Failed to encode entity for cache", zap.String("id", entity.ID), zap.Error(err))
		return
	}
	if err := s.backends.CacheSet(ctx, cacheKey(entity.ID), string(data), s.cacheTTL); err != nil {
		s.logger.Warn("Failed to populate cache", zap.String("id", entity.ID), zap.Error(err))
	}
}

func entityFromRow(row registry.Row) *model.Entity {
	entity := &model.Entity{
		ID:    row.String("id"),
		Email: row.String("email"),
		Name:  row.String("name"),
	}
	if t, ok := row["created_at"].(time.Time); ok {
		entity.CreatedAt = t
	}
	if t, ok := row["updated_at"].(time.Time); ok {
		entity.UpdatedAt = t
	}
	return entity
}
