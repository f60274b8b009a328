package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// purgeExpiredSQL deletes entities past the retention cutoff unless an
// active legal hold pins them, and returns the deleted ids so the shard
// projections can be purged too.
const purgeExpiredSQL = `
	DELETE FROM entities e
	WHERE e.created_at < $1
	AND NOT EXISTS (
		SELECT 1 FROM legal_holds h
		WHERE h.record_id = e.id
		AND h.status = 'ACTIVE'
		AND (h.expiration_date IS NULL OR h.expiration_date > NOW())
	)
	RETURNING e.id
`

// PurgeExpired removes entities created before the cutoff from the
// primary, then routes each deleted id to its shard and removes the
// projection and the cache entry. Records under an active legal hold are
// skipped. Shard-side failures are logged and counted but do not abort
// the purge: the primary delete already happened, re-running the purge
// cannot resurrect the row, and a later run of the projection cleanup can
// catch strays.
func (s *EntityService) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	rows, err := s.backends.ExecuteOnPrimary(ctx, purgeExpiredSQL, cutoff)
	if err != nil {
		return 0, err
	}

	var purged, shardFailures int64
	for _, row := range rows {
		id := row.String("id")
		if id == "" {
			continue
		}
		purged++

		_ = s.backends.CacheDel(ctx, cacheKey(id))

		if _, err := s.backends.ExecOnShard(ctx, id, deleteProjectionSQL, id); err != nil {
			shardFailures++
			s.logger.Warn("Shard projection purge failed",
				zap.String("id", id),
				zap.Error(err))
		}
	}

	s.logger.Info("Retention purge completed",
		zap.Time("cutoff", cutoff),
		zap.Int64("purged", purged),
		zap.Int64("shard_failures", shardFailures))

	return purged, nil
}
