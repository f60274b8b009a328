package registry

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/dberrors"
)

// ShardResult is the outcome of one shard's leg of a scatter-gather. A
// scatter always produces one result per shard, success or failure.
type ShardResult struct {
	ShardID int
	Rows    []Row
	Err     error
}

// QueryAllShards issues the same parameterized query to every shard
// concurrently and gathers every outcome. One shard failing does not
// cancel the others; the caller decides whether a partial result is
// acceptable. Ordering of rows across shards is unspecified.
func (r *Registry) QueryAllShards(ctx context.Context, sql string, args ...any) []ShardResult {
	results := make([]ShardResult, len(r.shards))

	var g errgroup.Group
	for i, sb := range r.shards {
		i, sb := i, sb
		g.Go(func() error {
			rows, err := r.query(ctx, sb.backend, sql, args...)
			results[i] = ShardResult{ShardID: sb.desc.ID, Rows: rows, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ExecuteOnAllShards is the strict form of scatter-gather: it flattens the
// per-shard rows into one slice and fails with a scatter error naming the
// failed shards if any leg errored. Aggregates that must be exact (counts,
// sums) use this form.
func (r *Registry) ExecuteOnAllShards(ctx context.Context, sql string, args ...any) ([]Row, error) {
	results := r.QueryAllShards(ctx, sql, args...)

	var (
		out    []Row
		failed []int
		first  error
	)
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.ShardID)
			if first == nil {
				first = res.Err
			}
			continue
		}
		out = append(out, res.Rows...)
	}

	if len(failed) > 0 {
		r.metrics.ScatterShardFails.Add(float64(len(failed)))
		return nil, dberrors.ScatterFailed(failed, first)
	}
	return out, nil
}
