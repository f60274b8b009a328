package registry

import (
	"context"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/model"
)

// CheckHealth probes every known backend independently and concurrently.
// A probe failure is recorded as false for that backend and never aborts
// the remaining probes; the report is always fully populated.
func (r *Registry) CheckHealth(ctx context.Context) model.HealthReport {
	report := model.HealthReport{
		Replicas: make([]bool, len(r.replicas)),
		Shards:   make([]bool, len(r.shards)),
	}

	var g errgroup.Group

	g.Go(r.probe(ctx, r.primary.name, r.primary.pool.Ping, &report.Primary))
	for i, rep := range r.replicas {
		g.Go(r.probe(ctx, rep.name, rep.pool.Ping, &report.Replicas[i]))
	}
	for i, sb := range r.shards {
		g.Go(r.probe(ctx, sb.name, sb.pool.Ping, &report.Shards[i]))
	}
	g.Go(r.probe(ctx, r.analytics.name, r.analytics.pool.Ping, &report.Analytics))
	g.Go(r.probe(ctx, RoleCache, r.cache.Ping, &report.Cache))

	_ = g.Wait()

	return report
}

// probe runs one liveness check and records the outcome. Each goroutine
// writes a distinct report slot, so no synchronization is needed beyond
// the group wait.
func (r *Registry) probe(ctx context.Context, name string, ping func(context.Context) error, dst *bool) func() error {
	return func() error {
		probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
		defer cancel()

		err := ping(probeCtx)
		*dst = err == nil

		up := 0.0
		if err == nil {
			up = 1.0
		} else {
			r.logger.Warn("Backend liveness probe failed",
				zap.String("backend", name),
				zap.Error(err))
		}
		r.metrics.BackendUp.WithLabelValues(name).Set(up)
		return nil
	}
}

// Close drains and closes every pool and the cache client concurrently,
// waiting for all to finish. A failure closing one backend never blocks
// closing the others; the first error is surfaced after every close has
// been attempted.
func (r *Registry) Close() error {
	var g errgroup.Group

	for _, b := range r.allBackends() {
		b := b
		g.Go(func() error {
			b.pool.Close()
			return nil
		})
	}
	g.Go(func() error {
		return r.cache.Close()
	})

	err := g.Wait()
	if err != nil {
		r.logger.Error("Registry close finished with error", zap.Error(err))
	} else {
		r.logger.Info("Registry closed")
	}
	return err
}
