package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetentionSweeper periodically purges entities past the retention window.
type RetentionSweeper struct {
	entities *EntityService
	maxAge   time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	logger   *zap.Logger
}

// NewRetentionSweeper creates a sweeper that purges every interval
func NewRetentionSweeper(entities *EntityService, maxAge, interval time.Duration, logger *zap.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		entities: entities,
		maxAge:   maxAge,
		ticker:   time.NewTicker(interval),
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Start runs the sweep loop in the background
func (s *RetentionSweeper) Start() {
	go s.run()
	s.logger.Info("Retention sweeper started", zap.Duration("max_age", s.maxAge))
}

func (s *RetentionSweeper) run() {
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.ticker.Stop()
			return
		}
	}
}

func (s *RetentionSweeper) sweep() {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	purged, err := s.entities.PurgeExpired(context.Background(), cutoff)
	if err != nil {
		s.logger.Error("Retention sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return
	}
	if purged > 0 {
		s.logger.Info("Retention sweep purged entities",
			zap.Time("cutoff", cutoff),
			zap.Int64("purged", purged))
	}
}

// Stop stops the sweep loop
func (s *RetentionSweeper) Stop() {
	close(s.stopCh)
	s.logger.Info("Retention sweeper stopped")
}
