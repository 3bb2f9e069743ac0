package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
)

// Pruner drops action records older than a horizon.
type Pruner interface {
	PruneOlderThan(ctx context.Context, horizon time.Time) (int64, error)
}

// RetentionSweeper periodically prunes the counter store so it only holds
// the last retention period of actions.
type RetentionSweeper struct {
	mu        sync.Mutex
	pruner    Pruner
	clock     clock.Clock
	logger    *slog.Logger
	retention time.Duration
	interval  time.Duration
	timeout   time.Duration
	stopChan  chan struct{}
	done      chan struct{}
	running   bool
}

type RetentionConfig struct {
	Retention time.Duration // default 7 days
	Interval  time.Duration // default 1h
	Timeout   time.Duration // per sweep, default 1m
}

func NewRetentionSweeper(pruner Pruner, cfg RetentionConfig, clk clock.Clock, logger *slog.Logger) *RetentionSweeper {
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetentionSweeper{
		pruner:    pruner,
		clock:     clk,
		logger:    logger.With("component", "retention"),
		retention: cfg.Retention,
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
	}
}

// Begins periodic sweeps, running one immediately
func (s *RetentionSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	s.logger.Info("starting retention sweeper", "retention", s.retention, "interval", s.interval)

	go func() {
		defer close(done)

		s.Sweep(context.Background())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

// Stops the sweeper and waits for an in-flight sweep to finish
func (s *RetentionSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("retention sweeper stopped")
}

// Sweep prunes once and returns the number of records removed.
func (s *RetentionSweeper) Sweep(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	horizon := s.clock.Now().Add(-s.retention)
	pruned, err := s.pruner.PruneOlderThan(ctx, horizon)
	if err != nil {
		s.logger.Error("retention sweep failed", "horizon", horizon, "error", err)
		return pruned
	}

	if pruned > 0 {
		s.logger.Info("pruned action records", "count", pruned, "horizon", horizon)
	}
	return pruned
}
