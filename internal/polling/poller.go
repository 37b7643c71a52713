package polling

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs a refresh cycle immediately and then on every tick.
// Ticks never wait for the previous cycle: a slow cycle may overlap the
// next one, so the cycle function must serialize its own shared state.
type Scheduler struct {
	config *Config
	cycle  func(ctx context.Context)
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *Config, cycle func(ctx context.Context)) *Scheduler {
	if cfg == nil || cfg.Interval <= 0 {
		cfg = &Config{Interval: DefaultInterval}
	}
	return &Scheduler{config: cfg, cycle: cycle, logger: slog.Default()}
}

// WithLogger sets the scheduler's logger.
func (s *Scheduler) WithLogger(l *slog.Logger) *Scheduler {
	s.logger = l
	return s
}

// Start begins polling and blocks until ctx is cancelled. In-flight cycles
// observe the same cancellation; Start waits for them before returning.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting poller", "interval", s.config.Interval)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping poller")
			s.wg.Wait()
			return
		case <-ticker.C:
			s.launch(ctx)
		}
	}
}

func (s *Scheduler) launch(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("poll cycle panicked", "panic", r)
			}
		}()
		s.cycle(ctx)
	}()
}
