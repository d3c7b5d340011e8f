package trial

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig contains scheduler configuration.
type SchedulerConfig struct {
	TickInterval time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval: time.Minute,
	}
}

// Scheduler keeps every active trial supplied with a candidate for its
// current schedule slot. One goroutine, one tick at a time.
type Scheduler struct {
	config  SchedulerConfig
	service *Service

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a new trial scheduler.
func NewScheduler(config SchedulerConfig, service *Service) *Scheduler {
	return &Scheduler{
		config:  config,
		service: service,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the scheduler goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("starting trial scheduler", "tick_interval", s.config.TickInterval)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("trial scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.service.EnsureCandidates(ctx); err != nil {
				slog.Error("trial scheduler tick failed", "error", err)
			}
		}
	}
}
