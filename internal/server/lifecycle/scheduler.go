// Package lifecycle runs the background retention jobs: the periodic sweep
// of expired records and the optional full wipe of all stored data.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/hushdrop/hushdrop/internal/logging"
)

// Service is the subset of the record service the scheduler drives.
type Service interface {
	CleanupExpired(ctx context.Context) (int, error)
	WipeAll(ctx context.Context) error
}

// Config holds scheduler timing. A WipePeriod of 0 disables wiping.
type Config struct {
	SweepInterval time.Duration
	WipePeriod    time.Duration
	// AlignMidnight schedules the first wipe at the next UTC midnight
	// instead of one full period from startup.
	AlignMidnight bool
}

// Scheduler drives sweeps and wipes until its context is cancelled.
type Scheduler struct {
	service Service
	logger  logging.Logger
	cfg     Config

	// clock is replaceable in tests.
	clock func() time.Time

	mu       sync.RWMutex
	nextWipe time.Time
}

func NewScheduler(service Service, logger logging.Logger, cfg Config) *Scheduler {
	return &Scheduler{
		service: service,
		logger:  logger,
		cfg:     cfg,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// NextWipe reports when the next full wipe will run. ok is false when
// wiping is disabled.
func (s *Scheduler) NextWipe() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.WipePeriod <= 0 {
		return time.Time{}, false
	}
	return s.nextWipe, true
}

func (s *Scheduler) setNextWipe(t time.Time) {
	s.mu.Lock()
	s.nextWipe = t
	s.mu.Unlock()
}

// firstWipeTime picks the initial wipe deadline.
func (s *Scheduler) firstWipeTime(now time.Time) time.Time {
	if s.cfg.AlignMidnight {
		midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		return midnight
	}
	return now.Add(s.cfg.WipePeriod)
}

// nextWipeDeadline advances from the previous deadline rather than from the
// current time, so an aligned schedule never drifts by the wipe's own
// duration.
func (s *Scheduler) nextWipeDeadline(prev time.Time) time.Time {
	return prev.Add(s.cfg.WipePeriod)
}

// Run blocks, sweeping on every interval tick and wiping when the wipe
// deadline arrives, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	sweepInterval := s.cfg.SweepInterval
	if sweepInterval <= 0 {
		// time.NewTicker panics on a non-positive interval.
		sweepInterval = time.Hour
		s.logger.Warn(ctx, "invalid sweep interval, falling back to hourly",
			"configured", s.cfg.SweepInterval.String())
	}
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	// A nil channel blocks forever, which turns the wipe arm off.
	var wipeCh <-chan time.Time
	var wipeTimer *time.Timer
	var deadline time.Time
	if s.cfg.WipePeriod > 0 {
		deadline = s.firstWipeTime(s.clock())
		s.setNextWipe(deadline)
		wipeTimer = time.NewTimer(deadline.Sub(s.clock()))
		defer wipeTimer.Stop()
		wipeCh = wipeTimer.C
	}

	s.logger.Info(ctx, "lifecycle scheduler started",
		"sweep_interval", sweepInterval.String(),
		"wipe_enabled", s.cfg.WipePeriod > 0)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "lifecycle scheduler stopped")
			return

		case <-sweep.C:
			if _, err := s.service.CleanupExpired(ctx); err != nil {
				s.logger.Error(ctx, "expired record sweep failed", "error", err)
			}

		case <-wipeCh:
			if err := s.service.WipeAll(ctx); err != nil {
				s.logger.Error(ctx, "scheduled wipe failed", "error", err)
			}
			deadline = s.nextWipeDeadline(deadline)
			s.setNextWipe(deadline)
			wipeTimer.Reset(deadline.Sub(s.clock()))
		}
	}
}
