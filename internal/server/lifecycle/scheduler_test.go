package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hushdrop/hushdrop/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeService struct {
	sweeps int64
	wipes  int64
}

func (f *fakeService) CleanupExpired(ctx context.Context) (int, error) {
	atomic.AddInt64(&f.sweeps, 1)
	return 0, nil
}

func (f *fakeService) WipeAll(ctx context.Context) error {
	atomic.AddInt64(&f.wipes, 1)
	return nil
}

func TestSchedulerSweeps(t *testing.T) {
	svc := &fakeService{}
	s := NewScheduler(svc, discardLogger(), Config{
		SweepInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&svc.sweeps) >= 2
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, int64(0), atomic.LoadInt64(&svc.wipes))
}

func TestSchedulerWipes(t *testing.T) {
	svc := &fakeService{}
	s := NewScheduler(svc, discardLogger(), Config{
		SweepInterval: time.Hour,
		WipePeriod:    5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&svc.wipes) >= 2
	}, time.Second, time.Millisecond)

	next, ok := s.NextWipe()
	assert.True(t, ok)
	assert.False(t, next.IsZero())

	cancel()
	<-done
}

func TestSchedulerSurvivesZeroSweepInterval(t *testing.T) {
	svc := &fakeService{}
	s := NewScheduler(svc, discardLogger(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	// Run must fall back to a sane interval instead of panicking in
	// time.NewTicker.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNextWipeDisabled(t *testing.T) {
	s := NewScheduler(&fakeService{}, discardLogger(), Config{
		SweepInterval: time.Hour,
	})

	_, ok := s.NextWipe()
	assert.False(t, ok)
}

func TestFirstWipeTimeAlignsToMidnight(t *testing.T) {
	s := NewScheduler(&fakeService{}, discardLogger(), Config{
		SweepInterval: time.Hour,
		WipePeriod:    24 * time.Hour,
		AlignMidnight: true,
	})

	now, err := time.Parse(time.RFC3339, "2025-03-10T15:42:11Z")
	require.NoError(t, err)

	first := s.firstWipeTime(now)
	assert.Equal(t, "2025-03-11T00:00:00Z", first.Format(time.RFC3339))
}

func TestWipeDeadlinesStayAnchoredToMidnight(t *testing.T) {
	s := NewScheduler(&fakeService{}, discardLogger(), Config{
		SweepInterval: time.Hour,
		WipePeriod:    24 * time.Hour,
		AlignMidnight: true,
	})

	start := time.Date(2025, 3, 10, 15, 42, 11, 0, time.UTC)

	// Successive deadlines advance from the previous deadline, so each one
	// stays exactly on a UTC midnight however long the wipe itself took.
	deadline := s.firstWipeTime(start)
	for i := 0; i < 3; i++ {
		assert.True(t, deadline.Equal(deadline.Truncate(24*time.Hour)),
			"deadline %d not on midnight: %s", i, deadline)
		deadline = s.nextWipeDeadline(deadline)
	}
}

func TestFirstWipeTimeUnaligned(t *testing.T) {
	s := NewScheduler(&fakeService{}, discardLogger(), Config{
		SweepInterval: time.Hour,
		WipePeriod:    6 * time.Hour,
	})

	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(6*time.Hour), s.firstWipeTime(now))
}
