package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sl "lockify/internal/lib/logger"
)

type AccountSweeper interface {
	DeleteUnverifiedUntil(ctx context.Context, cutoff time.Time) (int64, error)
}

// Lease decides which replica runs a tick. A nil Lease means every tick runs.
type Lease interface {
	AcquireSweepLease(ctx context.Context, ttl time.Duration) (bool, error)
}

// Sweeper periodically deletes accounts that stayed unverified longer than
// the retention window. It is started and stopped by the process that owns it.
type Sweeper struct {
	log       *slog.Logger
	store     AccountSweeper
	lease     Lease
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(
	log *slog.Logger,
	store AccountSweeper,
	lease Lease,
	interval, retention time.Duration,
) *Sweeper {
	return &Sweeper{
		log:       log,
		store:     store,
		lease:     lease,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)

	s.log.Info("sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("retention", s.retention),
	)
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.log.Info("sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.log.Error("sweep failed", sl.Err(err))
			}
		}
	}
}

// Tick runs one sweep and returns the number of deleted accounts. Verified
// accounts are never touched regardless of age.
func (s *Sweeper) Tick(ctx context.Context) (int64, error) {
	const op = "sweeper.Tick"

	log := s.log.With(slog.String("op", op))

	if s.lease != nil {
		ok, err := s.lease.AcquireSweepLease(ctx, s.leaseTTL())
		if err != nil {
			log.Warn("lease unavailable, sweeping locally", sl.Err(err))
		} else if !ok {
			log.Debug("another replica holds the sweep lease")
			return 0, nil
		}
	}

	// Accounts created exactly retention ago are already expired.
	cutoff := s.now().Add(-s.retention)

	n, err := s.store.DeleteUnverifiedUntil(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if n > 0 {
		log.Info("expired unverified accounts deleted", slog.Int64("count", n))
	}

	return n, nil
}

// leaseTTL holds the lease for just under one interval so that it has
// expired again by the holder's next tick.
func (s *Sweeper) leaseTTL() time.Duration {
	return s.interval - s.interval/10
}
