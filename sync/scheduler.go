// ABOUTME: Background scheduler for periodic sync cycles
// ABOUTME: Runs time-boxed sync invocations outside interactive use
package sync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultBackgroundBudget bounds one background sync invocation when the
// caller doesn't supply a budget.
const DefaultBackgroundBudget = 25 * time.Second

// Scheduler periodically invokes the orchestrator's sync cycle. Each
// invocation is time-boxed: background execution windows are limited by
// the host environment, so a cycle that runs out of budget stops with
// partial progress rather than an error.
type Scheduler struct {
	orch *Orchestrator

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler creates a scheduler for the given orchestrator.
func NewScheduler(orch *Orchestrator) *Scheduler {
	return &Scheduler{orch: orch}
}

// Schedule starts periodic background syncs at the given interval,
// replacing any previous schedule.
func (s *Scheduler) Schedule(interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	s.Stop()

	s.mu.Lock()
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.PerformBackgroundSync(context.Background(), DefaultBackgroundBudget); err != nil {
					log.Printf("sync: scheduled cycle failed: %v", err)
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop cancels the periodic schedule and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Running reports whether a schedule is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PerformBackgroundSync runs one sync cycle under a time budget.
// Exceeding the budget is not an error: items processed before the
// deadline stay applied and the rest remain queued for the next
// invocation. Being offline or already syncing is likewise a quiet
// no-op in the background path.
func (s *Scheduler) PerformBackgroundSync(ctx context.Context, budget time.Duration) (Status, error) {
	if budget <= 0 {
		budget = DefaultBackgroundBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	err := s.orch.SyncNow(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrOffline), errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrSyncDisabled):
		err = nil
	case errors.Is(err, context.DeadlineExceeded):
		err = nil
	}

	return s.orch.Status(), err
}
