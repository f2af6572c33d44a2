// ABOUTME: Tests for the background sync scheduler
// ABOUTME: Covers time-boxed execution, quiet no-ops, and schedule lifecycle
package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/cardsync/models"
)

func TestBackgroundSyncCompletesWithinBudget(t *testing.T) {
	f := newOrchFixture(t)
	sched := NewScheduler(f.orch)

	status, err := sched.PerformBackgroundSync(context.Background(), time.Second)
	require.NoError(t, err)
	assert.NotNil(t, status.LastSyncAt)
	assert.Equal(t, StateIdle, status.State)
}

func TestBackgroundSyncOfflineIsQuiet(t *testing.T) {
	f := newOrchFixture(t)
	f.monitor.SetConnected(false)
	sched := NewScheduler(f.orch)

	status, err := sched.PerformBackgroundSync(context.Background(), time.Second)
	assert.NoError(t, err, "background path must not surface offline as an error")
	assert.Nil(t, status.LastSyncAt)
}

func TestBackgroundSyncTimeoutKeepsPartialProgress(t *testing.T) {
	f := newOrchFixture(t)

	now := time.Now()
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, f.queue.Enqueue(MutationRequest{ContactID: id, Action: models.ActionCreate, Contact: testContact(id, "x", now)}))
	}

	// The second upload burns through the remaining budget.
	slow := &slowRemote{fakeRemote: f.remote, slowAfter: 1, delay: 200 * time.Millisecond}
	f.orch.remote = slow

	sched := NewScheduler(f.orch)
	status, err := sched.PerformBackgroundSync(context.Background(), 50*time.Millisecond)
	assert.NoError(t, err, "running out of budget is not an error")

	// First item applied before the deadline; the rest wait for the
	// next invocation.
	assert.Equal(t, []string{"c1"}, f.remote.creates)
	assert.Equal(t, 2, status.PendingUploads)
	for _, entry := range f.queue.Entries() {
		assert.Equal(t, 0, entry.AttemptCount, "timed-out entries are not failures")
	}
}

type slowRemote struct {
	*fakeRemote
	slowAfter int
	delay     time.Duration
	sent      int
}

func (r *slowRemote) CreateContact(ctx context.Context, contact *models.Contact) error {
	if r.sent >= r.slowAfter {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay):
		}
	}
	if err := r.fakeRemote.CreateContact(ctx, contact); err != nil {
		return err
	}
	r.sent++
	return nil
}

func TestScheduleReplacesPreviousAndStops(t *testing.T) {
	f := newOrchFixture(t)
	sched := NewScheduler(f.orch)

	sched.Schedule(time.Hour)
	assert.True(t, sched.Running())

	// Rescheduling replaces the old loop rather than stacking a second one
	sched.Schedule(time.Hour)
	assert.True(t, sched.Running())

	sched.Stop()
	assert.False(t, sched.Running())

	// Stop is idempotent
	sched.Stop()
	assert.False(t, sched.Running())
}

func TestScheduleTriggersPeriodicSync(t *testing.T) {
	f := newOrchFixture(t)
	require.NoError(t, f.queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionCreate, Contact: testContact("c1", "Ada", time.Now())}))

	sched := NewScheduler(f.orch)
	sched.Schedule(20 * time.Millisecond)
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return f.queue.Size() == 0
	}, 2*time.Second, 10*time.Millisecond, "scheduled cycles should drain the queue")
	assert.Equal(t, []string{"c1"}, f.remote.creates)
}
