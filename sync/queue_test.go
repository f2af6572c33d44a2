// ABOUTME: Tests for the durable mutation queue
// ABOUTME: Verifies coalescing, persistence rollback, drain semantics, and retry accounting
package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/cardsync/models"
)

func TestEnqueueCoalescesUpdateUpdateDelete(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c1", "Ada", now)}))
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c1", "Ada L.", now)}))
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionDelete}))

	// update + update + delete collapse to exactly one delete
	require.Equal(t, 1, queue.Size())
	entry, ok := queue.Peek()
	require.True(t, ok)
	assert.Equal(t, models.ActionDelete, entry.Action)
	assert.Equal(t, "c1", entry.ContactID)
	assert.Nil(t, entry.Contact)
}

func TestEnqueueUpdateAfterCreateKeepsCreate(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionCreate, Contact: testContact("c1", "Ada", now)}))
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c1", "Ada L.", now)}))

	require.Equal(t, 1, queue.Size())
	entry, _ := queue.Peek()
	// The remote hasn't seen the contact yet, so the net mutation is
	// still a create, carrying the freshest payload.
	assert.Equal(t, models.ActionCreate, entry.Action)
	assert.Equal(t, "Ada L.", entry.Contact.FieldValue(models.FieldName))
}

func TestEnqueueDeleteCancelsPendingCreate(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)

	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionCreate, Contact: testContact("c1", "Ada", time.Now())}))
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionDelete}))

	assert.Equal(t, 0, queue.Size())
}

func TestEnqueueCreateAfterDeleteBecomesUpdate(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)

	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionDelete}))
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionCreate, Contact: testContact("c1", "Ada", time.Now())}))

	require.Equal(t, 1, queue.Size())
	entry, _ := queue.Peek()
	// The remote still holds the old record, so the net effect is a
	// replacement.
	assert.Equal(t, models.ActionUpdate, entry.Action)
}

func TestEnqueueRejectsInvalidMutations(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)

	cases := []struct {
		name string
		req  MutationRequest
	}{
		{"missing contact ID", MutationRequest{Action: models.ActionCreate, Contact: testContact("c1", "Ada", time.Now())}},
		{"unknown action", MutationRequest{ContactID: "c1", Action: "upsert", Contact: testContact("c1", "Ada", time.Now())}},
		{"create without payload", MutationRequest{ContactID: "c1", Action: models.ActionCreate}},
		{"mismatched payload ID", MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c2", "Ada", time.Now())}},
		{"payload without fields", MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: &models.Contact{ID: "c1"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := queue.Enqueue(tc.req)
			var verr *ValidationError
			require.Error(t, err)
			assert.True(t, errors.As(err, &verr), "expected ValidationError, got %T", err)
		})
	}

	assert.Equal(t, 0, queue.Size())
}

func TestEnqueuePersistFailureRollsBack(t *testing.T) {
	blobs := newFailingBlobStore()
	queue, err := NewMutationQueue(blobs, DefaultMaxRetries)
	require.NoError(t, err)

	blobs.failSets = true
	err = queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionCreate, Contact: testContact("c1", "Ada", time.Now())})

	var perr *PersistenceError
	require.Error(t, err)
	assert.True(t, errors.As(err, &perr), "expected PersistenceError, got %T", err)

	// In-memory state must match the (unchanged) persisted state
	assert.Equal(t, 0, queue.Size())
}

func TestQueueReloadsPersistedEntries(t *testing.T) {
	blobs := newFailingBlobStore()

	queue, err := NewMutationQueue(blobs, DefaultMaxRetries)
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionCreate, Contact: testContact("c1", "Ada", time.Now())}))
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c2", Action: models.ActionDelete}))

	// Simulate process restart over the same persisted blob
	reloaded, err := NewMutationQueue(blobs, DefaultMaxRetries)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Size())

	entries := reloaded.Entries()
	assert.Equal(t, "c1", entries[0].ContactID)
	assert.Equal(t, "c2", entries[1].ContactID)
}

func TestDrainRemovesSuccessesAndCountsFailures(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)

	now := time.Now()
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, queue.Enqueue(MutationRequest{ContactID: id, Action: models.ActionCreate, Contact: testContact(id, "x", now)}))
	}

	result, err := queue.Drain(context.Background(), func(_ context.Context, entry models.QueueEntry) error {
		if entry.ContactID == "c2" {
			return errors.New("server exploded")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.False(t, result.Aborted)
	assert.Empty(t, result.Failures)

	// Only the failed entry remains, with one attempt recorded
	require.Equal(t, 1, queue.Size())
	entry, _ := queue.Peek()
	assert.Equal(t, "c2", entry.ContactID)
	assert.Equal(t, 1, entry.AttemptCount)
	assert.Contains(t, entry.LastError, "server exploded")
}

func TestDrainDropsEntryAfterMaxRetries(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), 2)
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionCreate, Contact: testContact("c1", "Ada", time.Now())}))

	alwaysFail := func(_ context.Context, _ models.QueueEntry) error {
		return errors.New("nope")
	}

	result, err := queue.Drain(context.Background(), alwaysFail)
	require.NoError(t, err)
	assert.Empty(t, result.Failures)
	assert.Equal(t, 1, queue.Size())

	// Second pass exhausts the retry budget: dropped and surfaced
	result, err = queue.Drain(context.Background(), alwaysFail)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)

	var pfail *PermanentFailure
	require.True(t, errors.As(result.Failures[0], &pfail))
	assert.Equal(t, "c1", pfail.ContactID)
	assert.Equal(t, 2, pfail.Attempts)
	assert.Equal(t, 0, queue.Size())
}

func TestDrainAbortsOnOffline(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)

	now := time.Now()
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, queue.Enqueue(MutationRequest{ContactID: id, Action: models.ActionCreate, Contact: testContact(id, "x", now)}))
	}

	calls := 0
	result, err := queue.Drain(context.Background(), func(_ context.Context, _ models.QueueEntry) error {
		calls++
		if calls == 1 {
			return nil
		}
		return ErrOffline
	})
	require.NoError(t, err)

	assert.True(t, result.Aborted)
	assert.Equal(t, 1, result.Processed)
	// The aborted entry is untouched: no attempt recorded
	require.Equal(t, 2, queue.Size())
	entry, _ := queue.Peek()
	assert.Equal(t, "c2", entry.ContactID)
	assert.Equal(t, 0, entry.AttemptCount)
}

func TestDrainStopsOnCancelledContext(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionDelete}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := queue.Drain(ctx, func(_ context.Context, _ models.QueueEntry) error {
		t.Fatal("handler should not run with cancelled context")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	assert.Equal(t, 1, queue.Size())
}

func TestDrainLeavesCoalescedEntryForNextCycle(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c1", "Ada", time.Now())}))

	_, err = queue.Drain(context.Background(), func(_ context.Context, entry models.QueueEntry) error {
		// A concurrent local edit coalesces a newer payload into the
		// entry while the old one is in flight.
		return queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionDelete})
	})
	require.NoError(t, err)

	// The newer mutation must survive the drain's removal step
	require.Equal(t, 1, queue.Size())
	entry, _ := queue.Peek()
	assert.Equal(t, models.ActionDelete, entry.Action)
}

func TestDrainLeavesSameActionCoalescedPayload(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c1", "Ada v1", time.Now())}))

	result, err := queue.Drain(context.Background(), func(_ context.Context, _ models.QueueEntry) error {
		// An edit lands while the stale payload is in flight. The
		// action stays update, only the payload changes.
		return queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c1", "Ada v2", time.Now())})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	// The success was for v1; v2 must still be queued for the next cycle
	require.Equal(t, 1, queue.Size())
	entry, _ := queue.Peek()
	assert.Equal(t, models.ActionUpdate, entry.Action)
	require.NotNil(t, entry.Contact)
	assert.Equal(t, "Ada v2", entry.Contact.Fields[0].Value)
}

func TestFailedStaleAttemptLeavesCoalescedEntryUntouched(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c1", "Ada v1", time.Now())}))

	_, err = queue.Drain(context.Background(), func(_ context.Context, _ models.QueueEntry) error {
		if err := queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionUpdate, Contact: testContact("c1", "Ada v2", time.Now())}); err != nil {
			return err
		}
		return errors.New("server exploded")
	})
	require.NoError(t, err)

	// The failure was for v1; v2 has not been attempted and carries no
	// retry accounting from the stale copy.
	require.Equal(t, 1, queue.Size())
	entry, _ := queue.Peek()
	assert.Equal(t, 0, entry.AttemptCount)
	assert.Empty(t, entry.LastError)
	assert.Equal(t, "Ada v2", entry.Contact.Fields[0].Value)
}

func TestDrainDropsNonRetryableFailureImmediately(t *testing.T) {
	queue, err := NewMutationQueue(newFailingBlobStore(), DefaultMaxRetries)
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(MutationRequest{ContactID: "c1", Action: models.ActionCreate, Contact: testContact("c1", "Ada", time.Now())}))

	result, err := queue.Drain(context.Background(), func(_ context.Context, _ models.QueueEntry) error {
		return &NetworkError{StatusCode: 400, Message: "malformed payload"}
	})
	require.NoError(t, err)

	// A 400 would fail identically every cycle: no retries, surfaced now
	require.Len(t, result.Failures, 1)
	var pfail *PermanentFailure
	require.True(t, errors.As(result.Failures[0], &pfail))
	assert.Equal(t, "c1", pfail.ContactID)
	assert.Equal(t, 1, pfail.Attempts)
	assert.Equal(t, 0, queue.Size())
}
