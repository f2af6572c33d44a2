// ABOUTME: Durable mutation queue for pending contact changes
// ABOUTME: Persists ordered mutations with per-contact coalescing and retry accounting
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/cardsync/models"
)

const queueKey = "contact_sync_queue"

// DefaultMaxRetries is how many drain attempts an entry gets before it
// is dropped and surfaced as a permanent failure.
const DefaultMaxRetries = 3

// blobStore is the slice of kv.Store the queue needs. Narrowed to an
// interface so tests can inject persistence failures.
type blobStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// MutationQueue is the ordered, persisted log of pending local mutations.
// At most one entry exists per contact ID; new mutations coalesce into
// the existing entry. Every state change is persisted before it is
// visible, and a failed persist rolls the in-memory state back.
type MutationQueue struct {
	mu         sync.Mutex
	store      blobStore
	entries    []models.QueueEntry
	maxRetries int
}

// NewMutationQueue loads any persisted queue state from the store.
func NewMutationQueue(store blobStore, maxRetries int) (*MutationQueue, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	q := &MutationQueue{store: store, maxRetries: maxRetries}

	raw, err := store.Get(queueKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync queue: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &q.entries); err != nil {
			return nil, fmt.Errorf("corrupt sync queue blob: %w", err)
		}
	}

	return q, nil
}

// Enqueue validates and appends a mutation, coalescing with any pending
// entry for the same contact. The queue is persisted synchronously; a
// persist failure aborts the enqueue and leaves the queue unchanged.
func (q *MutationQueue) Enqueue(req MutationRequest) error {
	if err := ValidateMutation(req); err != nil {
		return err
	}

	entry := models.QueueEntry{
		ContactID: req.ContactID,
		Action:    req.Action,
		Contact:   req.Contact.Clone(),
		QueuedAt:  time.Now().UTC(),
	}
	if entry.Action == models.ActionDelete {
		entry.Contact = nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	prev := q.snapshotLocked()

	idx := q.indexOfLocked(entry.ContactID)
	switch {
	case idx < 0:
		q.entries = append(q.entries, entry)

	case entry.Action == models.ActionDelete:
		if q.entries[idx].Action == models.ActionCreate {
			// The remote never saw this contact; the create and the
			// delete cancel out.
			q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
		} else {
			entry.QueuedAt = q.entries[idx].QueuedAt
			entry.Revision = q.entries[idx].Revision + 1
			q.entries[idx] = entry
		}

	default:
		existing := q.entries[idx]
		if existing.Action == models.ActionDelete {
			// Re-created while a delete was pending: the net effect on
			// the remote is a replacement.
			entry.Action = models.ActionUpdate
		} else {
			// update-after-update / update-after-create keeps the
			// original action with the fresh payload.
			entry.Action = existing.Action
		}
		entry.QueuedAt = existing.QueuedAt
		entry.Revision = existing.Revision + 1
		q.entries[idx] = entry
	}

	if err := q.persistLocked(); err != nil {
		q.entries = prev
		return &PersistenceError{Op: "enqueue", Err: err}
	}
	return nil
}

// DrainResult reports the outcome of one drain pass.
type DrainResult struct {
	Processed int
	Failures  []error // *PermanentFailure per dropped entry
	Aborted   bool
}

// Drain processes entries in insertion order, invoking handler for each.
// Successful entries are removed; failed entries have their attempt
// count bumped and stay queued until maxRetries, at which point they
// are dropped and reported in the result. Failures the server marked
// non-retryable skip the retry budget and drop immediately. A handler
// returning ErrOffline (or a cancelled context) aborts the pass, leaving
// remaining entries untouched for the next cycle.
func (q *MutationQueue) Drain(ctx context.Context, handler func(context.Context, models.QueueEntry) error) (DrainResult, error) {
	var result DrainResult

	q.mu.Lock()
	batch := q.snapshotLocked()
	q.mu.Unlock()

	for _, entry := range batch {
		if ctx.Err() != nil {
			result.Aborted = true
			return result, nil
		}

		err := handler(ctx, entry)
		if err == nil {
			if perr := q.remove(entry); perr != nil {
				return result, perr
			}
			result.Processed++
			continue
		}

		if errors.Is(err, ErrOffline) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Aborted = true
			return result, nil
		}

		dropped, perr := q.recordFailure(entry, err, !retryableFailure(err))
		if perr != nil {
			return result, perr
		}
		if dropped != nil {
			result.Failures = append(result.Failures, dropped)
		}
	}

	return result, nil
}

// Size returns the number of pending entries.
func (q *MutationQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Peek returns the oldest pending entry without removing it.
func (q *MutationQueue) Peek() (models.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return models.QueueEntry{}, false
	}
	return q.entries[0], true
}

// Entries returns a copy of all pending entries in order.
func (q *MutationQueue) Entries() []models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// remove deletes the queued entry matching the processed one. The entry
// may have been coalesced into a newer mutation while in flight; the
// newer mutation carries a higher revision and is left alone so its
// payload uploads next cycle.
func (q *MutationQueue) remove(processed models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOfLocked(processed.ContactID)
	if idx < 0 || q.entries[idx].Revision != processed.Revision {
		return nil
	}

	prev := q.snapshotLocked()
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	if err := q.persistLocked(); err != nil {
		q.entries = prev
		return &PersistenceError{Op: "dequeue", Err: err}
	}
	return nil
}

// recordFailure bumps the attempt count for a failed entry. When the
// count reaches maxRetries, or dropNow is set, the entry is dropped and
// a PermanentFailure describing it is returned. A coalesced newer
// revision is left untouched: its payload has not been attempted yet.
func (q *MutationQueue) recordFailure(processed models.QueueEntry, cause error, dropNow bool) (*PermanentFailure, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOfLocked(processed.ContactID)
	if idx < 0 || q.entries[idx].Revision != processed.Revision {
		return nil, nil
	}

	prev := q.snapshotLocked()

	q.entries[idx].AttemptCount++
	q.entries[idx].LastError = cause.Error()

	var dropped *PermanentFailure
	if dropNow || q.entries[idx].AttemptCount >= q.maxRetries {
		dropped = &PermanentFailure{
			ContactID: processed.ContactID,
			Action:    processed.Action,
			Attempts:  q.entries[idx].AttemptCount,
			Err:       cause,
		}
		q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	}

	if err := q.persistLocked(); err != nil {
		q.entries = prev
		return nil, &PersistenceError{Op: "record failure", Err: err}
	}
	return dropped, nil
}

// retryableFailure reports whether a failed attempt is worth keeping
// queued. A 400 or 404 would fail identically next cycle; burning the
// retry budget on it just delays the permanent-failure report.
func retryableFailure(err error) bool {
	var nerr *NetworkError
	if errors.As(err, &nerr) {
		return nerr.Retryable()
	}
	return true
}

func (q *MutationQueue) indexOfLocked(contactID string) int {
	for i := range q.entries {
		if q.entries[i].ContactID == contactID {
			return i
		}
	}
	return -1
}

func (q *MutationQueue) snapshotLocked() []models.QueueEntry {
	out := make([]models.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *MutationQueue) persistLocked() error {
	entries := q.entries
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	return q.store.Set(queueKey, raw)
}
