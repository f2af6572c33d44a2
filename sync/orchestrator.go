// ABOUTME: Sync orchestrator driving the drain/fetch/resolve cycle
// ABOUTME: Owns single-flight guarding, connectivity gating, backoff, and sync status
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/harperreed/cardsync/models"
)

// State is the orchestrator's current phase.
type State string

const (
	StateIdle           State = "idle"
	StateDrainingQueue  State = "draining_queue"
	StateFetchingRemote State = "fetching_remote"
	StateResolving      State = "resolving"
	StateError          State = "error"
)

// ContactStore is the local persistent contact store contract. The
// orchestrator is its only writer of sync_status and conflict_data.
type ContactStore interface {
	Get(id string) (*models.Contact, error)
	Save(contact *models.Contact) error
	Delete(id string) error
	ListAll() ([]models.Contact, error)
}

// statusCounter is an optional fast path for conflict counts; the
// SQLite store implements it.
type statusCounter interface {
	CountByStatus(status string) (int, error)
}

// Status is the caller-visible sync state snapshot.
type Status struct {
	State          State      `json:"state"`
	Syncing        bool       `json:"syncing"`
	PendingUploads int        `json:"pending_uploads"`
	ConflictCount  int        `json:"conflict_count"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
}

// Orchestrator drives the end-to-end sync cycle: drain the mutation
// queue, pull remote deltas, resolve conflicts, update local state.
// A single cycle runs at a time; concurrent triggers are no-ops.
type Orchestrator struct {
	queue   *MutationQueue
	store   ContactStore
	remote  RemoteClient
	monitor ConnectivityMonitor
	config  *ConfigManager

	mu         sync.Mutex
	state      State
	syncing    bool
	lastErrors []string

	backoffBase time.Duration
	backoffMax  time.Duration
	sleep       func(context.Context, time.Duration) error

	unsubscribe func()
}

// NewOrchestrator wires the sync cycle's collaborators together.
func NewOrchestrator(queue *MutationQueue, store ContactStore, remote RemoteClient, monitor ConnectivityMonitor, config *ConfigManager) *Orchestrator {
	return &Orchestrator{
		queue:       queue,
		store:       store,
		remote:      remote,
		monitor:     monitor,
		config:      config,
		state:       StateIdle,
		backoffBase: time.Second,
		backoffMax:  30 * time.Second,
		sleep:       sleepContext,
	}
}

// Start subscribes to connectivity changes so that regained
// connectivity triggers a sync when auto-sync is on.
func (o *Orchestrator) Start() {
	o.unsubscribe = o.monitor.Subscribe(func(connected bool) {
		if !connected {
			return
		}
		cfg := o.config.Get()
		if !cfg.Enabled || !cfg.AutoSync {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := o.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				log.Printf("sync: connectivity-triggered cycle failed: %v", err)
			}
		}()
	})
}

// Stop removes the connectivity subscription.
func (o *Orchestrator) Stop() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

// QueueMutation validates and enqueues a local mutation for eventual
// upload. With auto-sync on and connectivity available, a sync cycle is
// kicked off in the background.
func (o *Orchestrator) QueueMutation(req MutationRequest) error {
	if err := o.queue.Enqueue(req); err != nil {
		return err
	}

	cfg := o.config.Get()
	if cfg.Enabled && cfg.AutoSync && o.monitor.IsConnected() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = o.SyncNow(ctx)
		}()
	}
	return nil
}

// SyncNow runs one full sync cycle. Returns ErrSyncInProgress when a
// cycle is already running, ErrOffline without connectivity, and
// ErrSyncDisabled when sync is turned off. A cycle that hits its
// context deadline returns nil with partial progress applied.
func (o *Orchestrator) SyncNow(ctx context.Context) error {
	cfg := o.config.Get()
	if !cfg.Enabled {
		return ErrSyncDisabled
	}

	o.mu.Lock()
	if o.syncing {
		o.mu.Unlock()
		return ErrSyncInProgress
	}
	o.syncing = true
	o.lastErrors = nil
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.syncing = false
		o.state = StateIdle
		o.mu.Unlock()
	}()

	if !o.monitor.IsConnected() {
		return ErrOffline
	}

	o.setState(StateDrainingQueue)
	result, err := o.queue.Drain(ctx, o.uploadEntry)
	if err != nil {
		return o.fail(fmt.Errorf("queue drain failed: %w", err))
	}
	for _, failure := range result.Failures {
		o.recordError(failure.Error())
		log.Printf("sync: %v", failure)
	}
	if result.Aborted {
		if ctx.Err() != nil {
			// Timed out: items already uploaded stay applied, the rest
			// wait for the next cycle.
			return nil
		}
		return ErrOffline
	}

	o.setState(StateFetchingRemote)
	remotes, err := o.remote.ChangedSince(ctx, cfg.LastSyncAt)
	if err != nil {
		return o.fail(fmt.Errorf("remote delta fetch failed: %w", err))
	}

	o.setState(StateResolving)
	for i := range remotes {
		if ctx.Err() != nil {
			return nil
		}
		if err := o.reconcile(ctx, &remotes[i], cfg); err != nil {
			// Per-item isolation: one bad record never blocks the rest.
			o.recordError(err.Error())
			log.Printf("sync: reconcile of contact %s failed: %v", remotes[i].ID, err)
		}
	}

	if err := o.config.SetLastSyncAt(time.Now()); err != nil {
		return o.fail(err)
	}
	return nil
}

// Status returns the current sync status snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	status := Status{
		State:   o.state,
		Syncing: o.syncing,
		Errors:  append([]string(nil), o.lastErrors...),
	}
	o.mu.Unlock()

	status.PendingUploads = o.queue.Size()

	cfg := o.config.Get()
	status.LastSyncAt = cfg.LastSyncAt

	if counter, ok := o.store.(statusCounter); ok {
		if n, err := counter.CountByStatus(models.SyncStatusConflict); err == nil {
			status.ConflictCount = n
		}
	} else if contacts, err := o.store.ListAll(); err == nil {
		for _, c := range contacts {
			if c.SyncStatus == models.SyncStatusConflict {
				status.ConflictCount++
			}
		}
	}

	return status
}

// uploadEntry pushes one queue entry to the remote service. Entries
// that failed before wait out an exponential backoff delay first.
func (o *Orchestrator) uploadEntry(ctx context.Context, entry models.QueueEntry) error {
	if !o.monitor.IsConnected() {
		return ErrOffline
	}

	if entry.AttemptCount > 0 {
		if err := o.sleep(ctx, o.backoffDelay(entry.AttemptCount)); err != nil {
			return err
		}
		if !o.monitor.IsConnected() {
			return ErrOffline
		}
	}

	var err error
	switch entry.Action {
	case models.ActionCreate:
		err = o.remote.CreateContact(ctx, entry.Contact)
	case models.ActionUpdate:
		err = o.remote.UpdateContact(ctx, entry.Contact)
	case models.ActionDelete:
		err = o.remote.DeleteContact(ctx, entry.ContactID)
	default:
		return fmt.Errorf("unknown queue action %q", entry.Action)
	}
	if err != nil {
		return err
	}

	if entry.Action != models.ActionDelete {
		if markErr := o.markSynced(entry.ContactID); markErr != nil {
			log.Printf("sync: failed to mark contact %s synced: %v", entry.ContactID, markErr)
		}
	}
	return nil
}

// markSynced flips a local contact from pending to synced after a
// successful upload.
func (o *Orchestrator) markSynced(contactID string) error {
	local, err := o.store.Get(contactID)
	if err != nil || local == nil {
		return err
	}
	if local.SyncStatus == models.SyncStatusSynced {
		return nil
	}
	local.SyncStatus = models.SyncStatusSynced
	return o.store.Save(local)
}

// reconcile applies one remote delta against the local store.
func (o *Orchestrator) reconcile(ctx context.Context, remote *models.Contact, cfg models.SyncConfig) error {
	local, err := o.store.Get(remote.ID)
	if err != nil {
		return err
	}

	if local == nil {
		incoming := remote.Clone()
		incoming.SyncStatus = models.SyncStatusSynced
		return o.store.Save(incoming)
	}

	// A contact already awaiting manual review keeps its flagged state
	// until the user resolves it.
	if local.SyncStatus == models.SyncStatusConflict {
		return nil
	}

	res := Resolve(local, remote, cfg)
	if err := o.store.Save(res.Contact); err != nil {
		return err
	}

	if res.Unresolved {
		log.Printf("sync: contact %s flagged for manual review", remote.ID)
		return nil
	}

	if res.PushUpstream {
		if err := o.remote.UpdateContact(ctx, res.Contact); err != nil {
			// Queue the winning record so delivery is still eventual.
			return o.queue.Enqueue(MutationRequest{
				ContactID: res.Contact.ID,
				Action:    models.ActionUpdate,
				Contact:   res.Contact,
			})
		}
	}
	return nil
}

func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	delay := o.backoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= o.backoffMax {
			return o.backoffMax
		}
	}
	return delay
}

// fail records a cycle-level error and passes through the error state.
// The deferred cleanup in SyncNow returns the orchestrator to idle, so
// it never sticks in error.
func (o *Orchestrator) fail(err error) error {
	o.setState(StateError)
	o.recordError(err.Error())
	return err
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) recordError(msg string) {
	o.mu.Lock()
	o.lastErrors = append(o.lastErrors, msg)
	o.mu.Unlock()
}

// sleepContext waits for the duration or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
