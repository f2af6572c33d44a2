// ABOUTME: Engine facade wiring the queue, orchestrator, scheduler, config, and backups
// ABOUTME: Exposes the caller surface for sync, status, configuration, and backup operations
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/cardsync/kv"
	"github.com/harperreed/cardsync/models"
)

// Engine is the process-wide sync engine. One instance is constructed
// at startup with its collaborators injected; tests build fresh
// instances with in-memory stores.
type Engine struct {
	queue   *MutationQueue
	config  *ConfigManager
	orch    *Orchestrator
	sched   *Scheduler
	backups *BackupManager
	store   ContactStore
	monitor ConnectivityMonitor
}

// NewEngine assembles the engine from its collaborators.
func NewEngine(store ContactStore, blobs *kv.Store, remote RemoteClient, monitor ConnectivityMonitor) (*Engine, error) {
	queue, err := NewMutationQueue(blobs, DefaultMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to init mutation queue: %w", err)
	}

	config, err := NewConfigManager(blobs)
	if err != nil {
		return nil, fmt.Errorf("failed to init sync config: %w", err)
	}

	orch := NewOrchestrator(queue, store, remote, monitor, config)

	return &Engine{
		queue:   queue,
		config:  config,
		orch:    orch,
		sched:   NewScheduler(orch),
		backups: NewBackupManager(blobs, store),
		store:   store,
		monitor: monitor,
	}, nil
}

// Start begins connectivity-triggered syncing and, when auto-sync is
// on, the periodic background schedule.
func (e *Engine) Start() {
	e.orch.Start()

	cfg := e.config.Get()
	if cfg.Enabled && cfg.AutoSync {
		e.sched.Schedule(time.Duration(cfg.SyncIntervalMinutes) * time.Minute)
	}
}

// Close stops the background schedule and connectivity subscription.
func (e *Engine) Close() {
	e.sched.Stop()
	e.orch.Stop()
}

// SyncNow runs one sync cycle immediately.
func (e *Engine) SyncNow(ctx context.Context) error {
	return e.orch.SyncNow(ctx)
}

// QueueContactSync records a local mutation for eventual upload and
// marks the local contact pending.
func (e *Engine) QueueContactSync(contactID, action string, data *models.Contact) error {
	if err := e.orch.QueueMutation(MutationRequest{ContactID: contactID, Action: action, Contact: data}); err != nil {
		return err
	}

	if action != models.ActionDelete {
		local, err := e.store.Get(contactID)
		if err == nil && local != nil && local.SyncStatus != models.SyncStatusPending {
			local.SyncStatus = models.SyncStatusPending
			if saveErr := e.store.Save(local); saveErr != nil {
				return fmt.Errorf("queued but failed to mark contact pending: %w", saveErr)
			}
		}
	}
	return nil
}

// GetSyncStatus returns the current status snapshot.
func (e *Engine) GetSyncStatus() Status {
	return e.orch.Status()
}

// GetSyncConfig returns the current configuration.
func (e *Engine) GetSyncConfig() models.SyncConfig {
	return e.config.Get()
}

// UpdateSyncConfig applies a partial configuration change. A changed
// interval reschedules the background sync.
func (e *Engine) UpdateSyncConfig(patch SyncConfigPatch) (models.SyncConfig, error) {
	before := e.config.Get()

	cfg, err := e.config.Update(patch)
	if err != nil {
		return models.SyncConfig{}, err
	}

	if e.sched.Running() {
		if !cfg.Enabled || !cfg.AutoSync {
			e.sched.Stop()
		} else if cfg.SyncIntervalMinutes != before.SyncIntervalMinutes {
			e.sched.Schedule(time.Duration(cfg.SyncIntervalMinutes) * time.Minute)
		}
	} else if cfg.Enabled && cfg.AutoSync && (!before.Enabled || !before.AutoSync) {
		e.sched.Schedule(time.Duration(cfg.SyncIntervalMinutes) * time.Minute)
	}

	return cfg, nil
}

// PolicyMergeByConfidence keeps the higher-confidence value for each
// contested field. It is an explicit per-conflict choice, not a
// standing policy in SyncConfig.
const PolicyMergeByConfidence = "merge_by_confidence"

// ResolveConflict applies the configured policy to a local/remote pair,
// persists the outcome, and queues an upstream update when the local
// side won.
func (e *Engine) ResolveConflict(local, remote *models.Contact) (*models.Contact, error) {
	return e.applyResolution(Resolve(local, remote, e.config.Get()))
}

// ResolveConflictWithPolicy is ResolveConflict with the policy chosen
// per call instead of read from configuration. Used when the user
// resolves a flagged conflict interactively.
func (e *Engine) ResolveConflictWithPolicy(local, remote *models.Contact, policy string) (*models.Contact, error) {
	if policy == PolicyMergeByConfidence {
		merged := MergeByConfidence(local, remote)
		return e.applyResolution(Resolution{Contact: merged, PushUpstream: true})
	}

	cfg := e.config.Get()
	cfg.Policy = policy
	return e.applyResolution(Resolve(local, remote, cfg))
}

func (e *Engine) applyResolution(res Resolution) (*models.Contact, error) {
	if err := e.store.Save(res.Contact); err != nil {
		return nil, fmt.Errorf("failed to save resolved contact: %w", err)
	}

	if res.PushUpstream {
		if err := e.queue.Enqueue(MutationRequest{
			ContactID: res.Contact.ID,
			Action:    models.ActionUpdate,
			Contact:   res.Contact,
		}); err != nil {
			return nil, err
		}
	}

	return res.Contact, nil
}

// PerformBackgroundSync runs one time-boxed cycle (the host-scheduled
// background entry point).
func (e *Engine) PerformBackgroundSync(ctx context.Context, budget time.Duration) (Status, error) {
	return e.sched.PerformBackgroundSync(ctx, budget)
}

// Schedule starts (or replaces) the periodic background sync.
func (e *Engine) Schedule(interval time.Duration) {
	e.sched.Schedule(interval)
}

// CreateBackup snapshots all contacts under a new backup ID.
func (e *Engine) CreateBackup(name string, includePhotos bool) (*models.BackupInfo, error) {
	return e.backups.CreateBackup(name, includePhotos)
}

// RestoreFromBackup restores contacts from a stored snapshot.
func (e *Engine) RestoreFromBackup(backupID string, opts RestoreOptions) (int, error) {
	return e.backups.RestoreFromBackup(backupID, opts)
}

// ListBackups returns all backup descriptors.
func (e *Engine) ListBackups() ([]models.BackupInfo, error) {
	return e.backups.ListBackups()
}

// DeleteBackup removes a stored snapshot.
func (e *Engine) DeleteBackup(backupID string) error {
	return e.backups.DeleteBackup(backupID)
}

// QueueEntries returns the pending mutations, oldest first.
func (e *Engine) QueueEntries() []models.QueueEntry {
	return e.queue.Entries()
}

// ImportDeviceContacts runs the one-way device import bridge.
func (e *Engine) ImportDeviceContacts(ctx context.Context, source DeviceSource) (int, error) {
	if !e.config.Get().ImportDeviceContacts {
		return 0, fmt.Errorf("device contact import is disabled in sync configuration")
	}
	importer := NewDeviceImporter(source, e.store)
	return importer.ImportAll(ctx)
}
