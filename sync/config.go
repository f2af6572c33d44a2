// ABOUTME: Process-wide sync configuration management
// ABOUTME: Loads config once from the blob store and persists every change atomically
package sync

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/cardsync/models"
)

const configKey = "contact_sync_config"

// DefaultSyncConfig returns the configuration used before the user has
// changed anything.
func DefaultSyncConfig() models.SyncConfig {
	return models.SyncConfig{
		Enabled:             true,
		AutoSync:            true,
		SyncIntervalMinutes: 15,
		Policy:              models.PolicyNewestWins,
		IncludeNotes:        true,
	}
}

// ConfigManager owns the process-wide SyncConfig. All mutation goes
// through Update/SetLastSyncAt; persistence is atomic with the
// in-memory change, and a failed write rolls back to the prior value.
type ConfigManager struct {
	mu    sync.RWMutex
	store blobStore
	cfg   models.SyncConfig
}

// NewConfigManager loads persisted configuration, falling back to
// defaults when none exists.
func NewConfigManager(store blobStore) (*ConfigManager, error) {
	m := &ConfigManager{store: store, cfg: DefaultSyncConfig()}

	raw, err := store.Get(configKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync config: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m.cfg); err != nil {
			return nil, fmt.Errorf("corrupt sync config blob: %w", err)
		}
	}

	return m, nil
}

// Get returns a snapshot of the current configuration.
func (m *ConfigManager) Get() models.SyncConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := m.cfg
	if cfg.LastSyncAt != nil {
		t := *cfg.LastSyncAt
		cfg.LastSyncAt = &t
	}
	return cfg
}

// SyncConfigPatch carries partial configuration updates. Nil fields are
// left unchanged.
type SyncConfigPatch struct {
	Enabled              *bool   `json:"enabled,omitempty"`
	AutoSync             *bool   `json:"auto_sync,omitempty"`
	SyncIntervalMinutes  *int    `json:"sync_interval_minutes,omitempty"`
	Policy               *string `json:"conflict_policy,omitempty"`
	IncludePhotos        *bool   `json:"include_photos,omitempty"`
	IncludeNotes         *bool   `json:"include_notes,omitempty"`
	IncludeInteractions  *bool   `json:"include_interactions,omitempty"`
	ImportDeviceContacts *bool   `json:"import_device_contacts,omitempty"`
}

// Update applies a partial configuration change and persists it.
func (m *ConfigManager) Update(patch SyncConfigPatch) (models.SyncConfig, error) {
	if patch.Policy != nil {
		switch *patch.Policy {
		case models.PolicyServerWins, models.PolicyLocalWins, models.PolicyNewestWins, models.PolicyManual:
		default:
			return models.SyncConfig{}, &ValidationError{Reason: fmt.Sprintf("unknown conflict policy %q", *patch.Policy)}
		}
	}
	if patch.SyncIntervalMinutes != nil && *patch.SyncIntervalMinutes <= 0 {
		return models.SyncConfig{}, &ValidationError{Reason: "sync interval must be positive"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.cfg

	if patch.Enabled != nil {
		m.cfg.Enabled = *patch.Enabled
	}
	if patch.AutoSync != nil {
		m.cfg.AutoSync = *patch.AutoSync
	}
	if patch.SyncIntervalMinutes != nil {
		m.cfg.SyncIntervalMinutes = *patch.SyncIntervalMinutes
	}
	if patch.Policy != nil {
		m.cfg.Policy = *patch.Policy
	}
	if patch.IncludePhotos != nil {
		m.cfg.IncludePhotos = *patch.IncludePhotos
	}
	if patch.IncludeNotes != nil {
		m.cfg.IncludeNotes = *patch.IncludeNotes
	}
	if patch.IncludeInteractions != nil {
		m.cfg.IncludeInteractions = *patch.IncludeInteractions
	}
	if patch.ImportDeviceContacts != nil {
		m.cfg.ImportDeviceContacts = *patch.ImportDeviceContacts
	}

	if err := m.persistLocked(); err != nil {
		m.cfg = prev
		return models.SyncConfig{}, &PersistenceError{Op: "config update", Err: err}
	}
	return m.cfg, nil
}

// SetLastSyncAt records the completion time of a successful sync cycle.
func (m *ConfigManager) SetLastSyncAt(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.cfg
	ts := t.UTC()
	m.cfg.LastSyncAt = &ts

	if err := m.persistLocked(); err != nil {
		m.cfg = prev
		return &PersistenceError{Op: "last sync update", Err: err}
	}
	return nil
}

func (m *ConfigManager) persistLocked() error {
	raw, err := json.Marshal(m.cfg)
	if err != nil {
		return fmt.Errorf("failed to encode sync config: %w", err)
	}
	return m.store.Set(configKey, raw)
}
