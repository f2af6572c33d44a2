// ABOUTME: Backup creation and restore for the local contact store
// ABOUTME: Snapshots all contacts into the blob store with ULID-identified descriptors
package sync

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harperreed/cardsync/models"
)

const (
	backupsKey   = "contact_backups"
	backupPrefix = "contact_backup:"
)

// backupStore is the slice of kv.Store the backup manager needs.
type backupStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// backupPayload is the stored shape of one backup snapshot.
type backupPayload struct {
	Info          models.BackupInfo `json:"info"`
	IncludePhotos bool              `json:"include_photos"`
	Contacts      []models.Contact  `json:"contacts"`
}

// RestoreOptions controls restore behavior.
type RestoreOptions struct {
	// Overwrite replaces contacts that already exist locally. When
	// false existing contacts are kept and skipped.
	Overwrite bool
}

// BackupManager snapshots the contact store into the blob store and
// restores from earlier snapshots.
type BackupManager struct {
	blobs backupStore
	store ContactStore
}

// NewBackupManager wires the backup manager to its stores.
func NewBackupManager(blobs backupStore, store ContactStore) *BackupManager {
	return &BackupManager{blobs: blobs, store: store}
}

// CreateBackup snapshots every contact under a new ULID. Photo payloads
// live outside the engine; the includePhotos flag is recorded on the
// descriptor for the companion media store.
func (b *BackupManager) CreateBackup(name string, includePhotos bool) (*models.BackupInfo, error) {
	contacts, err := b.store.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts for backup: %w", err)
	}

	info := models.BackupInfo{
		ID:           newBackupID(),
		Name:         name,
		ContactCount: len(contacts),
		CreatedAt:    time.Now().UTC(),
		Location:     "local",
	}

	payload := backupPayload{Info: info, IncludePhotos: includePhotos, Contacts: contacts}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	info.SizeBytes = int64(len(raw))
	payload.Info = info

	// Re-encode with the final size in the descriptor
	raw, err = json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	if err := b.blobs.Set(backupPrefix+info.ID, raw); err != nil {
		return nil, &PersistenceError{Op: "backup write", Err: err}
	}

	descriptors, err := b.ListBackups()
	if err != nil {
		return nil, err
	}
	descriptors = append(descriptors, info)
	if err := b.saveDescriptors(descriptors); err != nil {
		// Don't leave an orphaned payload behind
		_ = b.blobs.Delete(backupPrefix + info.ID)
		return nil, err
	}

	return &info, nil
}

// ListBackups returns all backup descriptors, oldest first.
func (b *BackupManager) ListBackups() ([]models.BackupInfo, error) {
	raw, err := b.blobs.Get(backupsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup list: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var descriptors []models.BackupInfo
	if err := json.Unmarshal(raw, &descriptors); err != nil {
		return nil, fmt.Errorf("corrupt backup list: %w", err)
	}
	return descriptors, nil
}

// RestoreFromBackup writes a snapshot's contacts back into the local
// store and returns how many were restored.
func (b *BackupManager) RestoreFromBackup(backupID string, opts RestoreOptions) (int, error) {
	raw, err := b.blobs.Get(backupPrefix + backupID)
	if err != nil {
		return 0, fmt.Errorf("failed to load backup %s: %w", backupID, err)
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("backup %s not found", backupID)
	}

	var payload backupPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, fmt.Errorf("corrupt backup %s: %w", backupID, err)
	}

	restored := 0
	for i := range payload.Contacts {
		contact := payload.Contacts[i]

		existing, err := b.store.Get(contact.ID)
		if err != nil {
			return restored, fmt.Errorf("failed to check contact %s: %w", contact.ID, err)
		}
		if existing != nil && !opts.Overwrite {
			continue
		}

		if err := b.store.Save(&contact); err != nil {
			return restored, fmt.Errorf("failed to restore contact %s: %w", contact.ID, err)
		}
		restored++
	}

	return restored, nil
}

// DeleteBackup removes a snapshot and its descriptor.
func (b *BackupManager) DeleteBackup(backupID string) error {
	descriptors, err := b.ListBackups()
	if err != nil {
		return err
	}

	kept := descriptors[:0]
	for _, d := range descriptors {
		if d.ID != backupID {
			kept = append(kept, d)
		}
	}
	if err := b.saveDescriptors(kept); err != nil {
		return err
	}

	return b.blobs.Delete(backupPrefix + backupID)
}

func (b *BackupManager) saveDescriptors(descriptors []models.BackupInfo) error {
	if descriptors == nil {
		descriptors = []models.BackupInfo{}
	}
	raw, err := json.Marshal(descriptors)
	if err != nil {
		return fmt.Errorf("failed to encode backup list: %w", err)
	}
	if err := b.blobs.Set(backupsKey, raw); err != nil {
		return &PersistenceError{Op: "backup list write", Err: err}
	}
	return nil
}

// newBackupID generates a ULID, sortable by creation time.
func newBackupID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
