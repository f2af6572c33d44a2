// ABOUTME: Tests for backup creation, listing, restore, and deletion
// ABOUTME: Runs against the real badger-backed blob store
package sync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/cardsync/models"
)

func TestBackupRoundTrip(t *testing.T) {
	blobs := openTestKV(t)
	store := newMemStore()
	mgr := NewBackupManager(blobs, store)

	now := time.Now()
	require.NoError(t, store.Save(testContact("c1", "Ada", now)))
	require.NoError(t, store.Save(testContact("c2", "Grace", now)))

	info, err := mgr.CreateBackup("before migration", false)
	require.NoError(t, err)
	assert.Equal(t, "before migration", info.Name)
	assert.Equal(t, 2, info.ContactCount)
	assert.Greater(t, info.SizeBytes, int64(0))
	assert.Equal(t, "local", info.Location)
	assert.Len(t, info.ID, 26, "backup IDs are ULIDs")

	backups, err := mgr.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, info.ID, backups[0].ID)

	// Wipe the store and restore
	require.NoError(t, store.Delete("c1"))
	require.NoError(t, store.Delete("c2"))

	restored, err := mgr.RestoreFromBackup(info.ID, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	saved, err := store.Get("c1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Ada", saved.FieldValue(models.FieldName))
}

func TestRestoreSkipsExistingUnlessOverwrite(t *testing.T) {
	blobs := openTestKV(t)
	store := newMemStore()
	mgr := NewBackupManager(blobs, store)

	now := time.Now()
	require.NoError(t, store.Save(testContact("c1", "Ada", now)))
	info, err := mgr.CreateBackup("snapshot", false)
	require.NoError(t, err)

	// Local record diverges after the backup
	require.NoError(t, store.Save(testContact("c1", "Ada Edited", now.Add(time.Hour))))

	restored, err := mgr.RestoreFromBackup(info.ID, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, restored)
	saved, _ := store.Get("c1")
	assert.Equal(t, "Ada Edited", saved.FieldValue(models.FieldName))

	restored, err = mgr.RestoreFromBackup(info.ID, RestoreOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	saved, _ = store.Get("c1")
	assert.Equal(t, "Ada", saved.FieldValue(models.FieldName))
}

func TestRestoreUnknownBackup(t *testing.T) {
	mgr := NewBackupManager(openTestKV(t), newMemStore())

	_, err := mgr.RestoreFromBackup("01ARZ3NDEKTSV4RRFFQ69G5FAV", RestoreOptions{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not found"))
}

func TestDeleteBackupRemovesPayloadAndDescriptor(t *testing.T) {
	blobs := openTestKV(t)
	store := newMemStore()
	mgr := NewBackupManager(blobs, store)

	require.NoError(t, store.Save(testContact("c1", "Ada", time.Now())))
	info, err := mgr.CreateBackup("doomed", false)
	require.NoError(t, err)

	require.NoError(t, mgr.DeleteBackup(info.ID))

	backups, err := mgr.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)

	_, err = mgr.RestoreFromBackup(info.ID, RestoreOptions{})
	require.Error(t, err)
}

func TestCreateBackupCleansUpOnDescriptorFailure(t *testing.T) {
	blobs := newFailingBlobStore()
	store := newMemStore()
	mgr := NewBackupManager(blobs, store)

	require.NoError(t, store.Save(testContact("c1", "Ada", time.Now())))

	// Payload write succeeds, descriptor write fails
	blobs.failAfter = 1
	_, err := mgr.CreateBackup("half-written", false)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)

	blobs.mu.Lock()
	for key := range blobs.blobs {
		assert.False(t, strings.HasPrefix(key, backupPrefix), "orphaned payload %s left behind", key)
	}
	blobs.mu.Unlock()
}

func TestBackupIDsSortByCreationTime(t *testing.T) {
	a := newBackupID()
	time.Sleep(2 * time.Millisecond)
	b := newBackupID()
	assert.Less(t, a, b)
}
