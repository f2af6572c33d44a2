// ABOUTME: Tests for the device address-book import bridge
// ABOUTME: Verifies first-write-wins ingestion and record conversion
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

type fakeDeviceSource struct {
	records []DeviceContact
	err     error
}

func (s *fakeDeviceSource) Contacts(ctx context.Context) ([]DeviceContact, error) {
	return s.records, s.err
}

func TestImportAllInsertsNewContacts(t *testing.T) {
	store := newMemStore()
	source := &fakeDeviceSource{records: []DeviceContact{
		{ID: "device_42", Name: "Grace Hopper", Company: "Navy", Email: "grace@example.com", Phone: "+1555"},
	}}

	imported, err := NewDeviceImporter(source, store).ImportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, imported)

	saved, err := store.Get("device_42")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Grace Hopper", saved.FieldValue(models.FieldName))
	assert.Equal(t, "Navy", saved.FieldValue(models.FieldCompany))
	assert.Equal(t, "grace@example.com", saved.FieldValue(models.FieldEmail))
	assert.Equal(t, models.SourceSync, saved.Source)
	assert.False(t, saved.IsVerified)
	assert.Equal(t, models.SyncStatusSynced, saved.SyncStatus)
	require.NotEmpty(t, saved.Fields)
	assert.Equal(t, "device_import", saved.Fields[0].Provenance["origin"])
}

func TestImportAllFirstWriteWins(t *testing.T) {
	store := newMemStore()
	existing := testContact("device_42", "Grace (edited locally)", time.Now())
	require.NoError(t, store.Save(existing))

	source := &fakeDeviceSource{records: []DeviceContact{
		{ID: "device_42", Name: "Grace Hopper"},
		{ID: "device_43", Name: "Ada Lovelace"},
	}}

	imported, err := NewDeviceImporter(source, store).ImportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, imported, "existing contact must be skipped, not merged")

	saved, _ := store.Get("device_42")
	assert.Equal(t, "Grace (edited locally)", saved.FieldValue(models.FieldName))
}

func TestImportAllSkipsRecordsWithoutID(t *testing.T) {
	store := newMemStore()
	source := &fakeDeviceSource{records: []DeviceContact{
		{Name: "No Identifier"},
		{ID: "device_1", Name: "Kept"},
	}}

	imported, err := NewDeviceImporter(source, store).ImportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, imported)

	all, _ := store.ListAll()
	assert.Len(t, all, 1)
}

func TestImportAllSkipsEmptyFields(t *testing.T) {
	store := newMemStore()
	source := &fakeDeviceSource{records: []DeviceContact{
		{ID: "device_1", Name: "Sparse"},
	}}

	_, err := NewDeviceImporter(source, store).ImportAll(context.Background())
	require.NoError(t, err)

	saved, _ := store.Get("device_1")
	require.NotNil(t, saved)
	assert.Len(t, saved.Fields, 1, "empty device fields must not become contact fields")
}

func TestImportAllSourceFailure(t *testing.T) {
	source := &fakeDeviceSource{err: errors.New("address book unavailable")}

	imported, err := NewDeviceImporter(source, newMemStore()).ImportAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, imported)
}

func TestImportAllIsIdempotent(t *testing.T) {
	store := newMemStore()
	source := &fakeDeviceSource{records: []DeviceContact{
		{ID: "device_1", Name: "Ada"},
		{ID: "device_2", Name: "Grace"},
	}}
	importer := NewDeviceImporter(source, store)

	first, err := importer.ImportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	second, err := importer.ImportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second)
}
