// ABOUTME: One-way device address-book import bridge
// ABOUTME: Converts external contact records into local contacts with first-write-wins semantics
package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/harperreed/cardsync/models"
)

// DeviceContact is the flattened shape of one external address-book
// record.
type DeviceContact struct {
	ID      string
	Name    string
	Company string
	Title   string
	Email   string
	Phone   string
}

// DeviceSource reads records from an external address book.
type DeviceSource interface {
	Contacts(ctx context.Context) ([]DeviceContact, error)
}

// DeviceImporter is the one-way bridge from an external address book
// into the local store. Imports go through the normal save path, never
// the mutation queue: this is ingestion, not bidirectional sync.
type DeviceImporter struct {
	source DeviceSource
	store  ContactStore
}

// NewDeviceImporter creates an importer reading from the given source.
func NewDeviceImporter(source DeviceSource, store ContactStore) *DeviceImporter {
	return &DeviceImporter{source: source, store: store}
}

// ImportAll reads every external record and inserts those whose ID is
// not already present locally. No overwrite, no merge: first write
// wins for device import. Returns the number of contacts inserted.
func (di *DeviceImporter) ImportAll(ctx context.Context) (int, error) {
	records, err := di.source.Contacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read device contacts: %w", err)
	}

	imported := 0
	for _, record := range records {
		if record.ID == "" {
			log.Printf("import: skipping device record with no ID (%q)", record.Name)
			continue
		}

		existing, err := di.store.Get(record.ID)
		if err != nil {
			return imported, fmt.Errorf("failed to check contact %s: %w", record.ID, err)
		}
		if existing != nil {
			continue
		}

		if err := di.store.Save(deviceRecordToContact(record)); err != nil {
			return imported, fmt.Errorf("failed to save imported contact %s: %w", record.ID, err)
		}
		imported++
	}

	return imported, nil
}

// deviceRecordToContact builds the internal contact shape for an
// imported record.
func deviceRecordToContact(record DeviceContact) *models.Contact {
	now := time.Now().UTC()
	contact := &models.Contact{
		ID:         record.ID,
		Source:     models.SourceSync,
		IsVerified: false,
		SyncStatus: models.SyncStatusSynced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	add := func(t models.FieldType, value string) {
		if value == "" {
			return
		}
		contact.Fields = append(contact.Fields, models.ContactField{
			Type:       t,
			Value:      value,
			Editable:   true,
			Provenance: map[string]string{"origin": "device_import"},
		})
	}
	add(models.FieldName, record.Name)
	add(models.FieldCompany, record.Company)
	add(models.FieldTitle, record.Title)
	add(models.FieldEmail, record.Email)
	add(models.FieldPhone, record.Phone)

	return contact
}
