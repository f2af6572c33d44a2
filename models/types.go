// ABOUTME: Data models for contacts, sync queue entries, and conflicts
// ABOUTME: Defines Contact, ContactField, QueueEntry, Conflict, SyncConfig, and BackupInfo structs
package models

import (
	"time"
)

// FieldType identifies what kind of value a contact field holds.
type FieldType string

// Contact field type constants.
const (
	FieldName    FieldType = "name"
	FieldEmail   FieldType = "email"
	FieldPhone   FieldType = "phone"
	FieldCompany FieldType = "company"
	FieldTitle   FieldType = "title"
	FieldAddress FieldType = "address"
	FieldWebsite FieldType = "website"
	FieldNotes   FieldType = "notes"
)

// SyncStatus constants for Contact.SyncStatus.
const (
	SyncStatusSynced   = "synced"
	SyncStatusPending  = "pending"
	SyncStatusConflict = "conflict"
)

// Contact source constants.
const (
	SourceScan   = "scan"
	SourceManual = "manual"
	SourceSync   = "sync"
)

// ContactField is one typed value on a contact. Confidence and Provenance
// come from the extraction pipeline and survive sync merges.
type ContactField struct {
	ID         string            `json:"id,omitempty"`
	Type       FieldType         `json:"type"`
	Value      string            `json:"value"`
	Editable   bool              `json:"editable"`
	Confidence float64           `json:"confidence,omitempty"`
	Provenance map[string]string `json:"provenance,omitempty"`
}

type Contact struct {
	ID           string         `json:"id"`
	Fields       []ContactField `json:"fields"`
	Tags         []string       `json:"tags,omitempty"`
	Source       string         `json:"source,omitempty"`
	IsVerified   bool           `json:"is_verified"`
	NeedsReview  bool           `json:"needs_review"`
	SyncStatus   string         `json:"sync_status"`
	ConflictData *Contact       `json:"conflict_data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Field returns the first field with the given type.
func (c *Contact) Field(t FieldType) (*ContactField, bool) {
	for i := range c.Fields {
		if c.Fields[i].Type == t {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// FieldValue returns the first value for a field type, or "" if absent.
func (c *Contact) FieldValue(t FieldType) string {
	if f, ok := c.Field(t); ok {
		return f.Value
	}
	return ""
}

// Clone returns a deep copy of the contact.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	out.Fields = make([]ContactField, len(c.Fields))
	for i, f := range c.Fields {
		out.Fields[i] = f
		if f.Provenance != nil {
			prov := make(map[string]string, len(f.Provenance))
			for k, v := range f.Provenance {
				prov[k] = v
			}
			out.Fields[i].Provenance = prov
		}
	}
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	out.ConflictData = c.ConflictData.Clone()
	return &out
}

// SyncAction constants for queued mutations.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// QueueEntry is one pending local mutation awaiting upload.
// Contact is nil for delete actions.
type QueueEntry struct {
	ContactID string    `json:"contact_id"`
	Action    string    `json:"action"`
	Contact   *Contact  `json:"contact,omitempty"`
	QueuedAt  time.Time `json:"queued_at"`
	// Revision increments each time a newer mutation coalesces into
	// the entry, so a stale in-flight copy cannot dequeue it.
	Revision     int    `json:"revision,omitempty"`
	AttemptCount int    `json:"attempt_count"`
	LastError    string `json:"last_error,omitempty"`
}

// Conflict type constants.
const (
	ConflictFieldMismatch     = "field_mismatch"
	ConflictTimestampMismatch = "timestamp_mismatch"
)

// Conflict describes a detected divergence between local and remote
// versions of one contact. Transient except under the manual policy.
type Conflict struct {
	ContactID string      `json:"contact_id"`
	Type      string      `json:"type"`
	Fields    []FieldType `json:"fields,omitempty"`
	Local     *Contact    `json:"local"`
	Remote    *Contact    `json:"remote"`
}

// Conflict resolution policy constants.
const (
	PolicyServerWins = "server_wins"
	PolicyLocalWins  = "local_wins"
	PolicyNewestWins = "newest_wins"
	PolicyManual     = "manual"
)

// SyncConfig is the process-wide sync configuration. Loaded once at
// startup and persisted after every change.
type SyncConfig struct {
	Enabled              bool       `json:"enabled"`
	AutoSync             bool       `json:"auto_sync"`
	SyncIntervalMinutes  int        `json:"sync_interval_minutes"`
	Policy               string     `json:"conflict_policy"`
	IncludePhotos        bool       `json:"include_photos"`
	IncludeNotes         bool       `json:"include_notes"`
	IncludeInteractions  bool       `json:"include_interactions"`
	ImportDeviceContacts bool       `json:"import_device_contacts"`
	LastSyncAt           *time.Time `json:"last_sync_at,omitempty"`
}

// BackupInfo describes one stored backup snapshot.
type BackupInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactCount int       `json:"contact_count"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	Location     string    `json:"location"`
}
