// ABOUTME: Contact database operations
// ABOUTME: Handles CRUD, full listing, and sync-status counts over the contacts table
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/cardsync/models"
)

// Store is the SQLite-backed contact store. It owns the authoritative
// local copy of every contact.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// Get returns the contact with the given ID, or nil if absent.
func (s *Store) Get(id string) (*models.Contact, error) {
	row := s.db.QueryRow(`
		SELECT id, fields, tags, source, is_verified, needs_review, sync_status, conflict_data, created_at, updated_at
		FROM contacts WHERE id = ?
	`, id)

	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", id, err)
	}
	return contact, nil
}

// Save inserts or replaces a contact. Timestamps are the caller's
// responsibility; Save fills CreatedAt/UpdatedAt only when zero.
func (s *Store) Save(contact *models.Contact) error {
	now := time.Now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	if contact.UpdatedAt.IsZero() {
		contact.UpdatedAt = now
	}

	fields, err := json.Marshal(contact.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode contact fields: %w", err)
	}

	tags, err := json.Marshal(contact.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode contact tags: %w", err)
	}

	var conflictData sql.NullString
	if contact.ConflictData != nil {
		raw, err := json.Marshal(contact.ConflictData)
		if err != nil {
			return fmt.Errorf("failed to encode conflict data: %w", err)
		}
		conflictData = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO contacts (id, fields, tags, source, is_verified, needs_review, sync_status, conflict_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fields = excluded.fields,
			tags = excluded.tags,
			source = excluded.source,
			is_verified = excluded.is_verified,
			needs_review = excluded.needs_review,
			sync_status = excluded.sync_status,
			conflict_data = excluded.conflict_data,
			updated_at = excluded.updated_at
	`, contact.ID, string(fields), string(tags), contact.Source,
		contact.IsVerified, contact.NeedsReview, contact.SyncStatus,
		conflictData, contact.CreatedAt, contact.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save contact %s: %w", contact.ID, err)
	}
	return nil
}

// Delete removes a contact. Deleting an absent contact is not an error.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM contacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	return nil
}

// ListAll returns every contact ordered by creation time.
func (s *Store) ListAll() ([]models.Contact, error) {
	rows, err := s.db.Query(`
		SELECT id, fields, tags, source, is_verified, needs_review, sync_status, conflict_data, created_at, updated_at
		FROM contacts
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, *contact)
	}
	return contacts, rows.Err()
}

// CountByStatus returns the number of contacts with the given sync status.
func (s *Store) CountByStatus(status string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM contacts WHERE sync_status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	contact := &models.Contact{}
	var fields string
	var tags, source, conflictData sql.NullString

	err := row.Scan(
		&contact.ID,
		&fields,
		&tags,
		&source,
		&contact.IsVerified,
		&contact.NeedsReview,
		&contact.SyncStatus,
		&conflictData,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fields), &contact.Fields); err != nil {
		return nil, fmt.Errorf("corrupt fields column for contact %s: %w", contact.ID, err)
	}
	if tags.Valid && tags.String != "" && tags.String != "null" {
		if err := json.Unmarshal([]byte(tags.String), &contact.Tags); err != nil {
			return nil, fmt.Errorf("corrupt tags column for contact %s: %w", contact.ID, err)
		}
	}
	if source.Valid {
		contact.Source = source.String
	}
	if conflictData.Valid && conflictData.String != "" {
		var snapshot models.Contact
		if err := json.Unmarshal([]byte(conflictData.String), &snapshot); err != nil {
			return nil, fmt.Errorf("corrupt conflict data for contact %s: %w", contact.ID, err)
		}
		contact.ConflictData = &snapshot
	}

	return contact, nil
}
