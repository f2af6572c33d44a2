// ABOUTME: Tests for contact data models
// ABOUTME: Verifies field lookup and deep-copy behavior
package models

import (
	"testing"
	"time"
)

func TestContactFieldLookup(t *testing.T) {
	contact := &Contact{
		ID: "c1",
		Fields: []ContactField{
			{Type: FieldName, Value: "Ada Lovelace"},
			{Type: FieldEmail, Value: "ada@example.com"},
			{Type: FieldEmail, Value: "ada@work.example.com"},
		},
	}

	if got := contact.FieldValue(FieldName); got != "Ada Lovelace" {
		t.Errorf("Expected name field, got %q", got)
	}

	// First occurrence wins for duplicate types
	if got := contact.FieldValue(FieldEmail); got != "ada@example.com" {
		t.Errorf("Expected first email, got %q", got)
	}

	if got := contact.FieldValue(FieldPhone); got != "" {
		t.Errorf("Expected empty value for absent field, got %q", got)
	}

	if _, ok := contact.Field(FieldCompany); ok {
		t.Error("Expected no company field")
	}
}

func TestContactClone(t *testing.T) {
	now := time.Now()
	original := &Contact{
		ID: "c1",
		Fields: []ContactField{
			{Type: FieldName, Value: "Ada", Confidence: 0.9, Provenance: map[string]string{"origin": "scan"}},
		},
		Tags:       []string{"vip"},
		SyncStatus: SyncStatusSynced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	clone := original.Clone()

	// Mutating the clone must not touch the original
	clone.Fields[0].Value = "Grace"
	clone.Fields[0].Provenance["origin"] = "manual"
	clone.Tags[0] = "archived"

	if original.Fields[0].Value != "Ada" {
		t.Errorf("Clone mutation leaked into original field value: %q", original.Fields[0].Value)
	}
	if original.Fields[0].Provenance["origin"] != "scan" {
		t.Errorf("Clone mutation leaked into original provenance: %q", original.Fields[0].Provenance["origin"])
	}
	if original.Tags[0] != "vip" {
		t.Errorf("Clone mutation leaked into original tags: %q", original.Tags[0])
	}
}

func TestCloneNil(t *testing.T) {
	var contact *Contact
	if contact.Clone() != nil {
		t.Error("Expected nil clone of nil contact")
	}
}
