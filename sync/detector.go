// ABOUTME: Conflict detection between local and remote contact versions
// ABOUTME: Classifies divergence as field-level or timestamp-only mismatch
package sync

import (
	"github.com/harperreed/cardsync/models"
)

// Detect compares a local contact against its remote counterpart and
// returns a Conflict describing the divergence, or nil when the two
// agree. Fields are keyed by type rather than field ID, since IDs are
// not stable across local and remote origins. Value comparison is
// case-sensitive and whitespace-exact on purpose: normalization belongs
// to the transformation pipeline, not detection.
func Detect(local, remote *models.Contact) *models.Conflict {
	if local == nil || remote == nil {
		return nil
	}

	remoteValues := firstValueByType(remote)

	// Walk the local fields in declaration order so the reported
	// mismatch list is stable across runs.
	var mismatched []models.FieldType
	seen := make(map[models.FieldType]bool, len(local.Fields))
	for _, f := range local.Fields {
		if seen[f.Type] {
			continue
		}
		seen[f.Type] = true
		rv, ok := remoteValues[f.Type]
		if ok && f.Value != rv {
			mismatched = append(mismatched, f.Type)
		}
	}

	if len(mismatched) > 0 {
		return &models.Conflict{
			ContactID: local.ID,
			Type:      models.ConflictFieldMismatch,
			Fields:    mismatched,
			Local:     local,
			Remote:    remote,
		}
	}

	if !local.UpdatedAt.Equal(remote.UpdatedAt) {
		// The remote progressed without a visible field diff, e.g. a
		// tag or metadata-only change.
		return &models.Conflict{
			ContactID: local.ID,
			Type:      models.ConflictTimestampMismatch,
			Local:     local,
			Remote:    remote,
		}
	}

	return nil
}

// firstValueByType maps each field type to its first occurrence's value.
// Duplicate fields of the same type beyond the first are not part of
// the comparison key.
func firstValueByType(c *models.Contact) map[models.FieldType]string {
	values := make(map[models.FieldType]string, len(c.Fields))
	for _, f := range c.Fields {
		if _, seen := values[f.Type]; !seen {
			values[f.Type] = f.Value
		}
	}
	return values
}
