// ABOUTME: Conflict resolution policies for diverged contacts
// ABOUTME: Implements server/local/newest-wins merging, manual flagging, and confidence-based merge
package sync

import (
	"github.com/harperreed/cardsync/models"
)

// Resolution is the outcome of resolving one conflict.
type Resolution struct {
	Contact *models.Contact
	// PushUpstream is set when the local side won and the remote must be
	// updated to converge.
	PushUpstream bool
	// Unresolved is set under the manual policy: the contact is flagged
	// for review instead of being merged.
	Unresolved bool
}

// Resolve applies the configured conflict policy to a local/remote pair
// and produces the single winning record. When the two sides already
// agree the local record is returned untouched.
func Resolve(local, remote *models.Contact, cfg models.SyncConfig) Resolution {
	conflict := Detect(local, remote)
	if conflict == nil {
		return Resolution{Contact: local.Clone()}
	}

	switch cfg.Policy {
	case models.PolicyManual:
		out := local.Clone()
		out.SyncStatus = models.SyncStatusConflict
		out.ConflictData = remote.Clone()
		out.NeedsReview = true
		return Resolution{Contact: out, Unresolved: true}

	case models.PolicyLocalWins:
		return Resolution{Contact: merge(local, remote, remote), PushUpstream: true}

	case models.PolicyNewestWins:
		if local.UpdatedAt.After(remote.UpdatedAt) {
			return Resolution{Contact: merge(local, remote, remote), PushUpstream: true}
		}
		// Remote newer, or exact tie: server wins.
		return Resolution{Contact: merge(remote, local, remote)}

	default:
		// server_wins, and the fallback for unknown policies.
		return Resolution{Contact: merge(remote, local, remote)}
	}
}

// MergeByConfidence resolves directly conflicting fields by picking the
// value with the higher confidence score, regardless of the configured
// policy. Only invoked when the caller explicitly asks for a
// confidence-based merge. Ties go to the remote side.
func MergeByConfidence(local, remote *models.Contact) *models.Contact {
	conflict := Detect(local, remote)
	if conflict == nil {
		return local.Clone()
	}

	contested := make(map[models.FieldType]bool, len(conflict.Fields))
	for _, ft := range conflict.Fields {
		contested[ft] = true
	}

	out := local.Clone()
	out.Fields = nil

	seen := make(map[models.FieldType]bool)
	for _, lf := range local.Fields {
		if seen[lf.Type] {
			out.Fields = append(out.Fields, lf)
			continue
		}
		seen[lf.Type] = true

		if contested[lf.Type] {
			rf, _ := remote.Field(lf.Type)
			if rf.Confidence >= lf.Confidence {
				out.Fields = append(out.Fields, *rf)
			} else {
				out.Fields = append(out.Fields, lf)
			}
			continue
		}
		out.Fields = append(out.Fields, lf)
	}
	for _, rf := range remote.Fields {
		if !seen[rf.Type] {
			seen[rf.Type] = true
			out.Fields = append(out.Fields, rf)
		}
	}

	mergeProvenance(out, local, remote)
	out.Tags = unionTags(local.Tags, remote.Tags)
	if remote.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = remote.UpdatedAt
	}
	out.SyncStatus = models.SyncStatusSynced
	out.NeedsReview = false
	out.ConflictData = nil
	return out.Clone()
}

// merge builds the resolved record from the policy winner. The union of
// field types from both sides is taken: loser-only types are preserved,
// contested types carry the winner's value. Provenance metadata is
// shallow-merged with remote keys winning regardless of policy.
func merge(winner, loser, remote *models.Contact) *models.Contact {
	out := winner.Clone()

	present := make(map[models.FieldType]bool, len(out.Fields))
	for _, f := range out.Fields {
		present[f.Type] = true
	}
	for _, f := range loser.Fields {
		if !present[f.Type] {
			present[f.Type] = true
			out.Fields = append(out.Fields, f)
		}
	}

	var local *models.Contact
	if remote == winner {
		local = loser
	} else {
		local = winner
	}
	mergeProvenance(out, local, remote)

	out.Tags = unionTags(winner.Tags, loser.Tags)
	out.SyncStatus = models.SyncStatusSynced
	out.NeedsReview = false
	out.ConflictData = nil
	return out.Clone()
}

// mergeProvenance shallow-merges field provenance maps for field types
// present on both sides, remote keys winning on collision.
func mergeProvenance(out, local, remote *models.Contact) {
	for i := range out.Fields {
		lf, lok := local.Field(out.Fields[i].Type)
		rf, rok := remote.Field(out.Fields[i].Type)
		if !lok || !rok {
			continue
		}
		if lf.Provenance == nil && rf.Provenance == nil {
			continue
		}
		merged := make(map[string]string, len(lf.Provenance)+len(rf.Provenance))
		for k, v := range lf.Provenance {
			merged[k] = v
		}
		for k, v := range rf.Provenance {
			merged[k] = v
		}
		out.Fields[i].Provenance = merged
	}
}

func unionTags(first, second []string) []string {
	if first == nil && second == nil {
		return nil
	}
	seen := make(map[string]bool, len(first)+len(second))
	var out []string
	for _, t := range first {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range second {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
