// ABOUTME: Conflict review CLI commands
// ABOUTME: Lists contacts flagged for manual review and applies resolutions
package cli

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/sync"
)

// ConflictsListCommand lists contacts awaiting manual review.
func ConflictsListCommand(store *db.Store, args []string) error {
	fs := flag.NewFlagSet("conflicts", flag.ExitOnError)
	_ = fs.Parse(args)

	contacts, err := store.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list contacts: %w", err)
	}

	var flagged []models.Contact
	for _, c := range contacts {
		if c.SyncStatus == models.SyncStatusConflict {
			flagged = append(flagged, c)
		}
	}

	if len(flagged) == 0 {
		fmt.Println("No conflicts - everything is in sync")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLOCAL\tREMOTE")
	for _, c := range flagged {
		remoteName := ""
		if c.ConflictData != nil {
			remoteName = c.ConflictData.FieldValue(models.FieldName)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", shortID(c.ID), c.FieldValue(models.FieldName), remoteName)
	}
	_ = w.Flush()

	fmt.Printf("\n%d conflict(s). Resolve with 'cardsync resolve --id <id> --keep local|remote|merge'\n", len(flagged))
	return nil
}

// ResolveConflictCommand applies a resolution choice to one flagged
// contact.
func ResolveConflictCommand(store *db.Store, engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	id := fs.String("id", "", "Contact ID (required)")
	keep := fs.String("keep", "", "Which side to keep: local, remote, or merge (required)")
	_ = fs.Parse(args)

	if *id == "" || *keep == "" {
		return fmt.Errorf("--id and --keep are required")
	}

	contact, err := store.Get(*id)
	if err != nil {
		return fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return fmt.Errorf("contact %s not found", *id)
	}
	if contact.SyncStatus != models.SyncStatusConflict || contact.ConflictData == nil {
		return fmt.Errorf("contact %s has no pending conflict", *id)
	}

	// Strip the conflict flag so the resolution path sees the plain
	// local record
	remote := contact.ConflictData
	local := contact.Clone()
	local.SyncStatus = models.SyncStatusSynced
	local.ConflictData = nil
	local.NeedsReview = false

	var policy string
	switch *keep {
	case "local":
		policy = models.PolicyLocalWins
	case "remote":
		policy = models.PolicyServerWins
	case "merge":
		policy = sync.PolicyMergeByConfidence
	default:
		return fmt.Errorf("unknown --keep value %q: use local, remote, or merge", *keep)
	}

	resolved, err := engine.ResolveConflictWithPolicy(local, remote, policy)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	fmt.Printf("✓ Conflict resolved: %s (kept %s)\n", resolved.FieldValue(models.FieldName), *keep)
	return nil
}
