// ABOUTME: Backup CLI commands
// ABOUTME: Creates, lists, restores, and deletes contact store snapshots
package cli

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harperreed/cardsync/sync"
)

// BackupCreateCommand snapshots the contact store.
func BackupCreateCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "Backup name (defaults to a timestamp)")
	photos := fs.Bool("photos", false, "Record photo payloads in the snapshot")
	_ = fs.Parse(args)

	backupName := *name
	if backupName == "" {
		backupName = "backup " + time.Now().Format("2006-01-02 15:04")
	}

	info, err := engine.CreateBackup(backupName, *photos)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	fmt.Printf("✓ Backup created: %s\n", info.Name)
	fmt.Printf("  ID: %s\n", info.ID)
	fmt.Printf("  Contacts: %d (%s)\n", info.ContactCount, humanSize(info.SizeBytes))
	return nil
}

// BackupListCommand lists stored snapshots.
func BackupListCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	_ = fs.Parse(args)

	backups, err := engine.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		fmt.Println("No backups yet. Create one with 'cardsync backup create'")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCONTACTS\tSIZE\tCREATED")
	for _, b := range backups {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			b.ID, b.Name, b.ContactCount, humanSize(b.SizeBytes), b.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
	return nil
}

// BackupRestoreCommand restores contacts from a snapshot.
func BackupRestoreCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	id := fs.String("id", "", "Backup ID (required)")
	overwrite := fs.Bool("overwrite", false, "Replace contacts that already exist locally")
	_ = fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	restored, err := engine.RestoreFromBackup(*id, sync.RestoreOptions{Overwrite: *overwrite})
	if err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	fmt.Printf("✓ Restored %d contact(s)\n", restored)
	if !*overwrite {
		fmt.Println("  Existing contacts were kept (use --overwrite to replace them)")
	}
	return nil
}

// BackupDeleteCommand removes a snapshot.
func BackupDeleteCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "Backup ID (required)")
	_ = fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	if err := engine.DeleteBackup(*id); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	fmt.Printf("✓ Backup deleted: %s\n", *id)
	return nil
}

func humanSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
