// ABOUTME: Sync CLI commands
// ABOUTME: Manual sync trigger, status display, queue inspection, and the daemon loop
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/harperreed/cardsync/sync"
)

// SyncNowCommand runs one sync cycle and reports the outcome.
func SyncNowCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("now", flag.ExitOnError)
	timeout := fs.Duration("timeout", 2*time.Minute, "Abort the cycle after this long")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Println("Syncing...")
	err := engine.SyncNow(ctx)
	switch {
	case errors.Is(err, sync.ErrOffline):
		return fmt.Errorf("sync service unreachable - changes stay queued until connectivity returns")
	case errors.Is(err, sync.ErrSyncDisabled):
		return fmt.Errorf("sync is disabled - enable with 'cardsync config set --enabled=true'")
	case errors.Is(err, sync.ErrSyncInProgress):
		return fmt.Errorf("a sync cycle is already running")
	case err != nil:
		return fmt.Errorf("sync failed: %w", err)
	}

	status := engine.GetSyncStatus()
	fmt.Println("✓ Sync complete")
	if status.PendingUploads > 0 {
		fmt.Printf("  %d change(s) still pending (will retry next cycle)\n", status.PendingUploads)
	}
	if status.ConflictCount > 0 {
		fmt.Printf("  ⚠ %d contact(s) need manual review\n", status.ConflictCount)
	}
	for _, msg := range status.Errors {
		fmt.Printf("  ⚠ %s\n", msg)
	}
	return nil
}

// SyncStatusCommand shows the engine's current status.
func SyncStatusCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	_ = fs.Parse(args)

	status := engine.GetSyncStatus()
	cfg := engine.GetSyncConfig()

	fmt.Println("Sync status")
	fmt.Printf("  State: %s\n", status.State)
	fmt.Printf("  Enabled: %t (auto-sync: %t, every %d min)\n", cfg.Enabled, cfg.AutoSync, cfg.SyncIntervalMinutes)
	fmt.Printf("  Conflict policy: %s\n", cfg.Policy)
	fmt.Printf("  Pending uploads: %d\n", status.PendingUploads)
	fmt.Printf("  Conflicts: %d\n", status.ConflictCount)
	if status.LastSyncAt != nil {
		fmt.Printf("  Last sync: %s\n", status.LastSyncAt.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("  Last sync: never")
	}
	for _, msg := range status.Errors {
		fmt.Printf("  ⚠ %s\n", msg)
	}
	return nil
}

// QueueListCommand lists pending mutations.
func QueueListCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("queue", flag.ExitOnError)
	_ = fs.Parse(args)

	entries := engine.QueueEntries()
	if len(entries) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CONTACT\tACTION\tQUEUED\tATTEMPTS\tLAST ERROR")
	for _, e := range entries {
		lastErr := e.LastError
		if len(lastErr) > 48 {
			lastErr = lastErr[:45] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			shortID(e.ContactID), e.Action, e.QueuedAt.Local().Format("01-02 15:04"), e.AttemptCount, lastErr)
	}
	_ = w.Flush()

	fmt.Printf("\n%d pending mutation(s)\n", len(entries))
	return nil
}

// SyncDaemonCommand runs the engine until interrupted, syncing on the
// configured interval and on connectivity changes.
func SyncDaemonCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	interval := fs.Duration("interval", 0, "Override the configured sync interval")
	_ = fs.Parse(args)

	engine.Start()
	defer engine.Close()

	if *interval > 0 {
		engine.Schedule(*interval)
	}

	cfg := engine.GetSyncConfig()
	fmt.Printf("Sync daemon started (policy: %s, interval: %d min)\n", cfg.Policy, cfg.SyncIntervalMinutes)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nStopping sync daemon...")
	return nil
}
