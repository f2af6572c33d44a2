// ABOUTME: Sync configuration CLI commands
// ABOUTME: Shows and updates engine settings like policy, interval, and auto-sync
package cli

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/harperreed/cardsync/sync"
)

// ConfigShowCommand prints the current sync configuration.
func ConfigShowCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg := engine.GetSyncConfig()

	fmt.Println("Sync configuration")
	fmt.Printf("  enabled: %t\n", cfg.Enabled)
	fmt.Printf("  auto-sync: %t\n", cfg.AutoSync)
	fmt.Printf("  interval: %d min\n", cfg.SyncIntervalMinutes)
	fmt.Printf("  policy: %s\n", cfg.Policy)
	fmt.Printf("  include-photos: %t\n", cfg.IncludePhotos)
	fmt.Printf("  include-notes: %t\n", cfg.IncludeNotes)
	fmt.Printf("  include-interactions: %t\n", cfg.IncludeInteractions)
	fmt.Printf("  import-device-contacts: %t\n", cfg.ImportDeviceContacts)
	return nil
}

// ConfigSetCommand updates sync configuration values.
func ConfigSetCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	enabled := fs.String("enabled", "", "Enable or disable sync (true/false)")
	autoSync := fs.String("auto-sync", "", "Enable or disable automatic syncing (true/false)")
	interval := fs.Int("interval", 0, "Sync interval in minutes")
	policy := fs.String("policy", "", "Conflict policy: server_wins, local_wins, newest_wins, manual")
	photos := fs.String("include-photos", "", "Include photos in sync (true/false)")
	notes := fs.String("include-notes", "", "Include notes in sync (true/false)")
	interactions := fs.String("include-interactions", "", "Include interactions in sync (true/false)")
	importDevices := fs.String("import-device-contacts", "", "Allow device contact import (true/false)")
	_ = fs.Parse(args)

	var patch sync.SyncConfigPatch
	changed := false

	setBool := func(raw string, dst **bool) error {
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", raw)
		}
		*dst = &v
		changed = true
		return nil
	}

	if err := setBool(*enabled, &patch.Enabled); err != nil {
		return err
	}
	if err := setBool(*autoSync, &patch.AutoSync); err != nil {
		return err
	}
	if err := setBool(*photos, &patch.IncludePhotos); err != nil {
		return err
	}
	if err := setBool(*notes, &patch.IncludeNotes); err != nil {
		return err
	}
	if err := setBool(*interactions, &patch.IncludeInteractions); err != nil {
		return err
	}
	if err := setBool(*importDevices, &patch.ImportDeviceContacts); err != nil {
		return err
	}
	if *interval > 0 {
		patch.SyncIntervalMinutes = interval
		changed = true
	}
	if *policy != "" {
		patch.Policy = policy
		changed = true
	}

	if !changed {
		return fmt.Errorf("nothing to set: pass at least one configuration flag")
	}

	cfg, err := engine.UpdateSyncConfig(patch)
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}

	fmt.Println("✓ Configuration updated")
	fmt.Printf("  enabled: %t, auto-sync: %t, interval: %d min, policy: %s\n",
		cfg.Enabled, cfg.AutoSync, cfg.SyncIntervalMinutes, cfg.Policy)
	return nil
}
