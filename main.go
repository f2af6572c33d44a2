// ABOUTME: Entry point for the cardsync CLI
// ABOUTME: Routes commands and wires the store, blob store, transport, and engine together
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/harperreed/cardsync/cli"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/kv"
	"github.com/harperreed/cardsync/sync"
)

const version = "0.2.0"

func main() {
	// Local .env overrides for development setups
	_ = godotenv.Load()

	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/cardsync/contacts.db)")
	initOnly := flag.Bool("init", false, "Initialize the database and exit")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("cardsync version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	command := args[0]
	commandArgs := args[1:]

	// Commands that only touch settings don't need the stores
	switch command {
	case "auth":
		if len(commandArgs) > 0 && commandArgs[0] == "status" {
			fatalOnErr(cli.AuthStatusCommand(commandArgs[1:]))
		} else {
			fatalOnErr(cli.AuthCommand(commandArgs))
		}
		return
	}

	app, cleanup, err := openApp(*dbPath)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer cleanup()

	if *initOnly {
		log.Println("Database initialized successfully")
		return
	}

	switch command {
	case "contacts":
		runContacts(app, commandArgs)

	case "sync":
		runSync(app, commandArgs)

	case "queue":
		fatalOnErr(cli.QueueListCommand(app.engine, commandArgs))

	case "conflicts":
		fatalOnErr(cli.ConflictsListCommand(app.store, commandArgs))

	case "resolve":
		fatalOnErr(cli.ResolveConflictCommand(app.store, app.engine, commandArgs))

	case "config":
		runConfig(app, commandArgs)

	case "backup":
		runBackup(app, commandArgs)

	case "import":
		runImport(app, commandArgs)

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// app bundles the wired collaborators commands need.
type app struct {
	store   *db.Store
	engine  *sync.Engine
	monitor *sync.ProbeMonitor
}

// openApp builds the contact store, blob store, transport, and engine.
func openApp(dbPath string) (*app, func(), error) {
	settings, err := sync.LoadSettings()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	database, err := db.OpenDatabase(getDatabasePath(dbPath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	blobs, err := kv.Open(filepath.Join(xdg.DataHome, "cardsync", "kv"))
	if err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	store := db.NewStore(database)
	client := sync.NewAPIClient(settings.Server, settings.Token)
	monitor := sync.NewProbeMonitor(client, 30*time.Second)
	if settings.IsConfigured() {
		monitor.Start()
	}

	engine, err := sync.NewEngine(store, blobs, client, monitor)
	if err != nil {
		monitor.Stop()
		_ = blobs.Close()
		_ = database.Close()
		return nil, nil, fmt.Errorf("failed to build sync engine: %w", err)
	}

	cleanup := func() {
		engine.Close()
		monitor.Stop()
		_ = blobs.Close()
		_ = database.Close()
	}
	return &app{store: store, engine: engine, monitor: monitor}, cleanup, nil
}

func runContacts(a *app, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: contacts requires a subcommand")
		printUsage()
		os.Exit(1)
	}

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "add":
		fatalOnErr(cli.AddContactCommand(a.store, a.engine, subArgs))
	case "list":
		fatalOnErr(cli.ListContactsCommand(a.store, subArgs))
	case "show":
		fatalOnErr(cli.ShowContactCommand(a.store, subArgs))
	case "update":
		fatalOnErr(cli.UpdateContactCommand(a.store, a.engine, subArgs))
	case "delete":
		fatalOnErr(cli.DeleteContactCommand(a.store, a.engine, subArgs))
	default:
		fmt.Printf("Unknown contacts command: %s\n\n", sub)
		printUsage()
		os.Exit(1)
	}
}

func runSync(a *app, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: sync requires a subcommand")
		printUsage()
		os.Exit(1)
	}

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "now":
		fatalOnErr(cli.SyncNowCommand(a.engine, subArgs))
	case "status":
		fatalOnErr(cli.SyncStatusCommand(a.engine, subArgs))
	case "daemon":
		fatalOnErr(cli.SyncDaemonCommand(a.engine, subArgs))
	default:
		fmt.Printf("Unknown sync command: %s\n\n", sub)
		printUsage()
		os.Exit(1)
	}
}

func runConfig(a *app, args []string) {
	if len(args) == 0 {
		fatalOnErr(cli.ConfigShowCommand(a.engine, nil))
		return
	}

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "show":
		fatalOnErr(cli.ConfigShowCommand(a.engine, subArgs))
	case "set":
		fatalOnErr(cli.ConfigSetCommand(a.engine, subArgs))
	default:
		fmt.Printf("Unknown config command: %s\n\n", sub)
		printUsage()
		os.Exit(1)
	}
}

func runBackup(a *app, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: backup requires a subcommand")
		printUsage()
		os.Exit(1)
	}

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "create":
		fatalOnErr(cli.BackupCreateCommand(a.engine, subArgs))
	case "list":
		fatalOnErr(cli.BackupListCommand(a.engine, subArgs))
	case "restore":
		fatalOnErr(cli.BackupRestoreCommand(a.engine, subArgs))
	case "delete":
		fatalOnErr(cli.BackupDeleteCommand(a.engine, subArgs))
	default:
		fmt.Printf("Unknown backup command: %s\n\n", sub)
		printUsage()
		os.Exit(1)
	}
}

func runImport(a *app, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: import requires a subcommand")
		printUsage()
		os.Exit(1)
	}

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "init":
		fatalOnErr(cli.ImportInitCommand(subArgs))
	case "devices":
		fatalOnErr(cli.ImportDevicesCommand(a.engine, subArgs))
	default:
		fmt.Printf("Unknown import command: %s\n\n", sub)
		printUsage()
		os.Exit(1)
	}
}

func fatalOnErr(err error) {
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func getDatabasePath(dbPath string) string {
	if dbPath != "" {
		return dbPath
	}
	return filepath.Join(xdg.DataHome, "cardsync", "contacts.db")
}

func printUsage() {
	fmt.Printf(`cardsync v%s - Offline-first contact sync

USAGE:
  cardsync [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Database path (default: ~/.local/share/cardsync/contacts.db)
  --init                 Initialize the database and exit

CONTACT COMMANDS:
  cardsync contacts add     Add a new contact
    --name <name>             Contact name (required)
    --email <email>           Email address
    --phone <phone>           Phone number
    --company <company>       Company name
    --title <title>           Job title
    --notes <notes>           Notes about the contact

  cardsync contacts list    List contacts
    --status <status>         Filter by sync status (synced, pending, conflict)

  cardsync contacts show    Show one contact in full
    --id <id>                 Contact ID (required)

  cardsync contacts update  Update an existing contact
    --id <id>                 Contact ID (required)
    --name, --email, --phone, --notes

  cardsync contacts delete  Delete a contact
    --id <id>                 Contact ID (required)

SYNC COMMANDS:
  cardsync sync now         Run one sync cycle
  cardsync sync status      Show sync state, pending uploads, conflicts
  cardsync sync daemon      Run until interrupted, syncing on the configured interval
  cardsync queue            List pending mutations
  cardsync conflicts        List contacts needing manual review
  cardsync resolve          Resolve a flagged conflict
    --id <id>                 Contact ID (required)
    --keep local|remote|merge Which side to keep (required)

CONFIGURATION:
  cardsync config show      Show sync configuration
  cardsync config set       Update sync configuration
    --enabled, --auto-sync, --interval, --policy,
    --include-photos, --include-notes, --include-interactions,
    --import-device-contacts

BACKUPS:
  cardsync backup create    Snapshot the contact store
  cardsync backup list      List snapshots
  cardsync backup restore   Restore from a snapshot (--id, --overwrite)
  cardsync backup delete    Delete a snapshot (--id)

IMPORT:
  cardsync import init      Authenticate with Google (for device import)
  cardsync import devices   Import Google contacts (one-way)

SERVICE:
  cardsync auth             Configure the sync service URL and token
  cardsync auth status      Show service connection status

EXAMPLES:
  # Connect to a sync service
  cardsync auth --server https://sync.example.com

  # Add a contact (queued for upload automatically)
  cardsync contacts add --name "John Smith" --email "john@acme.com"

  # Sync right now
  cardsync sync now

  # See what's waiting to upload
  cardsync queue

`, version)
}
