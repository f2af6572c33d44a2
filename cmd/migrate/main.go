// ABOUTME: Migration utility for upgrading a legacy flat-column contact database.
// ABOUTME: Provides dry-run and backup capabilities for safe schema migration.

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/models"
)

func main() {
	dbPath := flag.String("db", "", "Path to database file (required)")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backup := flag.Bool("backup", true, "Create backup before migration")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Error: -db flag is required")
	}

	if err := migrate(*dbPath, *dryRun, *backup); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}

func migrate(dbPath string, dryRun, createBackup bool) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", dbPath)
	}

	if createBackup && !dryRun {
		backupPath := fmt.Sprintf("%s.backup.%s", dbPath, time.Now().Format("20060102-150405"))
		log.Printf("Creating backup: %s", backupPath)

		input, err := os.ReadFile(dbPath)
		if err != nil {
			return fmt.Errorf("failed to read database: %w", err)
		}

		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("Backup created successfully")
	}

	database, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	legacy, err := hasLegacyContacts(database)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if !legacy {
		if dryRun {
			log.Printf("[DRY RUN] Schema is current, nothing to do")
			return nil
		}
		log.Printf("Schema is current, ensuring tables and indexes exist")
		return db.InitSchema(database)
	}

	count, err := legacyRowCount(database)
	if err != nil {
		return fmt.Errorf("failed to count legacy contacts: %w", err)
	}

	if dryRun {
		log.Printf("[DRY RUN] Would perform the following actions:")
		log.Printf("[DRY RUN] - Rename legacy contacts table (flat name/email/phone columns)")
		log.Printf("[DRY RUN] - Create the field-list contacts schema")
		log.Printf("[DRY RUN] - Convert %d legacy contact(s) into field lists", count)
		log.Printf("[DRY RUN] - Drop the legacy table")
		return nil
	}

	log.Printf("Migrating %d legacy contact(s)...", count)

	if _, err := database.Exec("ALTER TABLE contacts RENAME TO contacts_legacy"); err != nil {
		return fmt.Errorf("failed to rename legacy table: %w", err)
	}

	if err := db.InitSchema(database); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	migrated, err := convertLegacyRows(database)
	if err != nil {
		return fmt.Errorf("failed to convert legacy contacts: %w", err)
	}
	log.Printf("Converted %d contact(s)", migrated)

	if _, err := database.Exec("DROP TABLE contacts_legacy"); err != nil {
		return fmt.Errorf("failed to drop legacy table: %w", err)
	}
	log.Printf("Dropped legacy table")

	return nil
}

// hasLegacyContacts reports whether the contacts table still uses flat
// name/email/phone columns instead of the JSON field list.
func hasLegacyContacts(database *sql.DB) (bool, error) {
	rows, err := database.Query("PRAGMA table_info(contacts)")
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	hasName := false
	hasFields := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		switch name {
		case "name":
			hasName = true
		case "fields":
			hasFields = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	return hasName && !hasFields, nil
}

func legacyRowCount(database *sql.DB) (int, error) {
	var count int
	err := database.QueryRow("SELECT COUNT(*) FROM contacts").Scan(&count)
	return count, err
}

// convertLegacyRows rewrites each flat row as a field-list contact.
// Legacy rows have no sync history, so everything starts out pending.
func convertLegacyRows(database *sql.DB) (int, error) {
	rows, err := database.Query(`
		SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(notes, ''), created_at, updated_at
		FROM contacts_legacy`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	store := db.NewStore(database)

	migrated := 0
	for rows.Next() {
		var id, name, email, phone, notes string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &name, &email, &phone, &notes, &createdAt, &updatedAt); err != nil {
			return migrated, err
		}

		contact := &models.Contact{
			ID:         id,
			Source:     models.SourceManual,
			IsVerified: true,
			SyncStatus: models.SyncStatusPending,
			CreatedAt:  createdAt,
			UpdatedAt:  updatedAt,
		}
		add := func(t models.FieldType, value string) {
			if value == "" {
				return
			}
			contact.Fields = append(contact.Fields, models.ContactField{Type: t, Value: value, Editable: true})
		}
		add(models.FieldName, name)
		add(models.FieldEmail, email)
		add(models.FieldPhone, phone)
		add(models.FieldNotes, notes)

		if err := store.Save(contact); err != nil {
			return migrated, fmt.Errorf("failed to save contact %s: %w", id, err)
		}
		migrated++
	}

	return migrated, rows.Err()
}
