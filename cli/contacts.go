// ABOUTME: Contact CLI commands
// ABOUTME: Human-friendly commands for managing local contacts
package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/sync"
)

// queueToEngine records a local change on the sync engine's mutation
// queue. Queue failures are non-fatal - the local operation already
// succeeded.
func queueToEngine(engine *sync.Engine, contactID, action string, contact *models.Contact) {
	if engine == nil {
		return
	}
	if err := engine.QueueContactSync(contactID, action, contact); err != nil {
		log.Printf("warning: failed to queue %s for sync: %v", action, err)
	}
}

// AddContactCommand adds a new contact.
func AddContactCommand(store *db.Store, engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "Contact name (required)")
	email := fs.String("email", "", "Email address")
	phone := fs.String("phone", "", "Phone number")
	company := fs.String("company", "", "Company name")
	title := fs.String("title", "", "Job title")
	notes := fs.String("notes", "", "Notes about the contact")
	_ = fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	now := time.Now().UTC()
	contact := &models.Contact{
		ID:         uuid.New().String(),
		Source:     models.SourceManual,
		IsVerified: true,
		SyncStatus: models.SyncStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	add := func(t models.FieldType, value string) {
		if value == "" {
			return
		}
		contact.Fields = append(contact.Fields, models.ContactField{
			Type:     t,
			Value:    value,
			Editable: true,
		})
	}
	add(models.FieldName, *name)
	add(models.FieldEmail, *email)
	add(models.FieldPhone, *phone)
	add(models.FieldCompany, *company)
	add(models.FieldTitle, *title)
	add(models.FieldNotes, *notes)

	if err := store.Save(contact); err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	queueToEngine(engine, contact.ID, models.ActionCreate, contact)

	fmt.Printf("✓ Contact created: %s (ID: %s)\n", *name, contact.ID)
	if *email != "" {
		fmt.Printf("  Email: %s\n", *email)
	}
	if *phone != "" {
		fmt.Printf("  Phone: %s\n", *phone)
	}
	if *company != "" {
		fmt.Printf("  Company: %s\n", *company)
	}

	return nil
}

// ListContactsCommand lists all contacts.
func ListContactsCommand(store *db.Store, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by sync status (synced, pending, conflict)")
	_ = fs.Parse(args)

	contacts, err := store.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list contacts: %w", err)
	}

	var rows []models.Contact
	for _, c := range contacts {
		if *status != "" && c.SyncStatus != *status {
			continue
		}
		rows = append(rows, c)
	}

	if len(rows) == 0 {
		fmt.Println("No contacts found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE\tSTATUS")
	for _, c := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(c.ID),
			c.FieldValue(models.FieldName),
			c.FieldValue(models.FieldEmail),
			c.FieldValue(models.FieldPhone),
			c.SyncStatus,
		)
	}
	_ = w.Flush()

	fmt.Printf("\n%d contact(s)\n", len(rows))
	return nil
}

// ShowContactCommand shows one contact in full.
func ShowContactCommand(store *db.Store, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	id := fs.String("id", "", "Contact ID (required)")
	_ = fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	contact, err := store.Get(*id)
	if err != nil {
		return fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return fmt.Errorf("contact %s not found", *id)
	}

	fmt.Printf("Contact: %s\n", contact.FieldValue(models.FieldName))
	fmt.Printf("  ID: %s\n", contact.ID)
	fmt.Printf("  Source: %s\n", contact.Source)
	fmt.Printf("  Status: %s\n", contact.SyncStatus)
	fmt.Printf("  Updated: %s\n", contact.UpdatedAt.Local().Format("2006-01-02 15:04"))

	fmt.Println("  Fields:")
	for _, f := range contact.Fields {
		line := fmt.Sprintf("    %s: %s", f.Type, f.Value)
		if f.Confidence > 0 && f.Confidence < 1 {
			line += fmt.Sprintf(" (confidence %.2f)", f.Confidence)
		}
		fmt.Println(line)
	}

	if len(contact.Tags) > 0 {
		fmt.Printf("  Tags: %v\n", contact.Tags)
	}
	if contact.NeedsReview {
		fmt.Println("  ⚠ Needs review: remote copy differs, run 'cardsync conflicts' to resolve")
	}

	return nil
}

// UpdateContactCommand changes fields on an existing contact.
func UpdateContactCommand(store *db.Store, engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "Contact ID (required)")
	name := fs.String("name", "", "New contact name")
	email := fs.String("email", "", "New email address")
	phone := fs.String("phone", "", "New phone number")
	notes := fs.String("notes", "", "New notes")
	_ = fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	contact, err := store.Get(*id)
	if err != nil {
		return fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return fmt.Errorf("contact %s not found", *id)
	}

	changed := false
	set := func(t models.FieldType, value string) {
		if value == "" {
			return
		}
		changed = true
		if f, ok := contact.Field(t); ok {
			f.Value = value
			return
		}
		contact.Fields = append(contact.Fields, models.ContactField{Type: t, Value: value, Editable: true})
	}
	set(models.FieldName, *name)
	set(models.FieldEmail, *email)
	set(models.FieldPhone, *phone)
	set(models.FieldNotes, *notes)

	if !changed {
		return fmt.Errorf("nothing to update: pass at least one of --name, --email, --phone, --notes")
	}

	contact.UpdatedAt = time.Now().UTC()
	contact.SyncStatus = models.SyncStatusPending
	if err := store.Save(contact); err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	queueToEngine(engine, contact.ID, models.ActionUpdate, contact)

	fmt.Printf("✓ Contact updated: %s\n", contact.FieldValue(models.FieldName))
	return nil
}

// DeleteContactCommand deletes a contact.
func DeleteContactCommand(store *db.Store, engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "Contact ID (required)")
	_ = fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	contact, err := store.Get(*id)
	if err != nil {
		return fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return fmt.Errorf("contact %s not found", *id)
	}

	if err := store.Delete(*id); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	queueToEngine(engine, *id, models.ActionDelete, nil)

	fmt.Printf("✓ Contact deleted: %s\n", contact.FieldValue(models.FieldName))
	return nil
}

// shortID truncates a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
