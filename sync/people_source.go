// ABOUTME: Google People API device-contact source
// ABOUTME: Reads the user's Google Contacts as external records for the import bridge
package sync

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

const peoplePageSize = 200

// PeopleSource reads device contacts from the Google People API.
type PeopleSource struct {
	service *people.Service
}

// NewPeopleSource creates a source backed by an authenticated People
// API client.
func NewPeopleSource(ctx context.Context, token *oauth2.Token) (*PeopleSource, error) {
	if token == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}

	config := NewOAuthConfig()
	client := config.Client(ctx, token)

	service, err := people.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}

	return &PeopleSource{service: service}, nil
}

// Contacts pages through the user's connections and flattens each
// person into a DeviceContact.
func (ps *PeopleSource) Contacts(ctx context.Context) ([]DeviceContact, error) {
	var records []DeviceContact

	pageToken := ""
	for {
		call := ps.service.People.Connections.List("people/me").
			PersonFields("names,emailAddresses,phoneNumbers,organizations").
			PageSize(peoplePageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list connections: %w", err)
		}

		for _, person := range resp.Connections {
			record := personToDeviceContact(person)
			if record.ID == "" || record.Name == "" {
				continue
			}
			records = append(records, record)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return records, nil
}

// personToDeviceContact flattens a People API person. The local ID is
// derived from the stable resource name so re-imports dedupe.
func personToDeviceContact(person *people.Person) DeviceContact {
	record := DeviceContact{
		ID: deviceIDFromResource(person.ResourceName),
	}

	if len(person.Names) > 0 {
		record.Name = person.Names[0].DisplayName
	}
	if len(person.EmailAddresses) > 0 {
		record.Email = person.EmailAddresses[0].Value
	}
	if len(person.PhoneNumbers) > 0 {
		record.Phone = person.PhoneNumbers[0].Value
	}
	if len(person.Organizations) > 0 {
		record.Company = person.Organizations[0].Name
		record.Title = person.Organizations[0].Title
	}

	return record
}

func deviceIDFromResource(resourceName string) string {
	suffix := strings.TrimPrefix(resourceName, "people/")
	if suffix == "" {
		return ""
	}
	return "device_" + suffix
}
