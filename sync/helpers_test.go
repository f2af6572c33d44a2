// ABOUTME: Shared test fakes for the sync engine
// ABOUTME: In-memory contact store, scriptable remote client, and failing blob store
package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/cardsync/kv"
	"github.com/harperreed/cardsync/models"
)

// memStore is an in-memory ContactStore.
type memStore struct {
	mu       sync.Mutex
	contacts map[string]*models.Contact
}

func newMemStore() *memStore {
	return &memStore{contacts: make(map[string]*models.Contact)}
}

func (s *memStore) Get(id string) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (s *memStore) Save(contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[contact.ID] = contact.Clone()
	return nil
}

func (s *memStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, id)
	return nil
}

func (s *memStore) ListAll() ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Contact
	for _, c := range s.contacts {
		out = append(out, *c.Clone())
	}
	return out, nil
}

// fakeRemote records pushed mutations and serves scripted deltas.
// failOn maps contact IDs to the error their push should return.
type fakeRemote struct {
	mu      sync.Mutex
	creates []string
	updates []string
	deletes []string
	failOn  map[string]error
	deltas  []models.Contact
	fetchEr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{failOn: make(map[string]error)}
}

func (r *fakeRemote) CreateContact(ctx context.Context, contact *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[contact.ID]; err != nil {
		return err
	}
	r.creates = append(r.creates, contact.ID)
	return nil
}

func (r *fakeRemote) UpdateContact(ctx context.Context, contact *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[contact.ID]; err != nil {
		return err
	}
	r.updates = append(r.updates, contact.ID)
	return nil
}

func (r *fakeRemote) DeleteContact(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[id]; err != nil {
		return err
	}
	r.deletes = append(r.deletes, id)
	return nil
}

func (r *fakeRemote) ChangedSince(ctx context.Context, since *time.Time) ([]models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchEr != nil {
		return nil, r.fetchEr
	}
	return append([]models.Contact(nil), r.deltas...), nil
}

func (r *fakeRemote) pushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.creates) + len(r.updates) + len(r.deletes)
}

// failingBlobStore wraps an in-memory map and fails writes on demand.
// failSets fails every write; failAfter allows that many successful
// writes first.
type failingBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	failSets  bool
	failAfter int
	sets      int
}

func newFailingBlobStore() *failingBlobStore {
	return &failingBlobStore{blobs: make(map[string][]byte)}
}

func (s *failingBlobStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[key], nil
}

func (s *failingBlobStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSets || (s.failAfter > 0 && s.sets >= s.failAfter) {
		return errors.New("disk full")
	}
	s.sets++
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

func (s *failingBlobStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func openTestKV(t *testing.T) *kv.Store {
	t.Helper()
	store, err := kv.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory kv: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testContact(id, name string, updatedAt time.Time) *models.Contact {
	return &models.Contact{
		ID: id,
		Fields: []models.ContactField{
			{Type: models.FieldName, Value: name, Editable: true},
		},
		SyncStatus: models.SyncStatusSynced,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
}
