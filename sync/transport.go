// ABOUTME: HTTP transport for the remote contact service
// ABOUTME: JSON request/response client with bearer authorization and typed network errors
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/harperreed/cardsync/models"
)

// RemoteClient is the transport contract the orchestrator drains the
// queue through and pulls remote deltas from.
type RemoteClient interface {
	CreateContact(ctx context.Context, contact *models.Contact) error
	UpdateContact(ctx context.Context, contact *models.Contact) error
	DeleteContact(ctx context.Context, id string) error
	ChangedSince(ctx context.Context, since *time.Time) ([]models.Contact, error)
}

// APIClient talks JSON to the remote contact service.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClient creates a client for the given service URL and bearer token.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *APIClient) CreateContact(ctx context.Context, contact *models.Contact) error {
	return c.do(ctx, http.MethodPost, "/v1/contacts", contact, nil)
}

func (c *APIClient) UpdateContact(ctx context.Context, contact *models.Contact) error {
	return c.do(ctx, http.MethodPut, "/v1/contacts/"+url.PathEscape(contact.ID), contact, nil)
}

func (c *APIClient) DeleteContact(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/contacts/"+url.PathEscape(id), nil, nil)
}

// ChangedSince pulls contacts the server has changed after the given
// time. A nil since requests the full set.
func (c *APIClient) ChangedSince(ctx context.Context, since *time.Time) ([]models.Contact, error) {
	path := "/v1/contacts"
	if since != nil {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}

	var resp struct {
		Contacts []models.Contact `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

// Healthy probes the service health endpoint. Used by the connectivity
// monitor; failures are expected and not logged here.
func (c *APIClient) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 500
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &NetworkError{StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
		}
	}
	return nil
}

// readErrorMessage pulls a human-readable message out of an error
// response, falling back to the raw body.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "request failed"
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return string(raw)
}
