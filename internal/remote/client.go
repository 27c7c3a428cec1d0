// Package remote is the client for the fleet controller REST API: the
// command log and the durable event stream. The dashboard core never
// talks to the network itself; the poller drives this client and hands
// the results over as snapshots.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dockwatch-io/dockwatch/internal/models"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx controller response with its decoded message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("controller returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("controller returned %d", e.StatusCode)
}

// Client talks to one controller instance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the controller at baseURL. An empty token
// skips authentication.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// ListCommands fetches the most recent command records for a node,
// newest first. Order is not guaranteed beyond that; consumers re-sort.
func (c *Client) ListCommands(ctx context.Context, nodeID string, limit int) ([]models.CommandRecord, error) {
	path := fmt.Sprintf("/api/nodes/%s/commands", url.PathEscape(nodeID))
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var records []models.CommandRecord
	if err := c.get(ctx, path, query, &records); err != nil {
		return nil, fmt.Errorf("listing commands for %s: %w", nodeID, err)
	}
	return records, nil
}

// SubmitCommand appends a fire-and-forget command to a node's log and
// returns the created record. The result arrives later through
// ListCommands polls, correlated by the record ID.
func (c *Client) SubmitCommand(ctx context.Context, nodeID, commandType, payload string) (models.CommandRecord, error) {
	path := fmt.Sprintf("/api/nodes/%s/commands", url.PathEscape(nodeID))
	body := struct {
		RequestID string `json:"requestId"`
		Type      string `json:"type"`
		Payload   string `json:"payload,omitempty"`
	}{
		RequestID: uuid.NewString(),
		Type:      commandType,
		Payload:   payload,
	}

	var record models.CommandRecord
	if err := c.post(ctx, path, body, &record); err != nil {
		return models.CommandRecord{}, fmt.Errorf("submitting %s to %s: %w", commandType, nodeID, err)
	}
	return record, nil
}

// EventFilter narrows a ListEvents call. Zero fields are omitted.
type EventFilter struct {
	NodeID   string
	Category string
	Limit    int
}

// ListEvents fetches entries from the durable event stream. Filtering
// by event name happens client-side; the API only filters by category.
func (c *Client) ListEvents(ctx context.Context, filter EventFilter) ([]models.AgentEvent, error) {
	query := url.Values{}
	if filter.NodeID != "" {
		query.Set("nodeId", filter.NodeID)
	}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var events []models.AgentEvent
	if err := c.get(ctx, "/api/events", query, &events); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// decodeAPIError reads the controller's JSON error envelope, falling
// back to the raw body when it is not JSON.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return apiErr
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		apiErr.Message = envelope.Error
	} else if len(body) > 0 {
		apiErr.Message = string(body)
	}
	return apiErr
}
