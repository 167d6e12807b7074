// Package remote implements the vector index interface over the HTTP API
// of another memsync instance. It exists for split deployments where the
// sync daemon runs as its own process and mirrors into an index service it
// does not embed, addressed by VECTOR_INDEX_URL.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/preflect/memsync/memory"
)

// Client talks to a peer instance's index endpoints.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a remote index client. A zero timeout defaults to 15s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type addMemoryRequest struct {
	UserID string   `json:"user_id"`
	Text   string   `json:"text"`
	Topic  string   `json:"topic,omitempty"`
	Type   string   `json:"type,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// Upsert mirrors one record through the peer's add endpoint. The peer
// derives the same content-hash ID, so repeated upserts stay idempotent.
func (c *Client) Upsert(ctx context.Context, rec memory.Record) error {
	body := addMemoryRequest{
		UserID: rec.UserID,
		Text:   rec.Text,
		Topic:  string(rec.Topic),
		Type:   string(rec.Kind),
		Tags:   rec.Tags,
	}
	return c.post(ctx, "/add_memory", body, nil)
}

type searchRequest struct {
	UserID         string  `json:"user_id"`
	Context        string  `json:"context"`
	Domain         string  `json:"domain,omitempty"`
	Type           string  `json:"type,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	UseClassifiers bool    `json:"use_classifiers"`
	ScoreThreshold float32 `json:"score_threshold,omitempty"`
}

type searchMemory struct {
	Text  string   `json:"text"`
	Topic string   `json:"topic"`
	Type  string   `json:"type"`
	Score float32  `json:"score"`
	Tags  []string `json:"tags"`
}

type searchResponse struct {
	Memories []searchMemory `json:"memories"`
}

// Search runs the query on the peer. Topic filters translate to the
// caller-facing domain parameter of the search endpoint.
func (c *Client) Search(ctx context.Context, q memory.Query) ([]memory.SearchResult, error) {
	body := searchRequest{
		UserID:         q.UserID,
		Context:        q.Text,
		Type:           string(q.Kind),
		Limit:          q.Limit,
		UseClassifiers: q.TagVectors,
		ScoreThreshold: q.ScoreThreshold,
	}
	if d, ok := domainForTopic(q.Topic); ok {
		body.Domain = string(d)
	}

	var resp searchResponse
	if err := c.post(ctx, "/search", body, &resp); err != nil {
		return nil, err
	}

	out := make([]memory.SearchResult, 0, len(resp.Memories))
	for _, m := range resp.Memories {
		topic := memory.Topic(m.Topic)
		out = append(out, memory.SearchResult{
			Record: memory.Record{
				ID:     memory.NewRecordID(q.UserID, m.Text, topic),
				UserID: q.UserID,
				Text:   m.Text,
				Topic:  topic,
				Kind:   memory.Kind(m.Type),
				Tags:   m.Tags,
			},
			Score: m.Score,
		})
	}
	return out, nil
}

type listUsersResponse struct {
	Users []memory.UserStat `json:"users"`
}

// ListUsers enumerates users known to the peer.
func (c *Client) ListUsers(ctx context.Context) ([]memory.UserStat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/list_users", nil)
	if err != nil {
		return nil, fmt.Errorf("remote index: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote index: list users: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote index: list users: unexpected status %d", resp.StatusCode)
	}
	var parsed listUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("remote index: decode response: %w", err)
	}
	return parsed.Users, nil
}

// Close is a no-op; the client holds no resources beyond the HTTP client.
func (c *Client) Close() error {
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, into any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("remote index: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("remote index: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote index: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote index: %s: unexpected status %d", path, resp.StatusCode)
	}
	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("remote index: decode response: %w", err)
	}
	return nil
}

// domainForTopic inverts the domain-to-topic mapping for the wire format.
func domainForTopic(t memory.Topic) (memory.Domain, bool) {
	for _, d := range memory.AllDomains() {
		if d.Topic() == t {
			return d, true
		}
	}
	return "", false
}
