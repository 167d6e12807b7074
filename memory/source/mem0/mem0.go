// Package mem0 implements the source-of-truth client against the mem0 REST
// API. The service ingests raw conversational input, extracts and rewrites
// it asynchronously, and serves the canonical records this system mirrors
// into the vector index.
package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/preflect/memsync/memory"
)

// DefaultBaseURL is the hosted mem0 API.
const DefaultBaseURL = "https://api.mem0.ai/v1"

// Config configures the client.
type Config struct {
	// BaseURL of the API. Default: DefaultBaseURL.
	BaseURL string

	// APIKey authenticates every request (Token scheme). Required.
	APIKey string

	// Timeout bounds each call. There is no retry here; retry policy
	// belongs to the deployment, not this client. Default: 15s.
	Timeout time.Duration
}

// Client talks to the authoritative memory service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a source client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mem0: APIKey is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type addRequest struct {
	Messages []message `json:"messages"`
	UserID   string    `json:"user_id"`
}

// apiMemory is the wire shape of one record.
type apiMemory struct {
	ID        string            `json:"id"`
	Memory    string            `json:"memory"`
	UserID    string            `json:"user_id"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	Score     float32           `json:"score"`
}

// Submit sends raw input for asynchronous processing. The service
// acknowledges receipt; there is no structured result and no bound on when
// the extracted record becomes fetchable.
func (c *Client) Submit(ctx context.Context, userID, text string) error {
	body := addRequest{
		Messages: []message{{Role: "user", Content: text}},
		UserID:   userID,
	}
	return c.do(ctx, http.MethodPost, "/memories/", body, nil)
}

// FetchAll returns every processed record for the user.
func (c *Client) FetchAll(ctx context.Context, userID string) ([]memory.Record, error) {
	var raw []apiMemory
	path := "/memories/?user_id=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	records := make([]memory.Record, 0, len(raw))
	for _, m := range raw {
		if m.Memory == "" {
			continue
		}
		records = append(records, c.toRecord(m, userID))
	}
	return records, nil
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// Search runs a semantic search against the source. Topic and kind filters
// are applied client-side after metadata mapping: the hosted API filters on
// user only. When such a filter will run, the request over-fetches so the
// post-filter result set can still fill the limit.
func (c *Client) Search(ctx context.Context, q memory.Query) ([]memory.SearchResult, error) {
	fetchLimit := q.Limit
	if fetchLimit > 0 && (q.Topic != "" || q.Kind != "") {
		fetchLimit *= 3
	}
	body := searchRequest{Query: q.Text, UserID: q.UserID, Limit: fetchLimit}
	var raw []apiMemory
	if err := c.do(ctx, http.MethodPost, "/memories/search/", body, &raw); err != nil {
		return nil, err
	}

	var out []memory.SearchResult
	for _, m := range raw {
		if m.Memory == "" {
			continue
		}
		rec := c.toRecord(m, q.UserID)
		if q.Topic != "" && rec.Topic != q.Topic {
			continue
		}
		if q.Kind != "" && rec.Kind != q.Kind {
			continue
		}
		if q.ScoreThreshold > 0 && m.Score < q.ScoreThreshold {
			continue
		}
		out = append(out, memory.SearchResult{Record: rec, Score: m.Score})
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// toRecord maps a wire memory onto the local model. Kind defaults to stable
// and topic is inferred from the text when the source carries no metadata
// for them.
func (c *Client) toRecord(m apiMemory, userID string) memory.Record {
	if m.UserID != "" {
		userID = m.UserID
	}
	kind := memory.Kind(m.Metadata["type"])
	if kind == "" {
		kind = memory.KindStable
	}
	topic := memory.Topic(m.Metadata["topic"])
	if topic == "" {
		topic = memory.InferTopic(m.Memory)
	}
	id := m.ID
	if id == "" {
		id = memory.NewRecordID(userID, m.Memory, topic)
	}
	return memory.Record{
		ID:        id,
		UserID:    userID,
		Text:      m.Memory,
		Topic:     topic,
		Kind:      kind,
		CreatedAt: m.CreatedAt,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, into any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("mem0: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("mem0: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mem0: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mem0: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("mem0: decode response: %w", err)
	}
	return nil
}
