package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultRemoteTimeout bounds each classifier-service call. The service
// runs a small language model and can stall under load; the failover
// decorator turns a slow call into a heuristic result, so the timeout stays
// short on purpose.
const DefaultRemoteTimeout = 3 * time.Second

// Remote is the HTTP client for the external classifier service.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates a classifier-service client. A zero timeout selects
// DefaultRemoteTimeout.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Remote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Text        string   `json:"text"`
	Classifiers []string `json:"classifiers"`
}

type classifyBatchRequest struct {
	Texts []string `json:"texts"`
}

type classifyBatchResponse struct {
	Results []classifyResponse `json:"results"`
}

// Tag classifies a single text.
func (r *Remote) Tag(ctx context.Context, text string) ([]string, error) {
	var resp classifyResponse
	if err := r.post(ctx, "/classify", classifyRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	tags := clampTags(resp.Classifiers)
	if len(tags) == 0 {
		return nil, fmt.Errorf("classifier returned no usable tags")
	}
	return tags, nil
}

// TagBatch classifies texts in one round trip. The response must align with
// the request one-to-one; anything else is treated as a failed call.
func (r *Remote) TagBatch(ctx context.Context, texts []string) ([][]string, error) {
	var resp classifyBatchResponse
	if err := r.post(ctx, "/classify_batch", classifyBatchRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) != len(texts) {
		return nil, fmt.Errorf("classifier batch size mismatch: sent %d, got %d", len(texts), len(resp.Results))
	}
	out := make([][]string, len(texts))
	for i, res := range resp.Results {
		tags := clampTags(res.Classifiers)
		if len(tags) == 0 {
			return nil, fmt.Errorf("classifier returned no usable tags for item %d", i)
		}
		out[i] = tags
	}
	return out, nil
}

// Healthy pings the classifier service. The result is surfaced on the
// health endpoint only; tagging never depends on it.
func (r *Remote) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (r *Remote) post(ctx context.Context, path string, body, into any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("classifier service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier service: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
