package mem0_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/preflect/memsync/memory"
	"github.com/preflect/memsync/memory/source/mem0"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*mem0.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := mem0.New(mem0.Config{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, srv
}

func TestClient_RequiresAPIKey(t *testing.T) {
	if _, err := mem0.New(mem0.Config{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestClient_Submit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/memories/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.UserID != "Matt" || len(req.Messages) != 1 || req.Messages[0].Content != "I love sushi" {
			t.Errorf("unexpected request body %+v", req)
		}
		if req.Messages[0].Role != "user" {
			t.Errorf("unexpected role %q", req.Messages[0].Role)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Submit(context.Background(), "Matt", "I love sushi"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
}

func TestClient_FetchAll(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/memories/" || r.URL.Query().Get("user_id") != "Matt" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":       "m1",
				"memory":   "Has a severe peanut allergy",
				"user_id":  "Matt",
				"metadata": map[string]string{"type": "stable", "topic": "food"},
			},
			{
				"id":     "m2",
				"memory": "Loves thriller movies",
			},
			{
				"id":     "m3",
				"memory": "", // processed to nothing, dropped
			},
		})
	})

	records, err := client.FetchAll(context.Background(), "Matt")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Topic != memory.TopicFood || records[0].Kind != memory.KindStable {
		t.Errorf("metadata mapping wrong: %+v", records[0])
	}
	// No metadata: kind defaults to stable, topic comes from the text.
	if records[1].Topic != memory.TopicMovies {
		t.Errorf("expected inferred movies topic, got %q", records[1].Topic)
	}
	if records[1].Kind != memory.KindStable {
		t.Errorf("expected default stable kind, got %q", records[1].Kind)
	}
	if records[1].UserID != "Matt" {
		t.Errorf("expected user fallback, got %q", records[1].UserID)
	}
}

func TestClient_Search(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/memories/search/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "m1", "memory": "Loves sushi dinners", "score": 0.9, "metadata": map[string]string{"topic": "food"}},
			{"id": "m2", "memory": "Plays guitar in a band", "score": 0.8, "metadata": map[string]string{"topic": "music"}},
			{"id": "m3", "memory": "Enjoys italian restaurants", "score": 0.2, "metadata": map[string]string{"topic": "food"}},
		})
	})

	results, err := client.Search(context.Background(), memory.Query{
		UserID:         "Matt",
		Text:           "dinner plans",
		Topic:          memory.TopicFood,
		ScoreThreshold: 0.5,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// The music record fails the topic filter and the low-score record
	// fails the threshold; both are dropped client-side.
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Record.Text != "Loves sushi dinners" || results[0].Score != 0.9 {
		t.Errorf("unexpected result %+v", results[0])
	}
}

func TestClient_SearchOverfetchesForFilters(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Limit int `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		// A topic filter runs client-side, so the API request must ask for
		// more than the caller's limit.
		if req.Limit != 6 {
			t.Errorf("limit sent = %d, want 6", req.Limit)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "m1", "memory": "plays guitar", "score": 0.95, "metadata": map[string]string{"topic": "music"}},
			{"id": "m2", "memory": "loves sushi", "score": 0.9, "metadata": map[string]string{"topic": "food"}},
			{"id": "m3", "memory": "loves jazz", "score": 0.85, "metadata": map[string]string{"topic": "music"}},
			{"id": "m4", "memory": "eats vegetarian", "score": 0.8, "metadata": map[string]string{"topic": "food"}},
		})
	})

	results, err := client.Search(context.Background(), memory.Query{
		UserID: "Matt",
		Text:   "preferences",
		Topic:  memory.TopicFood,
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// Without the over-fetch the two music records would crowd out the
	// second food record.
	if len(results) != 2 {
		t.Fatalf("expected the limit filled after filtering, got %d", len(results))
	}
	if results[0].Record.Text != "loves sushi" || results[1].Record.Text != "eats vegetarian" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestClient_SearchLimit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "m1", "memory": "a fact", "score": 0.9},
			{"id": "m2", "memory": "another fact", "score": 0.8},
		})
	})

	results, err := client.Search(context.Background(), memory.Query{UserID: "Matt", Text: "facts", Limit: 1})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected limit to cap results, got %d", len(results))
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	if _, err := client.FetchAll(context.Background(), "Matt"); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}
