package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/preflect/memsync/memory"
	"github.com/preflect/memsync/memory/index/remote"
)

func TestClient_Upsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/add_memory" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			UserID string   `json:"user_id"`
			Text   string   `json:"text"`
			Topic  string   `json:"topic"`
			Type   string   `json:"type"`
			Tags   []string `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.UserID != "Matt" || req.Text != "loves sushi" || req.Topic != "food" || req.Type != "stable" {
			t.Errorf("unexpected body %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "stored"})
	}))
	defer srv.Close()

	c := remote.New(srv.URL, 0)
	err := c.Upsert(context.Background(), memory.Record{
		UserID: "Matt",
		Text:   "loves sushi",
		Topic:  memory.TopicFood,
		Kind:   memory.KindStable,
		Tags:   []string{"food preference"},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestClient_SearchMapsTopicToDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			UserID string `json:"user_id"`
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		// The wire format takes a domain; a food-topic query travels as
		// places.
		if req.Domain != "places" {
			t.Errorf("domain = %q, want places", req.Domain)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"memories": []map[string]any{
				{"text": "loves sushi", "topic": "food", "type": "stable", "score": 0.9, "tags": []string{"food preference"}},
			},
		})
	}))
	defer srv.Close()

	c := remote.New(srv.URL, 0)
	results, err := c.Search(context.Background(), memory.Query{
		UserID: "Matt",
		Text:   "dinner",
		Topic:  memory.TopicFood,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Record.Text != "loves sushi" || r.Record.Topic != memory.TopicFood || r.Score != 0.9 {
		t.Errorf("unexpected result %+v", r)
	}
	if r.Record.ID == "" {
		t.Error("expected a derived record ID")
	}
}

func TestClient_ListUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/list_users" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{
				{"user_id": "Matt", "memory_count": 3},
			},
		})
	}))
	defer srv.Close()

	c := remote.New(srv.URL, 0)
	stats, err := c.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(stats) != 1 || stats[0].UserID != "Matt" || stats[0].Records != 3 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := remote.New(srv.URL, 0)
	if err := c.Upsert(context.Background(), memory.Record{UserID: "Matt", Text: "x"}); err == nil {
		t.Fatal("expected error on 500 response")
	}
	if _, err := c.ListUsers(context.Background()); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
