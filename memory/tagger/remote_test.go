package tagger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/preflect/memsync/memory/tagger"
)

func TestRemote_Tag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Text != "allergic to peanuts" {
			t.Errorf("unexpected text %q", req.Text)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"text":        req.Text,
			"classifiers": []string{"dietary restriction", "health condition", "extra ignored"},
		})
	}))
	defer srv.Close()

	r := tagger.NewRemote(srv.URL, 0)
	tags, err := r.Tag(context.Background(), "allergic to peanuts")
	if err != nil {
		t.Fatalf("Tag failed: %v", err)
	}
	if len(tags) != 2 || tags[0] != "dietary restriction" || tags[1] != "health condition" {
		t.Fatalf("unexpected tags %v", tags)
	}
}

func TestRemote_TagRejectsUnusableOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"classifiers": []string{"", "what kind of food does the user like?"},
		})
	}))
	defer srv.Close()

	r := tagger.NewRemote(srv.URL, 0)
	if _, err := r.Tag(context.Background(), "whatever"); err == nil {
		t.Fatal("expected error for unusable classifier output")
	}
}

func TestRemote_TagBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify_batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		results := make([]map[string]any, len(req.Texts))
		for i, text := range req.Texts {
			results[i] = map[string]any{"text": text, "classifiers": []string{"tag for " + text}}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	r := tagger.NewRemote(srv.URL, 0)
	tags, err := r.TagBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("TagBatch failed: %v", err)
	}
	if len(tags) != 2 || tags[0][0] != "tag for a" || tags[1][0] != "tag for b" {
		t.Fatalf("unexpected tags %v", tags)
	}
}

func TestRemote_TagBatchSizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"text": "a", "classifiers": []string{"x"}}},
		})
	}))
	defer srv.Close()

	r := tagger.NewRemote(srv.URL, 0)
	if _, err := r.TagBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error on batch size mismatch")
	}
}

func TestRemote_TagServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := tagger.NewRemote(srv.URL, 0)
	if _, err := r.Tag(context.Background(), "text"); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestRemote_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := tagger.NewRemote(srv.URL, 0)
	if !r.Healthy(context.Background()) {
		t.Error("expected healthy against live server")
	}

	srv.Close()
	if r.Healthy(context.Background()) {
		t.Error("expected unhealthy against closed server")
	}
}
