// Package chromem implements the vector index on chromem-go, a pure Go
// embedded vector database.
//
// Multi-vector records are stored as one primary document per record plus
// one satellite document per semantic tag, all carrying the same payload.
// A search collapses satellites onto their base record, keeping the maximum
// similarity across the record's vectors, which is the blending rule: a
// record matches if either its raw text or one of its tags is close to the
// query.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/preflect/memsync/memory"
)

const (
	slotText = "text"
	slotTag  = "tag"

	tagSeparator = "|"
)

// Index is the chromem-backed vector index. Each user gets their own
// collection for namespace isolation.
type Index struct {
	db       *chromem.DB
	embedder memory.Embedder

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	records     map[string]map[string]bool // userID -> base record IDs
}

// New creates an in-memory index using the given embedder for both records
// and queries.
func New(embedder memory.Embedder) (*Index, error) {
	return &Index{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
		records:     make(map[string]map[string]bool),
	}, nil
}

// getOrCreateCollection returns the collection for a user, creating it on
// first use.
func (ix *Index) getOrCreateCollection(userID string) (*chromem.Collection, error) {
	ix.mu.RLock()
	col, exists := ix.collections[userID]
	ix.mu.RUnlock()
	if exists {
		return col, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := ix.collections[userID]; exists {
		return col, nil
	}

	col, err := ix.db.CreateCollection(
		fmt.Sprintf("user_%s", userID),
		nil, // no collection metadata
		nil, // embeddings are provided explicitly
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	ix.collections[userID] = col
	ix.records[userID] = make(map[string]bool)
	return col, nil
}

// getCollection returns the user's collection without creating one.
func (ix *Index) getCollection(userID string) *chromem.Collection {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.collections[userID]
}

// Upsert stores a record with one primary embedding and one embedding per
// tag. Re-adding a document ID overwrites it, so upserts are idempotent for
// content-derived record IDs.
func (ix *Index) Upsert(ctx context.Context, rec memory.Record) error {
	if rec.UserID == "" || rec.Text == "" {
		return fmt.Errorf("record requires user_id and text")
	}
	if rec.ID == "" {
		rec.ID = memory.NewRecordID(rec.UserID, rec.Text, rec.Topic)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	col, err := ix.getOrCreateCollection(rec.UserID)
	if err != nil {
		return err
	}

	// Replace, never merge: a re-upsert with fewer tags must not leave the
	// removed tag's satellite document behind, or the record keeps matching
	// through a tag it no longer has.
	ix.mu.RLock()
	known := ix.records[rec.UserID][rec.ID]
	ix.mu.RUnlock()
	if known {
		if err := col.Delete(ctx, map[string]string{"base_id": rec.ID}, nil); err != nil {
			return fmt.Errorf("delete stale documents for %s: %w", rec.ID, err)
		}
	}

	meta := map[string]string{
		"base_id":    rec.ID,
		"user_id":    rec.UserID,
		"text":       rec.Text,
		"topic":      string(rec.Topic),
		"kind":       string(rec.Kind),
		"tags":       strings.Join(rec.Tags, tagSeparator),
		"created_at": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	primary, err := ix.embedder.Embed(ctx, rec.Text)
	if err != nil {
		return fmt.Errorf("embed text: %w", err)
	}
	if err := ix.addDocument(ctx, col, rec.ID, slotText, rec.Text, primary, meta); err != nil {
		return err
	}

	for i, tag := range rec.Tags {
		if i >= 2 {
			break
		}
		vec, err := ix.embedder.Embed(ctx, tag)
		if err != nil {
			return fmt.Errorf("embed tag %q: %w", tag, err)
		}
		id := rec.ID + "#tag" + strconv.Itoa(i)
		if err := ix.addDocument(ctx, col, id, slotTag, tag, vec, meta); err != nil {
			return err
		}
	}

	ix.mu.Lock()
	ix.records[rec.UserID][rec.ID] = true
	ix.mu.Unlock()
	return nil
}

func (ix *Index) addDocument(ctx context.Context, col *chromem.Collection, id, slot, content string, embedding []float32, meta map[string]string) error {
	docMeta := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		docMeta[k] = v
	}
	docMeta["slot"] = slot

	err := col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  docMeta,
	})
	if err != nil {
		return fmt.Errorf("add document %s: %w", id, err)
	}
	return nil
}

// Search embeds the query text and scores candidates by maximum similarity
// across each record's vectors, filtered by user (and optionally topic and
// kind), with low-confidence matches discarded before ranking. Results are
// ranked highest score first, ties broken by most recent creation time.
func (ix *Index) Search(ctx context.Context, q memory.Query) ([]memory.SearchResult, error) {
	if q.UserID == "" {
		return nil, fmt.Errorf("search requires user_id")
	}
	col := ix.getCollection(q.UserID)
	if col == nil {
		return nil, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	where := map[string]string{"user_id": q.UserID}
	if q.Topic != "" {
		where["topic"] = string(q.Topic)
	}
	if q.Kind != "" {
		where["kind"] = string(q.Kind)
	}

	// Without tag vectors only primary documents participate; with them we
	// over-fetch so satellites can be collapsed onto their base records.
	candidates := limit
	if q.TagVectors {
		candidates = limit * 3
	} else {
		where["slot"] = slotText
	}
	if max := col.Count(); candidates > max {
		candidates = max
	}
	if candidates == 0 {
		return nil, nil
	}

	queryVec, err := ix.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// chromem rejects nResults larger than the filtered candidate set, and
	// the filtered size is not observable up front. Retry with smaller
	// limits until the query fits; hitting 1 means the filter matched
	// nothing.
	var raw []chromem.Result
	for n := candidates; n >= 1; n-- {
		raw, err = col.QueryEmbedding(ctx, queryVec, n, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query collection: %w", err)
	}

	best := make(map[string]memory.SearchResult)
	for _, res := range raw {
		if q.ScoreThreshold > 0 && res.Similarity < q.ScoreThreshold {
			continue
		}
		rec, err := recordFromMetadata(res.Metadata)
		if err != nil {
			log.Printf("[INDEX] skipping malformed document %s: %v", res.ID, err)
			continue
		}
		if prev, ok := best[rec.ID]; !ok || res.Similarity > prev.Score {
			best[rec.ID] = memory.SearchResult{Record: rec, Score: res.Similarity}
		}
	}

	out := make([]memory.SearchResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Record.CreatedAt.After(out[j].Record.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListUsers enumerates known users with their record counts, sorted by
// user ID for stable output.
func (ix *Index) ListUsers(_ context.Context) ([]memory.UserStat, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := make([]memory.UserStat, 0, len(ix.records))
	for userID, ids := range ix.records {
		stats = append(stats, memory.UserStat{UserID: userID, Records: len(ids)})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].UserID < stats[j].UserID })
	return stats, nil
}

// Close releases resources. chromem keeps everything in memory; nothing to
// do.
func (ix *Index) Close() error {
	return nil
}

// isInsufficientDocsError matches chromem's over-ask error.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "nResults must be") || strings.Contains(s, "number of documents")
}

// recordFromMetadata rebuilds a record from a document's payload. Satellite
// documents carry the full record payload, so any of a record's documents
// reconstructs it identically.
func recordFromMetadata(meta map[string]string) (memory.Record, error) {
	id := meta["base_id"]
	if id == "" {
		return memory.Record{}, fmt.Errorf("missing base_id")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, meta["created_at"])
	if err != nil {
		return memory.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	var tags []string
	if meta["tags"] != "" {
		tags = strings.Split(meta["tags"], tagSeparator)
	}
	return memory.Record{
		ID:        id,
		UserID:    meta["user_id"],
		Text:      meta["text"],
		Topic:     memory.Topic(meta["topic"]),
		Kind:      memory.Kind(meta["kind"]),
		Tags:      tags,
		CreatedAt: createdAt,
	}, nil
}
