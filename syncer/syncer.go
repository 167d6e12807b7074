// Package syncer pulls records from the authoritative source and mirrors
// them into the local vector index. Sync is per-user, guarded so at most
// one pass per user runs at a time, and tolerant of individual record
// failures.
package syncer

import (
	"context"
	"fmt"
	"log"

	"github.com/preflect/memsync/memory"
)

// Result summarizes one sync pass for a user.
type Result struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
}

// Coordinator copies a user's records from the source into the index,
// tagging each record on the way through.
type Coordinator struct {
	source memory.Source
	index  memory.Index
	tagger memory.Tagger

	inFlight keySet
}

// NewCoordinator wires a sync coordinator. The tagger may be nil, in which
// case records are mirrored without tag vectors.
func NewCoordinator(source memory.Source, index memory.Index, tagger memory.Tagger) *Coordinator {
	return &Coordinator{source: source, index: index, tagger: tagger}
}

// SyncUser fetches every record the source holds for the user and upserts
// each into the index. A failing record is counted and skipped, never
// aborting the pass. If a sync for the same user is already running, the
// call returns a zero Result immediately.
func (c *Coordinator) SyncUser(ctx context.Context, userID string) (Result, error) {
	if !c.inFlight.acquire(userID) {
		log.Printf("[SYNC] user %s already syncing, skipping", userID)
		return Result{}, nil
	}
	defer c.inFlight.release(userID)

	records, err := c.source.FetchAll(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch records for %s: %w", userID, err)
	}
	if len(records) == 0 {
		return Result{}, nil
	}

	c.applyTags(ctx, records)

	var res Result
	for _, rec := range records {
		if err := c.index.Upsert(ctx, rec); err != nil {
			log.Printf("[SYNC] upsert %s for %s: %v", rec.ID, userID, err)
			res.Errors++
			continue
		}
		res.Synced++
	}
	return res, nil
}

// SyncAll runs SyncUser for each user in turn and collects the results.
// A failing user is logged and skipped.
func (c *Coordinator) SyncAll(ctx context.Context, userIDs []string) map[string]Result {
	results := make(map[string]Result, len(userIDs))
	for _, id := range userIDs {
		res, err := c.SyncUser(ctx, id)
		if err != nil {
			log.Printf("[SYNC] sync %s: %v", id, err)
			continue
		}
		results[id] = res
	}
	return results
}

// applyTags fills in missing tags via the tagger in one batch call.
// Records that already carry tags keep them.
func (c *Coordinator) applyTags(ctx context.Context, records []memory.Record) {
	if c.tagger == nil {
		return
	}
	var texts []string
	var idx []int
	for i, rec := range records {
		if len(rec.Tags) == 0 {
			texts = append(texts, rec.Text)
			idx = append(idx, i)
		}
	}
	if len(texts) == 0 {
		return
	}
	tags, err := c.tagger.TagBatch(ctx, texts)
	if err != nil || len(tags) != len(texts) {
		log.Printf("[SYNC] batch tagging failed, mirroring without tags: %v", err)
		return
	}
	for i, pos := range idx {
		records[pos].Tags = tags[i]
	}
}
