// Package tagger generates short semantic tags for memory texts. Tags give
// the vector index a second, non-lexical matching signal: a record can match
// a query through a tag embedding even when its raw text does not.
//
// Three implementations exist: a fast local heuristic, an HTTP client for
// the external classifier service, and an LLM-backed tagger. Production
// wiring composes a delegate with the heuristic through Failover so that
// callers never observe a tagging failure.
package tagger

import (
	"context"
	"strings"
)

// maxTags caps the tags attached to one record. The index stores one
// embedding per tag, so this bounds upsert cost.
const maxTags = 2

// DefaultTag is returned when no heuristic class matches.
const DefaultTag = "personal preference"

// tagClass is one heuristic class. Declaration order is the priority order
// used to break score ties.
type tagClass struct {
	name     string
	keywords []string
}

var tagClasses = []tagClass{
	{"dietary restriction", []string{"allergy", "allergic", "vegetarian", "vegan", "gluten", "kosher", "halal", "intolerant", "intolerance"}},
	{"food preference", []string{"food", "eat", "eating", "meal", "dinner", "lunch", "breakfast", "restaurant", "dish", "snack"}},
	{"cuisine type", []string{"cuisine", "italian", "japanese", "mexican", "chinese", "indian", "thai", "french", "sushi", "pizza", "pasta"}},
	{"movie taste", []string{"movie", "film", "cinema", "director", "actor", "documentary", "thriller", "comedy"}},
	{"music taste", []string{"music", "song", "artist", "album", "band", "concert", "playlist", "guitar"}},
	{"health condition", []string{"health", "condition", "medical", "diabetic", "severe"}},
	{"preference polarity", []string{"love", "hate", "favorite", "prefer", "dislike", "enjoy", "avoid"}},
}

// Heuristic tags by keyword scoring against the fixed class vocabulary. It
// is cheap, deterministic, and never fails, which makes it both the default
// tagger and the fallback behind every delegated one.
type Heuristic struct{}

// NewHeuristic creates the keyword tagger.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Tag scores each class by keyword match count and returns the top classes,
// ties broken by class priority order. No match yields the generic default.
func (h *Heuristic) Tag(_ context.Context, text string) ([]string, error) {
	lower := strings.ToLower(text)

	type scored struct {
		idx  int
		hits int
	}
	var matches []scored
	for i, c := range tagClasses {
		hits := 0
		for _, w := range c.keywords {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{idx: i, hits: hits})
		}
	}

	if len(matches) == 0 {
		return []string{DefaultTag}, nil
	}

	// Insertion sort: hits descending, class priority ascending. The class
	// list is small and matches are already in priority order.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].hits > matches[j-1].hits; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	n := len(matches)
	if n > maxTags {
		n = maxTags
	}
	tags := make([]string, 0, n)
	for _, m := range matches[:n] {
		tags = append(tags, tagClasses[m.idx].name)
	}
	return tags, nil
}

// TagBatch tags each text independently, preserving order.
func (h *Heuristic) TagBatch(ctx context.Context, texts []string) ([][]string, error) {
	out := make([][]string, len(texts))
	for i, t := range texts {
		tags, _ := h.Tag(ctx, t)
		out[i] = tags
	}
	return out, nil
}

// clampTags normalizes a delegated tagger's output: trimmed, non-empty,
// at most maxTags entries.
func clampTags(raw []string) []string {
	var out []string
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || len(t) >= 50 || strings.Contains(t, "?") {
			continue
		}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
