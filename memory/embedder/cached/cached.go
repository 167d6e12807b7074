// Package cached wraps an embedder with a ristretto read-through cache.
// Resync re-embeds the same record texts every cycle and tag vocabularies
// repeat heavily across records, so the hit rate on the bulk-sync path is
// high.
package cached

import (
	"context"

	"github.com/dgraph-io/ristretto"

	"github.com/preflect/memsync/memory"
)

// DefaultMaxEntries bounds the cache size.
const DefaultMaxEntries = 10_000

// Embedder is a caching decorator around another embedder. Entries never
// expire: an embedding is a pure function of the text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache holding up to maxEntries vectors. Zero
// selects DefaultMaxEntries.
func New(inner memory.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector or delegates and caches the result.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, 1)
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases the cache's internal goroutines.
func (e *Embedder) Close() {
	e.cache.Close()
}
