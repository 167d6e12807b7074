package memory

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// preferenceSeparator joins matching record texts into one preference field.
const preferenceSeparator = "; "

// DomainPrefs holds the formatted preferences for one requested domain.
// Absence of matches yields an empty string, never a missing field, so
// downstream consumers need not null-check a domain they asked for.
type DomainPrefs struct {
	Stable     string `json:"stable_preferences"`
	Contextual string `json:"contextual_preferences"`
}

// Profile is the per-query participant profile. It is built fresh on every
// call and never persisted; Domains contains exactly the requested domains.
type Profile struct {
	UserID       string                 `json:"user_id"`
	StableTraits string                 `json:"stable_traits"`
	Domains      map[Domain]DomainPrefs `json:"domains"`
}

// AssemblerConfig tunes profile assembly.
type AssemblerConfig struct {
	// StableTTL bounds how long a cached stable fragment is served.
	// Default: 5 minutes.
	StableTTL time.Duration

	// Limit caps results per individual query. Default: 10.
	Limit int

	// ScoreThreshold is passed through to every search. Zero disables it.
	ScoreThreshold float32

	// TagVectors enables multi-vector blending on every search. Only
	// meaningful for index-backed assembly.
	TagVectors bool
}

// DefaultAssemblerConfig returns the defaults used when nil is passed to
// NewAssembler.
var DefaultAssemblerConfig = &AssemblerConfig{
	StableTTL: 5 * time.Minute,
	Limit:     10,
}

// Assembler builds participant profiles by blending multiple searches
// against a pluggable backend with time-bounded caching of the stable
// fragment. It owns the only process-wide profile cache; nothing else
// mutates it.
type Assembler struct {
	backend Searcher
	cache   *TTLCache[[]SearchResult]
	cfg     *AssemblerConfig
}

// NewAssembler creates an assembler over the given backend. A nil config
// selects DefaultAssemblerConfig.
func NewAssembler(backend Searcher, cfg *AssemblerConfig) *Assembler {
	if cfg == nil {
		cfg = DefaultAssemblerConfig
	}
	c := *cfg
	if c.StableTTL <= 0 {
		c.StableTTL = DefaultAssemblerConfig.StableTTL
	}
	if c.Limit <= 0 {
		c.Limit = DefaultAssemblerConfig.Limit
	}
	return &Assembler{
		backend: backend,
		cache:   NewTTLCache[[]SearchResult](),
		cfg:     &c,
	}
}

// Assemble builds the profile for one user. contextText is the live query
// context; domain scopes the result to one domain, or all three when empty.
//
// The stable fragment is cached per user. On a cache hit within TTL only the
// contextual query is issued; on a miss the per-domain stable queries and
// the contextual query run concurrently and the deduplicated stable result
// set is written back to the cache. The stable fan-out always covers all
// three domains so the cached fragment is complete regardless of which
// domain this particular call requested.
//
// A failing backend query degrades to empty fields for the affected part of
// the profile; it never propagates to the caller.
func (a *Assembler) Assemble(ctx context.Context, userID, contextText string, domain Domain) (*Profile, error) {
	requested := AllDomains()
	if domain != "" {
		requested = []Domain{domain}
	}

	cacheKey := userID + ":stable"
	stable, cached := a.cache.Get(cacheKey)

	var contextual []SearchResult
	stableParts := make([][]SearchResult, len(AllDomains()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contextual = a.search(gctx, Query{
			UserID:         userID,
			Text:           contextText,
			Kind:           KindContextual,
			Limit:          a.cfg.Limit,
			ScoreThreshold: a.cfg.ScoreThreshold,
			TagVectors:     a.cfg.TagVectors,
		})
		return nil
	})
	if !cached {
		for i, d := range AllDomains() {
			g.Go(func() error {
				stableParts[i] = a.search(gctx, Query{
					UserID:         userID,
					Text:           DomainQuery(d),
					Topic:          d.Topic(),
					Kind:           KindStable,
					Limit:          a.cfg.Limit,
					ScoreThreshold: a.cfg.ScoreThreshold,
					TagVectors:     a.cfg.TagVectors,
				})
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !cached {
		stable = dedupeByID(stableParts)
		a.cache.Set(cacheKey, stable, a.cfg.StableTTL)
	}
	contextual = dropStable(contextual)

	p := &Profile{
		UserID:       userID,
		StableTraits: joinTexts(stable, nil),
		Domains:      make(map[Domain]DomainPrefs, len(requested)),
	}
	for _, d := range requested {
		p.Domains[d] = DomainPrefs{
			Stable:     joinTexts(stable, &d),
			Contextual: joinTexts(contextual, &d),
		}
	}
	return p, nil
}

// search runs one backend query, absorbing collaborator failures: the
// profile favors availability of a partial result over a hard error.
func (a *Assembler) search(ctx context.Context, q Query) []SearchResult {
	results, err := a.backend.Search(ctx, q)
	if err != nil {
		log.Printf("[ASSEMBLER] search failed for user=%s kind=%s topic=%s: %v", q.UserID, q.Kind, q.Topic, err)
		return nil
	}
	return results
}

// dropStable removes stable records from a contextual result set. Backends
// that cannot filter on kind at query time return mixed results.
func dropStable(results []SearchResult) []SearchResult {
	out := results[:0]
	for _, r := range results {
		if r.Record.Kind != KindStable {
			out = append(out, r)
		}
	}
	return out
}

// dedupeByID flattens the per-domain stable results, keeping the first
// occurrence of each record ID. Parts are already score-ranked per query.
func dedupeByID(parts [][]SearchResult) []SearchResult {
	seen := make(map[string]bool)
	var out []SearchResult
	for _, part := range parts {
		for _, r := range part {
			if r.Record.ID != "" && seen[r.Record.ID] {
				continue
			}
			seen[r.Record.ID] = true
			out = append(out, r)
		}
	}
	return out
}

// joinTexts concatenates record texts with the fixed separator, optionally
// restricted to one domain. No matches yields "".
func joinTexts(results []SearchResult, d *Domain) string {
	var out string
	for _, r := range results {
		if d != nil && !MatchesDomain(r.Record, *d) {
			continue
		}
		if out != "" {
			out += preferenceSeparator
		}
		out += r.Record.Text
	}
	return out
}
