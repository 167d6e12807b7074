package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topic partitions records by subject area. It is derived from source
// metadata when available and inferred from the text otherwise.
type Topic string

const (
	TopicFood   Topic = "food"
	TopicMovies Topic = "movies"
	TopicMusic  Topic = "music"
	TopicNone   Topic = "none"
)

// Kind separates long-lived traits from query-time-relevant facts.
type Kind string

const (
	// KindStable marks a long-lived trait, cached and reused across queries.
	KindStable Kind = "stable"

	// KindContextual marks a fact relevant to the current query, always
	// freshly fetched.
	KindContextual Kind = "contextual"
)

// Record is a single memory. The source-of-truth copy is canonical; the
// vector-index copy mirrors its text as of the last successful sync.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Topic     Topic     `json:"topic"`
	Kind      Kind      `json:"type"`
	Tags      []string  `json:"tags,omitempty"` // at most two short semantic tags
	CreatedAt time.Time `json:"created_at"`
}

// recordNamespace is the UUIDv5 namespace for content-derived record IDs.
var recordNamespace = uuid.MustParse("7a5e3f64-1c2d-4b8a-9f06-2d8c1d4e9b21")

// NewRecordID derives a deterministic ID from the record's identity fields.
// Re-upserting the same (user, text, topic) triple during resync overwrites
// the existing point instead of accumulating duplicates.
func NewRecordID(userID, text string, topic Topic) string {
	return uuid.NewSHA1(recordNamespace, []byte(userID+":"+text+":"+string(topic))).String()
}

// SearchResult pairs a record with its similarity score.
type SearchResult struct {
	Record Record  `json:"record"`
	Score  float32 `json:"score"`
}

// Query describes a similarity search. Zero values mean "no filter": an
// empty Topic or Kind leaves that dimension unconstrained, a zero
// ScoreThreshold disables threshold filtering.
type Query struct {
	UserID string
	Text   string
	Topic  Topic
	Kind   Kind
	Limit  int

	// ScoreThreshold discards matches scoring below it before ranking.
	ScoreThreshold float32

	// TagVectors enables blending across the record's tag embeddings in
	// addition to the primary text embedding. A record then matches if
	// either its raw text or one of its semantic tags is close to the
	// query, scored by the maximum similarity across vectors.
	TagVectors bool
}

// Source is the authoritative memory store. Submit acknowledges receipt
// only; the service processes input asynchronously, so there is no bound on
// when (or whether) a submitted text becomes a fetchable record. Mirroring
// current source state into the index is the syncer's reconcile contract,
// not a property of Submit.
type Source interface {
	// Submit sends raw conversational input for asynchronous processing.
	Submit(ctx context.Context, userID, text string) error

	// FetchAll returns every processed record for the user.
	FetchAll(ctx context.Context, userID string) ([]Record, error)

	// Search runs a filtered semantic search against the source.
	Search(ctx context.Context, q Query) ([]SearchResult, error)
}

// UserStat reports how many records the index holds for one user.
type UserStat struct {
	UserID  string `json:"user_id"`
	Records int    `json:"memory_count"`
}

// Index is the local vector store. Upsert stores one primary embedding for
// the record text and one additional embedding per tag (at most two).
type Index interface {
	Upsert(ctx context.Context, rec Record) error
	Search(ctx context.Context, q Query) ([]SearchResult, error)
	ListUsers(ctx context.Context) ([]UserStat, error)
	Close() error
}

// Tagger produces at most two short semantic tags for a text. The composed
// tagger used at call sites never fails: delegated implementations may
// return errors, but the failover decorator absorbs them and substitutes the
// heuristic result, so callers observe only a latency/quality difference.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]string, error)

	// TagBatch tags n texts and returns n tag lists preserving input order.
	// The bulk-sync path uses it to amortize external-call overhead.
	TagBatch(ctx context.Context, texts []string) ([][]string, error)
}

// Embedder converts text to vector embeddings. The model and its numeric
// output are opaque to the engine.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Searcher is the query side shared by both stores. Index and Source both
// satisfy it, which is what lets the profile assembler run against either
// backend.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]SearchResult, error)
}
