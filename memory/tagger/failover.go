package tagger

import (
	"context"
	"log"
	"time"

	"github.com/preflect/memsync/memory"
)

// Failover composes a delegated tagger with the heuristic one. The delegate
// runs under a bounded timeout; any error, timeout, or empty result is
// absorbed and the fallback answers instead. Callers never observe a
// tagging failure through this type, only a latency/quality difference.
type Failover struct {
	delegate memory.Tagger
	fallback memory.Tagger
	timeout  time.Duration
}

// NewFailover wraps delegate with fallback. A zero timeout selects
// DefaultRemoteTimeout.
func NewFailover(delegate, fallback memory.Tagger, timeout time.Duration) *Failover {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Failover{delegate: delegate, fallback: fallback, timeout: timeout}
}

// Tag tries the delegate first.
func (f *Failover) Tag(ctx context.Context, text string) ([]string, error) {
	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	tags, err := f.delegate.Tag(dctx, text)
	if err == nil && len(tags) > 0 {
		return tags, nil
	}
	if err != nil {
		log.Printf("[TAGGER] delegate failed, using heuristic: %v", err)
	}
	return f.fallback.Tag(ctx, text)
}

// TagBatch tries the delegate first, requiring an order-preserving,
// length-matching answer.
func (f *Failover) TagBatch(ctx context.Context, texts []string) ([][]string, error) {
	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	tags, err := f.delegate.TagBatch(dctx, texts)
	if err == nil && len(tags) == len(texts) {
		return tags, nil
	}
	if err != nil {
		log.Printf("[TAGGER] delegate batch failed, using heuristic: %v", err)
	}
	return f.fallback.TagBatch(ctx, texts)
}
