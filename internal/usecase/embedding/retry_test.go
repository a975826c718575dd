package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
)

// transientErr marks itself retryable, like provider 429/5xx errors.
type transientErr struct{ msg string }

func (e *transientErr) Error() string   { return e.msg }
func (e *transientErr) Retryable() bool { return true }

type flakyEmbedder struct {
	failures int
	calls    int
	err      error
	result   domain.EmbeddingResult
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.EmbeddingResult{}, f.err
	}
	return f.result, nil
}

func (f *flakyEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.BatchEmbeddingResult{}, f.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = f.result.Embedding
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

func newTestRetrying(inner domain.Embedder, maxRetries int) *RetryingEmbedder {
	r := NewRetryingEmbedder(inner, maxRetries, zap.NewNop())
	r.backoff = time.Millisecond
	return r
}

func TestEmbed_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 2,
		err:      &transientErr{msg: "rate limited"},
		result:   domain.EmbeddingResult{Embedding: []float32{1, 2}},
	}
	r := newTestRetrying(inner, 3)

	res, err := r.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("unexpected result: %v", res)
	}
}

func TestEmbed_PermanentErrorNotRetried(t *testing.T) {
	wantErr := errors.New("invalid api key")
	inner := &flakyEmbedder{failures: 10, err: wantErr}
	r := newTestRetrying(inner, 3)

	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("permanent error must not be retried, got %d calls", inner.calls)
	}
}

func TestEmbed_RetriesExhausted(t *testing.T) {
	transient := &transientErr{msg: "server error"}
	inner := &flakyEmbedder{failures: 10, err: transient}
	r := newTestRetrying(inner, 2)

	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, transient) {
		t.Fatalf("expected transient error after exhaustion, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 1+2 attempts, got %d", inner.calls)
	}
}

func TestEmbed_ZeroRetriesDisablesRetrying(t *testing.T) {
	inner := &flakyEmbedder{failures: 1, err: &transientErr{msg: "rate limited"}}
	r := newTestRetrying(inner, 0)

	if _, err := r.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error with retries disabled")
	}
	if inner.calls != 1 {
		t.Errorf("expected single attempt, got %d", inner.calls)
	}
}

func TestEmbed_CanceledContextAbortsRetry(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, err: &transientErr{msg: "rate limited"}}
	r := newTestRetrying(inner, 5)
	r.backoff = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Embed(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected single attempt before abort, got %d", inner.calls)
	}
}

func TestBatchEmbed_RetriesWholeBatch(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 1,
		err:      &transientErr{msg: "server error"},
		result:   domain.EmbeddingResult{Embedding: []float32{1}},
	}
	r := newTestRetrying(inner, 2)

	res, err := r.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", inner.calls)
	}
	if len(res.Embeddings) != 3 {
		t.Errorf("expected 3 vectors, got %d", len(res.Embeddings))
	}
}
