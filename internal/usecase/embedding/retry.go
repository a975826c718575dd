package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
)

const baseBackoff = 500 * time.Millisecond

// RetryingEmbedder retries transient provider failures with exponential
// backoff. Permanent failures (4xx other than 429) are returned immediately.
// Retrying is safe because embedding is idempotent: the same text always
// maps to the same vector.
type RetryingEmbedder struct {
	inner      domain.Embedder
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRetryingEmbedder creates a retrying decorator. maxRetries is the number
// of additional attempts after the first one; 0 disables retrying.
func NewRetryingEmbedder(inner domain.Embedder, maxRetries int, logger *zap.Logger) *RetryingEmbedder {
	return &RetryingEmbedder{
		inner:      inner,
		maxRetries: maxRetries,
		backoff:    baseBackoff,
		logger:     logger,
	}
}

// Embed implements domain.Embedder with bounded retries.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var result domain.EmbeddingResult
	err := r.retry(ctx, func() error {
		var innerErr error
		result, innerErr = r.inner.Embed(ctx, text)
		return innerErr
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return result, nil
}

// BatchEmbed implements domain.BatchEmbedder with bounded retries. The whole
// batch is retried as a unit; partial results from a failed attempt are
// discarded.
func (r *RetryingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var result domain.BatchEmbeddingResult
	err := r.retry(ctx, func() error {
		var innerErr error
		if be, ok := r.inner.(domain.BatchEmbedder); ok {
			result, innerErr = be.BatchEmbed(ctx, texts)
		} else {
			result, innerErr = domain.BatchFallback(ctx, r.inner, texts)
		}
		return innerErr
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return result, nil
}

func (r *RetryingEmbedder) retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt >= r.maxRetries || !domain.IsRetryable(err) {
			return err
		}

		delay := r.backoff << attempt
		r.logger.Warn("Transient embedding failure, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}
