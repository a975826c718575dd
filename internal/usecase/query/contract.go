package query

import (
	"context"

	"github.com/tablechat/tablechat/internal/domain"
)

// Registry looks up sessions by room identifier.
type Registry interface {
	Get(roomID string) (domain.Session, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ChatCompleter generates the grounded answer from a system+user exchange.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
}
