package upload

import (
	"context"

	"github.com/tablechat/tablechat/internal/domain"
)

// Ingestor parses uploaded files into records.
type Ingestor interface {
	Ingest(ctx context.Context, filename string, data []byte) ([]domain.Record, error)
}

// Chunker splits records into chunks.
type Chunker interface {
	Chunk(records []domain.Record) ([]domain.Chunk, error)
}

// Embedder vectorizes chunk texts.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// IndexFactory creates an empty vector index for a new session.
type IndexFactory func() (domain.Index, error)

// Registry registers fully built sessions.
type Registry interface {
	Put(index domain.Index, chunkCount int, filename string) domain.Session
}
