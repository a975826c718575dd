package domain

import "context"

// Index is the per-session vector index contract: stores chunks with their
// vectors and answers top-k nearest-neighbor queries.
//
// Search returns results ordered by descending similarity; equal scores are
// broken by chunk insertion order (Chunk.Seq).
type Index interface {
	Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int) ([]RetrievedChunk, error)
	Len() int
}
