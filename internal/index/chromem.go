package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/tablechat/tablechat/internal/domain"
)

// Compile-time check: Index implements domain.Index.
var _ domain.Index = (*Index)(nil)

// Index is an in-memory vector index backed by a dedicated chromem-go
// collection. One index is built per upload and is read-only afterwards.
type Index struct {
	collection *chromem.Collection
}

// New creates an empty index.
func New() (*Index, error) {
	db := chromem.NewDB()

	// Embeddings are always supplied by the caller; the collection-level
	// embedding func must never be reached.
	collection, err := db.CreateCollection("chunks", nil, func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("index: embedding func must not be called, vectors are precomputed")
	})
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Index{collection: collection}, nil
}

// Add stores chunks with their precomputed vectors.
func (idx *Index) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        "chunk-" + strconv.Itoa(chunk.Seq),
			Content:   chunk.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				"source": chunk.Source,
				"row":    strconv.Itoa(chunk.Row),
				"seq":    strconv.Itoa(chunk.Seq),
			},
		}
	}

	if err := idx.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Search returns the top-k chunks by descending similarity. Equal scores are
// broken by insertion order. chromem guarantees neither a stable order nor
// which of several tied chunks enter its result set, so the whole collection
// is ranked here and truncated afterwards; a session index is small and
// bounded by the upload size cap.
func (idx *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	count := idx.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}

	results, err := idx.collection.QueryEmbedding(ctx, vector, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	retrieved := make([]domain.RetrievedChunk, 0, len(results))
	for _, res := range results {
		retrieved = append(retrieved, domain.RetrievedChunk{
			Chunk: domain.Chunk{
				Text:   res.Content,
				Source: res.Metadata["source"],
				Row:    atoi(res.Metadata["row"]),
				Seq:    atoi(res.Metadata["seq"]),
			},
			Score: res.Similarity,
		})
	}

	sort.SliceStable(retrieved, func(i, j int) bool {
		if retrieved[i].Score != retrieved[j].Score {
			return retrieved[i].Score > retrieved[j].Score
		}
		return retrieved[i].Chunk.Seq < retrieved[j].Chunk.Seq
	})

	if k > len(retrieved) {
		k = len(retrieved)
	}
	return retrieved[:k], nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	return idx.collection.Count()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
