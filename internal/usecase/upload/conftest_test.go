package upload

import (
	"context"
	"testing"

	"github.com/tablechat/tablechat/internal/domain"
)

type mockIngestor struct {
	records []domain.Record
	err     error
}

func (m *mockIngestor) Ingest(_ context.Context, _ string, _ []byte) ([]domain.Record, error) {
	return m.records, m.err
}

type mockChunker struct {
	chunks []domain.Chunk
	err    error
}

func (m *mockChunker) Chunk(_ []domain.Record) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

type mockEmbedder struct {
	err        error
	dims       int
	batchCalls int
	batchSizes []int
	short      bool // return one vector fewer than requested
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	n := len(texts)
	if m.short && n > 0 {
		n--
	}
	embeddings := make([][]float32, n)
	for i := range embeddings {
		embeddings[i] = make([]float32, m.dims)
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

type mockIndex struct {
	added  int
	addErr error
}

func (m *mockIndex) Add(_ context.Context, chunks []domain.Chunk, _ [][]float32) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added += len(chunks)
	return nil
}

func (m *mockIndex) Search(_ context.Context, _ []float32, _ int) ([]domain.RetrievedChunk, error) {
	return nil, nil
}

func (m *mockIndex) Len() int { return m.added }

type mockRegistry struct {
	putCalls int
	last     domain.Session
}

func (m *mockRegistry) Put(index domain.Index, chunkCount int, filename string) domain.Session {
	m.putCalls++
	m.last = domain.Session{
		ID:         "room-1",
		Index:      index,
		ChunkCount: chunkCount,
		Filename:   filename,
	}
	return m.last
}

type fixture struct {
	ingestor *mockIngestor
	chunker  *mockChunker
	embedder *mockEmbedder
	index    *mockIndex
	registry *mockRegistry
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ingestor: &mockIngestor{records: []domain.Record{{Text: "row", Source: "csv", Row: 1}}},
		chunker:  &mockChunker{chunks: []domain.Chunk{{Text: "row", Source: "csv", Row: 1, Seq: 0}}},
		embedder: &mockEmbedder{dims: 3},
		index:    &mockIndex{},
		registry: &mockRegistry{},
	}
	f.svc = New(f.ingestor, f.chunker, f.embedder, func() (domain.Index, error) { return f.index, nil }, f.registry)
	return f
}

func makeChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{Text: "chunk", Seq: i}
	}
	return chunks
}
