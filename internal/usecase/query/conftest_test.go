package query

import (
	"context"
	"testing"

	"github.com/tablechat/tablechat/internal/domain"
)

type mockRegistry struct {
	session  domain.Session
	err      error
	getCalls int
}

func (m *mockRegistry) Get(_ string) (domain.Session, error) {
	m.getCalls++
	return m.session, m.err
}

type mockEmbedder struct {
	vec      []float32
	err      error
	lastText string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.lastText = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockIndex struct {
	results   []domain.RetrievedChunk
	err       error
	lastK     int
	lastQuery []float32
}

func (m *mockIndex) Add(_ context.Context, _ []domain.Chunk, _ [][]float32) error { return nil }

func (m *mockIndex) Search(_ context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	m.lastQuery = vector
	m.lastK = k
	return m.results, m.err
}

func (m *mockIndex) Len() int { return len(m.results) }

type mockChat struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
	lastTemp   float32
}

func (m *mockChat) Complete(_ context.Context, system, user string, temperature float32) (string, error) {
	m.lastSystem = system
	m.lastUser = user
	m.lastTemp = temperature
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

type fixture struct {
	registry *mockRegistry
	embedder *mockEmbedder
	index    *mockIndex
	chat     *mockChat
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx := &mockIndex{
		results: []domain.RetrievedChunk{
			{Chunk: domain.Chunk{Text: "name: Widget\nprice: 10", Source: "csv", Row: 1, Seq: 0}, Score: 0.9},
			{Chunk: domain.Chunk{Text: "name: Gadget\nprice: 25", Source: "csv", Row: 2, Seq: 1}, Score: 0.7},
		},
	}
	f := &fixture{
		registry: &mockRegistry{session: domain.Session{ID: "room-1", Index: idx, ChunkCount: 2}},
		embedder: &mockEmbedder{vec: []float32{0.1, 0.2}},
		index:    idx,
		chat:     &mockChat{answer: "Widget costs 10."},
	}
	f.svc = New(f.registry, f.embedder, f.chat, 4, 0.3)
	return f
}
