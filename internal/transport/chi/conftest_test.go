package chi

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
	healthuc "github.com/tablechat/tablechat/internal/usecase/health"
	queryuc "github.com/tablechat/tablechat/internal/usecase/query"
	uploaduc "github.com/tablechat/tablechat/internal/usecase/upload"
)

// --- Pipeline mocks ---

type stubIngestor struct {
	records []domain.Record
	err     error
}

func (s *stubIngestor) Ingest(_ context.Context, _ string, _ []byte) ([]domain.Record, error) {
	return s.records, s.err
}

type stubChunker struct {
	chunks []domain.Chunk
	err    error
}

func (s *stubChunker) Chunk(_ []domain.Record) ([]domain.Chunk, error) {
	return s.chunks, s.err
}

type stubEmbedder struct{ err error }

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func (s *stubEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if s.err != nil {
		return domain.BatchEmbeddingResult{}, s.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range embeddings {
		embeddings[i] = []float32{0.1, 0.2}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

type stubIndex struct{ retrieved []domain.RetrievedChunk }

func (s *stubIndex) Add(_ context.Context, _ []domain.Chunk, _ [][]float32) error { return nil }
func (s *stubIndex) Search(_ context.Context, _ []float32, _ int) ([]domain.RetrievedChunk, error) {
	return s.retrieved, nil
}
func (s *stubIndex) Len() int { return len(s.retrieved) }

type stubRegistry struct {
	sessions map[string]domain.Session
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{sessions: make(map[string]domain.Session)}
}

func (s *stubRegistry) Put(index domain.Index, chunkCount int, filename string) domain.Session {
	session := domain.Session{ID: "room-test", Index: index, ChunkCount: chunkCount, Filename: filename}
	s.sessions[session.ID] = session
	return session
}

func (s *stubRegistry) Get(roomID string) (domain.Session, error) {
	session, ok := s.sessions[roomID]
	if !ok {
		return domain.Session{}, domain.ErrRoomNotFound
	}
	return session, nil
}

type stubChat struct {
	answer string
	err    error
}

func (s *stubChat) Complete(_ context.Context, _, _ string, _ float32) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

type stubProvider struct{ err error }

func (s *stubProvider) HealthCheck(_ context.Context) error { return s.err }

// --- Fixture ---

type fixture struct {
	ingestor *stubIngestor
	chunker  *stubChunker
	embedder *stubEmbedder
	registry *stubRegistry
	chat     *stubChat
	provider *stubProvider
	router   *chi.Mux
}

func newTestServer(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ingestor: &stubIngestor{records: []domain.Record{{Text: "name: Widget", Source: "csv", Row: 1}}},
		chunker:  &stubChunker{chunks: []domain.Chunk{{Text: "name: Widget", Source: "csv", Row: 1, Seq: 0}}},
		embedder: &stubEmbedder{},
		registry: newStubRegistry(),
		chat:     &stubChat{answer: "the answer"},
		provider: &stubProvider{},
	}

	uploadSvc := uploaduc.New(
		f.ingestor, f.chunker, f.embedder,
		func() (domain.Index, error) { return &stubIndex{}, nil },
		f.registry,
	)
	querySvc := queryuc.New(f.registry, f.embedder, f.chat, 4, 0.3)
	healthSvc := healthuc.New(f.provider, nil)

	server := NewServer(uploadSvc, querySvc, healthSvc, 10<<20, []string{".csv", ".xlsx", ".xls"}, zap.NewNop())

	f.router = chi.NewRouter()
	server.Routes(f.router)
	return f
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload_file", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
