package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/logger"
	"github.com/tablechat/tablechat/internal/metrics"
)

// embedBatchSize bounds the number of chunk texts sent per embedding call.
const embedBatchSize = 64

// Service runs the upload pipeline: ingest -> chunk -> embed -> index ->
// register. The pipeline is all-or-nothing: a room identifier is returned
// only after every chunk is indexed, so a registered session is never
// partially populated.
type Service struct {
	ingestor Ingestor
	chunker  Chunker
	embedder Embedder
	newIndex IndexFactory
	registry Registry
}

// New creates an upload service.
func New(ingestor Ingestor, chunker Chunker, embedder Embedder, newIndex IndexFactory, registry Registry) *Service {
	return &Service{
		ingestor: ingestor,
		chunker:  chunker,
		embedder: embedder,
		newIndex: newIndex,
		registry: registry,
	}
}

// Upload processes one uploaded file and returns the registered session.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (domain.Session, error) {
	start := time.Now()

	session, err := s.upload(ctx, filename, data)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(uploadStatus(err)).Inc()
		return domain.Session{}, err
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.UploadDuration.Observe(time.Since(start).Seconds())

	logger.FromContext(ctx).Info("Upload indexed",
		zap.String("room_id", session.ID),
		zap.String("filename", filename),
		zap.Int("chunks", session.ChunkCount),
		zap.Duration("took", time.Since(start)),
	)
	return session, nil
}

func (s *Service) upload(ctx context.Context, filename string, data []byte) (domain.Session, error) {
	records, err := s.ingestor.Ingest(ctx, filename, data)
	if err != nil {
		return domain.Session{}, fmt.Errorf("ingest %q: %w", filename, err)
	}

	chunks, err := s.chunker.Chunk(records)
	if err != nil {
		return domain.Session{}, fmt.Errorf("chunk %q: %w", filename, err)
	}
	if len(chunks) == 0 {
		return domain.Session{}, fmt.Errorf("%q: %w", filename, domain.ErrEmptyDocument)
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return domain.Session{}, fmt.Errorf("embed %q: %w", filename, err)
	}

	idx, err := s.newIndex()
	if err != nil {
		return domain.Session{}, fmt.Errorf("create index: %w", err)
	}
	if err := idx.Add(ctx, chunks, vectors); err != nil {
		return domain.Session{}, fmt.Errorf("index %q: %w", filename, err)
	}

	return s.registry.Put(idx, len(chunks), filename), nil
}

// embedChunks vectorizes all chunk texts in bounded batches, preserving order.
func (s *Service) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))

	for lo := 0; lo < len(chunks); lo += embedBatchSize {
		hi := lo + embedBatchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}

		texts := make([]string, 0, hi-lo)
		for _, chunk := range chunks[lo:hi] {
			texts = append(texts, chunk.Text)
		}

		res, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("batch [%d:%d]: %w", lo, hi, err)
		}
		if len(res.Embeddings) != len(texts) {
			return nil, fmt.Errorf(
				"batch [%d:%d]: got %d vectors for %d texts: %w",
				lo, hi, len(res.Embeddings), len(texts), domain.ErrEmbeddingUnavailable,
			)
		}
		vectors = append(vectors, res.Embeddings...)
	}

	return vectors, nil
}

// uploadStatus classifies a pipeline error for metrics: client-side
// rejections vs everything else.
func uploadStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrPayloadTooLarge),
		errors.Is(err, domain.ErrParse),
		errors.Is(err, domain.ErrEmptyDocument):
		return "rejected"
	default:
		return "error"
	}
}
