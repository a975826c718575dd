package query

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/logger"
	"github.com/tablechat/tablechat/internal/metrics"
)

// Service answers natural-language questions against a session's index:
// embed the question, retrieve top-k chunks, compose a grounded prompt, call
// the chat model once. Queries are stateless beyond the session's indexed
// content, and a provider failure leaves the session intact for retry.
type Service struct {
	registry    Registry
	embedder    Embedder
	chat        ChatCompleter
	topK        int
	temperature float32
	template    string
}

// New creates a query service.
func New(registry Registry, embedder Embedder, chat ChatCompleter, topK int, temperature float32) *Service {
	return &Service{
		registry:    registry,
		embedder:    embedder,
		chat:        chat,
		topK:        topK,
		temperature: temperature,
		template:    DefaultPromptTemplate,
	}
}

// WithPromptTemplate overrides the grounding prompt template. The template
// must contain {context} and {question} placeholders.
func (s *Service) WithPromptTemplate(template string) *Service {
	if template != "" {
		s.template = template
	}
	return s
}

// Query answers one question for the given room.
func (s *Service) Query(ctx context.Context, roomID, question string) (domain.Answer, error) {
	answer, err := s.query(ctx, roomID, question)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(queryStatus(err)).Inc()
		return domain.Answer{}, err
	}
	metrics.QueriesTotal.WithLabelValues("success").Inc()
	return answer, nil
}

func (s *Service) query(ctx context.Context, roomID, question string) (domain.Answer, error) {
	session, err := s.registry.Get(roomID)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("room %q: %w", roomID, err)
	}

	embRes, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("vectorize question: %w", err)
	}

	retrieved, err := session.Index.Search(ctx, embRes.Embedding, s.topK)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	prompt := renderPrompt(s.template, retrieved, question)

	text, err := s.chat.Complete(ctx, systemPrompt, prompt, s.temperature)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("compose answer: %w", err)
	}

	logger.FromContext(ctx).Debug("Query answered",
		zap.String("room_id", roomID),
		zap.Int("retrieved", len(retrieved)),
	)

	return domain.Answer{Text: text, Sources: retrieved}, nil
}

func queryStatus(err error) string {
	if errors.Is(err, domain.ErrRoomNotFound) {
		return "not_found"
	}
	return "error"
}
