package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/tablechat/tablechat/internal/domain"
)

// Chunker splits records into bounded-size overlapping chunks.
//
// Each record is split independently: overlap preserves context between
// neighboring chunks of the same record but never bleeds across record
// boundaries. Splitting is deterministic — identical input yields identical
// chunks.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// New creates a chunker. overlap must be smaller than chunkSize
// (enforced by config validation).
func New(chunkSize, overlap int) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

// Chunk splits the record sequence into an ordered chunk sequence.
// Seq numbers chunks globally in insertion order.
func (c *Chunker) Chunk(records []domain.Record) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	seq := 0

	for _, rec := range records {
		pieces, err := c.splitter.SplitText(rec.Text)
		if err != nil {
			return nil, fmt.Errorf("split record (source=%s row=%d): %w", rec.Source, rec.Row, err)
		}
		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				Text:   piece,
				Source: rec.Source,
				Row:    rec.Row,
				Seq:    seq,
			})
			seq++
		}
	}
	return chunks, nil
}
