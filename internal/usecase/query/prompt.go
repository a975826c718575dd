package query

import (
	"strings"

	"github.com/tablechat/tablechat/internal/domain"
)

// FallbackAnswer is the fixed phrase the model is instructed to emit when the
// retrieved context cannot answer the question.
const FallbackAnswer = "The requested information is not available in the provided data."

// systemPrompt frames the assistant role for every query.
const systemPrompt = "You are an expert data assistant for spreadsheet data."

// DefaultPromptTemplate is the grounding prompt used when the config does not
// override it. {context} and {question} are substituted per query.
const DefaultPromptTemplate = `Answer the user's question using only the provided spreadsheet data context below.
- The context contains rows extracted from an uploaded spreadsheet.
- If calculations, comparisons, or summaries are necessary, clearly show the result and briefly explain the reasoning.
- Provide clear, concise, and relevant answers. Use bullet points or tables for lists or summaries if possible.
- If the user's question cannot be answered from the context, politely respond: "` + FallbackAnswer + `"

<context>
{context}
</context>

Question:
{question}`

// renderPrompt substitutes the retrieved chunks and the question into the
// prompt template. Only retrieved chunk texts go into the context block.
func renderPrompt(template string, retrieved []domain.RetrievedChunk, question string) string {
	var b strings.Builder
	for i, rc := range retrieved {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(rc.Chunk.Text)
	}

	return strings.NewReplacer(
		"{context}", b.String(),
		"{question}", question,
	).Replace(template)
}
