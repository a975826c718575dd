package domain

// Record is one logical unit extracted from an uploaded file, typically a row.
// Immutable once created.
type Record struct {
	Text   string
	Source string // sheet name for spreadsheets, "csv" for CSV files
	Row    int    // 1-based row index within the source
}

// Chunk is a bounded slice of one record's text, the retrieval granularity.
// Seq is the global insertion order within the upload and breaks score ties
// during retrieval.
type Chunk struct {
	Text   string
	Source string
	Row    int
	Seq    int
}

// RetrievedChunk is a chunk returned by a similarity search.
type RetrievedChunk struct {
	Chunk Chunk
	Score float32
}

// Answer is the composed response to a query, with the chunks it was
// grounded in.
type Answer struct {
	Text    string
	Sources []RetrievedChunk
}
