package domain

import "time"

// Session is the isolated retrieval context created for one uploaded file.
// It is constructed only after the whole ingestion pipeline has succeeded,
// so a registered session is always queryable.
type Session struct {
	ID         string
	Index      Index
	ChunkCount int
	Filename   string
	CreatedAt  time.Time
}
