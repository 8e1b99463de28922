package models

import "time"

// DocumentChunk is the unit of storage and retrieval: one bounded slice of
// an uploaded document, embedded independently. Chunks from the same upload
// share a DocumentID.
type DocumentChunk struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"document_id"`
	Year       int       `json:"year"`
	Title      string    `json:"title"`
	SourceURL  string    `json:"source_url,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// RetrievalResult pairs a chunk with its similarity score for one query.
// Higher is more similar.
type RetrievalResult struct {
	Chunk      DocumentChunk `json:"chunk"`
	Similarity float64       `json:"similarity"`
}
