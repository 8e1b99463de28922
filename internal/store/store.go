// Package store persists document chunks and their embeddings in Postgres
// with the pgvector extension, and answers cosine nearest-neighbor queries
// over them.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/pmorken/letterchat/internal/fault"
	"github.com/pmorken/letterchat/pkg/models"
)

// DocumentStore defines the methods that the Store must implement.
type DocumentStore interface {
	Migrate(ctx context.Context, dim int) error
	Insert(ctx context.Context, c models.DocumentChunk, embedding []float32) error
	Query(ctx context.Context, embedding []float32, k int, minSimilarity float64) ([]models.RetrievalResult, error)
}

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
	dim  int
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fault.Wrap(fault.ErrStorage, err)
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fault.Wrap(fault.ErrStorage, err)
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies the schema. The vector column is sized to dim, which then
// binds the store to that embedder dimensionality for its lifetime: inserts
// with any other length are rejected rather than silently stored.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fault.Wrap(fault.ErrStorage, fmt.Errorf("invalid embedding dimension %d", dim))
	}
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
  id          BIGSERIAL PRIMARY KEY,
  document_id UUID NOT NULL,
  year        INT NOT NULL,
  title       TEXT NOT NULL,
  source_url  TEXT,
  content     TEXT NOT NULL,
  embedding   vector(%d) NOT NULL,
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS documents_document_id_idx
  ON documents (document_id);

CREATE INDEX IF NOT EXISTS documents_year_idx
  ON documents (year);

CREATE INDEX IF NOT EXISTS documents_embedding_idx
  ON documents USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim)); err != nil {
		return fault.Wrap(fault.ErrStorage, err)
	}
	s.dim = dim
	return nil
}

// Insert persists one chunk with its embedding.
func (s *Store) Insert(ctx context.Context, c models.DocumentChunk, embedding []float32) error {
	if s.dim != 0 && len(embedding) != s.dim {
		return fault.Wrap(fault.ErrStorage,
			fmt.Errorf("embedding has %d dimensions, store requires %d", len(embedding), s.dim))
	}

	const q = `
		INSERT INTO documents (document_id, year, title, source_url, content, embedding)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6);`

	_, err := s.pool.Exec(ctx, q,
		c.DocumentID, c.Year, c.Title, c.SourceURL, c.Content, pgvector.NewVector(embedding),
	)
	return fault.Wrap(fault.ErrStorage, err)
}

// Query returns the up-to-k most similar chunks whose cosine similarity
// meets minSimilarity, in descending similarity order.
func (s *Store) Query(ctx context.Context, embedding []float32, k int, minSimilarity float64) ([]models.RetrievalResult, error) {
	const q = `
SELECT id, document_id::text, year, title, COALESCE(source_url, ''), content, created_at,
       1 - (embedding <=> $1) AS similarity
FROM documents
WHERE 1 - (embedding <=> $1) >= $2
ORDER BY embedding <=> $1
LIMIT $3;`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), minSimilarity, k)
	if err != nil {
		return nil, fault.Wrap(fault.ErrStorage, err)
	}
	defer rows.Close()

	var out []models.RetrievalResult
	for rows.Next() {
		var c models.DocumentChunk
		var similarity float64
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.Year, &c.Title, &c.SourceURL, &c.Content, &c.CreatedAt,
			&similarity,
		); err != nil {
			return nil, fault.Wrap(fault.ErrStorage, err)
		}
		out = append(out, models.RetrievalResult{Chunk: c, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.ErrStorage, err)
	}
	return out, nil
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
