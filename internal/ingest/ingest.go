// Package ingest runs the document ingestion pipeline: validate, chunk,
// embed, persist.
package ingest

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pmorken/letterchat/internal/ai"
	"github.com/pmorken/letterchat/internal/chunker"
	"github.com/pmorken/letterchat/internal/fault"
	"github.com/pmorken/letterchat/internal/store"
	"github.com/pmorken/letterchat/pkg/models"
)

// Request describes one document to ingest.
type Request struct {
	Year      int    `validate:"required,gt=0"`
	Title     string `validate:"required"`
	SourceURL string `validate:"omitempty,uri"`
	Text      string `validate:"required"`
}

// Pipeline chunks a document, embeds each chunk, and persists it. Chunks
// are processed sequentially, one at a time: ingestion latency grows with
// chunk count, but memory stays bounded and the embedding provider's rate
// limits are respected.
type Pipeline struct {
	client   ai.Client
	store    store.DocumentStore
	splitter *chunker.Splitter
	validate *validator.Validate
}

// New creates an ingestion pipeline over the given collaborators.
func New(client ai.Client, st store.DocumentStore, splitter *chunker.Splitter) *Pipeline {
	return &Pipeline{
		client:   client,
		store:    st,
		splitter: splitter,
		validate: validator.New(),
	}
}

// Ingest processes one document and returns the number of chunks persisted.
// Validation failures are reported before any collaborator call. On a
// collaborator error the pipeline stops; chunks persisted before the
// failing one remain (no rollback, no dedup), so re-running ingestion
// inserts duplicates.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (int, error) {
	if err := p.validate.Struct(req); err != nil {
		return 0, fault.Wrap(fault.ErrValidation, err)
	}

	chunks := p.splitter.Split(req.Text)
	docID := uuid.NewString()

	for i, content := range chunks {
		embedding, err := p.client.Embed(ctx, content)
		if err != nil {
			return i, fmt.Errorf("embed chunk %d/%d of %q: %w", i+1, len(chunks), req.Title, err)
		}

		c := models.DocumentChunk{
			DocumentID: docID,
			Year:       req.Year,
			Title:      req.Title,
			SourceURL:  req.SourceURL,
			Content:    content,
		}
		if err := p.store.Insert(ctx, c, embedding); err != nil {
			return i, fmt.Errorf("store chunk %d/%d of %q: %w", i+1, len(chunks), req.Title, err)
		}

		log.Debug().
			Str("document_id", docID).
			Int("chunk", i+1).
			Int("chunks", len(chunks)).
			Int("chars", len(content)).
			Msg("ingested chunk")
	}

	log.Info().
		Str("document_id", docID).
		Str("title", req.Title).
		Int("year", req.Year).
		Int("chunks", len(chunks)).
		Msg("document ingested")
	return len(chunks), nil
}
