// Package retrieval embeds a question, fetches the most similar stored
// chunks, and assembles them into a single context block for the model
// prompt.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/pmorken/letterchat/internal/ai"
	"github.com/pmorken/letterchat/internal/store"
	"github.com/pmorken/letterchat/pkg/models"
)

const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 6
	// DefaultMinSimilarity is the floor below which a chunk is not
	// considered relevant.
	DefaultMinSimilarity = 0.75

	blockSeparator = "\n\n---\n\n"
)

// Service answers retrieval requests against one embedder and one store.
type Service struct {
	client        ai.Client
	store         store.DocumentStore
	topK          int
	minSimilarity float64
}

// NewService creates a retrieval service. Non-positive k or similarity fall
// back to the defaults.
func NewService(client ai.Client, st store.DocumentStore, topK int, minSimilarity float64) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Service{
		client:        client,
		store:         st,
		topK:          topK,
		minSimilarity: minSimilarity,
	}
}

// Retrieve embeds the question, queries the store, and returns the
// assembled context block. Zero matching chunks is not an error: the
// context is simply empty. Collaborator errors propagate unchanged, with
// no retries.
func (s *Service) Retrieve(ctx context.Context, question string) (string, error) {
	embedding, err := s.client.Embed(ctx, strings.TrimSpace(question))
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	results, err := s.store.Query(ctx, embedding, s.topK, s.minSimilarity)
	if err != nil {
		return "", fmt.Errorf("query documents: %w", err)
	}

	return BuildContext(results), nil
}

// BuildContext formats retrieved chunks as "[year] title:\ncontent" blocks
// joined by the fixed separator, in the order the store returned them. The
// store owns descending-similarity ordering; re-sorting here would hide
// store bugs from tests.
func BuildContext(results []models.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%d] %s:\n%s", r.Chunk.Year, r.Chunk.Title, r.Chunk.Content))
	}
	return strings.Join(blocks, blockSeparator)
}
