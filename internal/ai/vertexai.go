package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/pmorken/letterchat/internal/fault"
)

type VertexAIClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewVertexAIClient creates a new client for the Google Gemini API.
func NewVertexAIClient(ctx context.Context, config *ClientConfig) (*VertexAIClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// Defaults for Gemini API
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-005"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gemini-2.0-flash"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}
	if config.Location == "" && strings.TrimSpace(config.APIKey) == "" {
		config.Location = "us-central1"
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	}
	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if strings.TrimSpace(config.ProjectID) != "" {
		cc.Project = config.ProjectID
	}
	if strings.TrimSpace(config.Location) != "" {
		cc.Location = config.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &VertexAIClient{
		config: config,
		client: client,
	}, nil
}

// Embed implements the embedding functionality using the Gemini API
func (c *VertexAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	}

	res, err := c.client.Models.EmbedContent(ctx, c.config.EmbedModel, genai.Text(text), &cfg)
	if err != nil {
		return nil, fault.Wrap(fault.ErrProvider, fmt.Errorf("embedding failed: %w", err))
	}

	if res == nil || len(res.Embeddings) == 0 {
		return nil, fault.Wrap(fault.ErrProvider, errors.New("no embedding returned"))
	}

	return res.Embeddings[0].Values, nil
}

// StreamComplete streams a chat completion from the Gemini API.
func (c *VertexAIClient) StreamComplete(ctx context.Context, system, user string, temperature float64, maxTokens int) (Stream, error) {
	prompt := genai.Text(system)
	temp := float32(temperature)
	cfg := genai.GenerateContentConfig{
		Temperature:       &temp,
		MaxOutputTokens:   int32(maxTokens),
		SystemInstruction: prompt[0],
	}

	seq := c.client.Models.GenerateContentStream(ctx, c.config.ChatModel, genai.Text(user), &cfg)
	next, stop := iter.Pull2(seq)
	return &genaiStream{next: next, stop: stop}, nil
}

func (c *VertexAIClient) Dim() int {
	return c.config.Dim
}

// genaiStream adapts the SDK's push iterator into the pull-based Stream
// contract.
type genaiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *genaiStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", fault.Wrap(fault.ErrProvider, err)
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}

		var b strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() == 0 {
			continue
		}
		return b.String(), nil
	}
}

func (s *genaiStream) Close() error {
	s.stop()
	return nil
}
