package ai

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Client provides embedding and streaming chat completion against one
// hosted model provider. Implementations are safe for concurrent use and
// are constructed once at process start.
type Client interface {
	// Embed maps text to a fixed-length vector. The length equals Dim()
	// for every call over the client's lifetime.
	Embed(ctx context.Context, text string) ([]float32, error)
	// StreamComplete submits a system+user exchange and returns a live
	// stream of answer fragments. The caller must Close the stream on
	// every exit path.
	StreamComplete(ctx context.Context, system, user string, temperature float64, maxTokens int) (Stream, error)
	// Dim returns the embedding dimensionality.
	Dim() int
}

// Stream is a single-consumer, forward-only sequence of completion
// fragments. Recv returns io.EOF after the final fragment; any other error
// means the stream aborted upstream and fragments already returned stand.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider is enumeration of supported model providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for model provider clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dim        int
	ProjectID  string
	Provider   Provider
	Location   string
}

// NewClient creates a provider client based on configuration
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a stub implementation of the Client interface for tests and
// keyless local runs.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = 8
	}
	return &StubClient{dim: dim}
}

// Embed returns a deterministic vector derived from the text so that equal
// inputs stay equal across calls.
func (s *StubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dim)
	for i, r := range text {
		vec[i%s.dim] += float32(r%31) / 31
	}
	return vec, nil
}

// StreamComplete returns a canned three-fragment answer echoing the user
// message head.
func (s *StubClient) StreamComplete(ctx context.Context, system, user string, temperature float64, maxTokens int) (Stream, error) {
	head := user
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	return NewSliceStream("Stub answer for: ", head, "."), nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}

// SliceStream replays a fixed fragment sequence. Used by the stub provider
// and by tests that need a scripted stream.
type SliceStream struct {
	fragments []string
	pos       int
	err       error // returned after the fragments are exhausted, nil means clean end
	closed    bool
}

// NewSliceStream returns a stream that yields the given fragments and then
// a clean end of stream.
func NewSliceStream(fragments ...string) *SliceStream {
	return &SliceStream{fragments: fragments}
}

// NewFailingStream returns a stream that yields the given fragments and
// then fails with err instead of ending cleanly.
func NewFailingStream(err error, fragments ...string) *SliceStream {
	return &SliceStream{fragments: fragments, err: err}
}

func (s *SliceStream) Recv() (string, error) {
	if s.closed {
		return "", errors.New("stream closed")
	}
	if s.pos >= len(s.fragments) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}
