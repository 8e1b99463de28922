package ai

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pmorken/letterchat/internal/fault"
)

const openAIBase = "https://api.openai.com/v1"

type OpenAIClient struct {
	config *ClientConfig
	http   *http.Client
	base   string
}

func NewOpenAIClient(config *ClientConfig) *OpenAIClient {
	// Set default models if not provided
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-3-small"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gpt-4-turbo"
	}
	if config.Dim == 0 {
		// Set default dimensions based on the embedding model
		switch config.EmbedModel {
		case "text-embedding-3-large":
			config.Dim = 3072
		default:
			config.Dim = 1536
		}
	}

	transport := &http.Transport{}

	// Corporate proxies sometimes require skipping TLS verification
	if skipTLS, _ := strconv.ParseBool(os.Getenv("LETTERCHAT_SKIP_TLS_VERIFY")); skipTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &OpenAIClient{
		config: config,
		http: &http.Client{
			// Streamed completions outlive the embed calls, so no client
			// timeout here; per-call deadlines come from the context.
			Transport: transport,
		},
		base: openAIBase,
	}
}

// Embed implements the embedding functionality
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.APIKey == "" {
		return nil, fault.Wrap(fault.ErrProvider, errors.New("PROVIDER_API_KEY unset"))
	}

	payload := map[string]string{
		"input": text,
		"model": c.config.EmbedModel,
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, fault.Wrap(fault.ErrProvider, err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.Wrap(fault.ErrProvider, apiError(resp))
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fault.Wrap(fault.ErrProvider, err)
	}
	if len(out.Data) == 0 {
		return nil, fault.Wrap(fault.ErrProvider, errors.New("no embedding"))
	}
	return out.Data[0].Embedding, nil
}

// StreamComplete submits a streamed chat completion. The returned stream
// holds the response body open; Close releases it.
func (c *OpenAIClient) StreamComplete(ctx context.Context, system, user string, temperature float64, maxTokens int) (Stream, error) {
	if c.config.APIKey == "" {
		return nil, fault.Wrap(fault.ErrProvider, errors.New("PROVIDER_API_KEY unset"))
	}

	payload := map[string]any{
		"model": c.config.ChatModel,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": temperature,
		"max_tokens":  maxTokens,
		"stream":      true,
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", &buf)
	if err != nil {
		return nil, fault.Wrap(fault.ErrProvider, err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.ErrProvider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := apiError(resp)
		_ = resp.Body.Close()
		return nil, fault.Wrap(fault.ErrProvider, err)
	}

	return &sseStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

func (c *OpenAIClient) Dim() int {
	return c.config.Dim
}

// setHeaders sets common headers for OpenAI requests
func (c *OpenAIClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	if strings.HasPrefix(c.config.APIKey, "sk-proj-") && c.config.ProjectID != "" {
		req.Header.Set("OpenAI-Project", c.config.ProjectID)
	}
}

// apiError extracts the API error message from a non-2xx response.
func apiError(resp *http.Response) error {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)
	if e.Error.Message != "" {
		return errors.New(e.Error.Message)
	}
	return errors.New(resp.Status)
}

// sseStream decodes the "data: {...}" lines of an OpenAI streamed chat
// completion. A "data: [DONE]" sentinel is the clean end; anything else
// cutting the stream short surfaces as an error from Recv.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var event struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return "", fault.Wrap(fault.ErrProvider, err)
		}
		if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
			continue
		}
		return event.Choices[0].Delta.Content, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", fault.Wrap(fault.ErrProvider, err)
	}
	// Body ended without the [DONE] sentinel: truncated upstream.
	return "", fault.Wrap(fault.ErrProvider, errors.New("stream ended before completion"))
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
