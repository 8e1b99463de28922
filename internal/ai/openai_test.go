package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pmorken/letterchat/internal/fault"
)

func newTestOpenAIClient(serverURL string) *OpenAIClient {
	c := NewOpenAIClient(&ClientConfig{
		Provider: ProviderOpenAI,
		APIKey:   "sk-test",
	})
	c.base = serverURL
	return c
}

func TestOpenAIDefaults(t *testing.T) {
	c := NewOpenAIClient(&ClientConfig{Provider: ProviderOpenAI, APIKey: "sk-test"})
	if c.config.EmbedModel != "text-embedding-3-small" {
		t.Errorf("EmbedModel = %q", c.config.EmbedModel)
	}
	if c.config.ChatModel != "gpt-4-turbo" {
		t.Errorf("ChatModel = %q", c.config.ChatModel)
	}
	if c.Dim() != 1536 {
		t.Errorf("Dim() = %d, want 1536", c.Dim())
	}

	large := NewOpenAIClient(&ClientConfig{
		Provider:   ProviderOpenAI,
		APIKey:     "sk-test",
		EmbedModel: "text-embedding-3-large",
	})
	if large.Dim() != 3072 {
		t.Errorf("Dim() = %d, want 3072 for the large embedding model", large.Dim())
	}
}

func TestOpenAIEmbed(t *testing.T) {
	var gotAuth, gotModel, gotInput string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req["model"]
		gotInput = req["input"]

		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer server.Close()

	c := newTestOpenAIClient(server.URL)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("embedding = %v", vec)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotModel != "text-embedding-3-small" || gotInput != "hello" {
		t.Errorf("request carried model=%q input=%q", gotModel, gotInput)
	}
}

func TestOpenAIEmbed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded"}}`)
	}))
	defer server.Close()

	c := newTestOpenAIClient(server.URL)
	_, err := c.Embed(context.Background(), "hello")
	if !errors.Is(err, fault.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if want := "rate limit exceeded"; err == nil || !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not carry the API message %q", err, want)
	}
}

func TestOpenAIEmbed_NoAPIKey(t *testing.T) {
	c := NewOpenAIClient(&ClientConfig{Provider: ProviderOpenAI})
	if _, err := c.Embed(context.Background(), "hello"); !errors.Is(err, fault.ErrProvider) {
		t.Fatalf("expected provider error without an API key, got %v", err)
	}
}

func TestOpenAIStreamComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["stream"] != true {
			t.Error("request did not ask for streaming")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Day \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"1.\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := newTestOpenAIClient(server.URL)
	stream, err := c.StreamComplete(context.Background(), "persona", "question", 0.7, 100)
	if err != nil {
		t.Fatalf("StreamComplete failed: %v", err)
	}
	defer stream.Close()

	var out string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		out += fragment
	}
	if out != "Day 1." {
		t.Errorf("assembled completion = %q", out)
	}

	// EOF stays sticky after [DONE].
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("expected io.EOF after the sentinel, got %v", err)
	}
}

func TestOpenAIStreamComplete_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		// Body ends without the [DONE] sentinel.
	}))
	defer server.Close()

	c := newTestOpenAIClient(server.URL)
	stream, err := c.StreamComplete(context.Background(), "persona", "question", 0.7, 100)
	if err != nil {
		t.Fatalf("StreamComplete failed: %v", err)
	}
	defer stream.Close()

	fragment, err := stream.Recv()
	if err != nil || fragment != "partial" {
		t.Fatalf("Recv() = %q, %v; want %q, nil", fragment, err, "partial")
	}
	if _, err := stream.Recv(); !errors.Is(err, fault.ErrProvider) {
		t.Fatalf("expected provider error for a truncated stream, got %v", err)
	}
}

func TestOpenAIStreamComplete_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer server.Close()

	c := newTestOpenAIClient(server.URL)
	if _, err := c.StreamComplete(context.Background(), "persona", "question", 0.7, 100); !errors.Is(err, fault.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
