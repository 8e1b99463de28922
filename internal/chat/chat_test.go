package chat

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/pmorken/letterchat/internal/ai"
	"github.com/pmorken/letterchat/internal/fault"
)

// MockRetriever implements the Retriever interface for testing
type MockRetriever struct {
	RetrieveFunc func(ctx context.Context, question string) (string, error)
}

func (m *MockRetriever) Retrieve(ctx context.Context, question string) (string, error) {
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, question)
	}
	return "", nil
}

// MockCompleter implements the Completer interface for testing
type MockCompleter struct {
	StreamCompleteFunc func(ctx context.Context, system, user string, temperature float64, maxTokens int) (ai.Stream, error)
}

func (m *MockCompleter) StreamComplete(ctx context.Context, system, user string, temperature float64, maxTokens int) (ai.Stream, error) {
	if m.StreamCompleteFunc != nil {
		return m.StreamCompleteFunc(ctx, system, user, temperature, maxTokens)
	}
	return ai.NewSliceStream("ok"), nil
}

func drain(t *testing.T, s ai.Stream) (string, error) {
	t.Helper()
	defer s.Close()
	var out string
	for {
		fragment, err := s.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out += fragment
	}
}

func TestAnswer_MessageConstruction(t *testing.T) {
	var gotSystem, gotUser string
	var gotTemp float64
	var gotTokens int

	retriever := &MockRetriever{
		RetrieveFunc: func(ctx context.Context, question string) (string, error) {
			if question != "What matters most?" {
				t.Errorf("question not trimmed before retrieval: %q", question)
			}
			return "[1997] 1997 Shareholder Letter:\nIt's all about the long term.", nil
		},
	}
	completer := &MockCompleter{
		StreamCompleteFunc: func(ctx context.Context, system, user string, temperature float64, maxTokens int) (ai.Stream, error) {
			gotSystem = system
			gotUser = user
			gotTemp = temperature
			gotTokens = maxTokens
			return ai.NewSliceStream("Long", " term."), nil
		},
	}

	o := New(completer, retriever, "You are Beff Jezos.", 0, 0)
	stream, err := o.Answer(context.Background(), "  What matters most?  ")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	out, err := drain(t, stream)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if out != "Long term." {
		t.Errorf("assembled answer = %q", out)
	}

	if gotSystem != "You are Beff Jezos." {
		t.Errorf("system prompt not forwarded verbatim: %q", gotSystem)
	}
	wantUser := "Question: What matters most?\n\n### Excerpts from shareholder letters:\n[1997] 1997 Shareholder Letter:\nIt's all about the long term."
	if gotUser != wantUser {
		t.Errorf("user message = %q, want %q", gotUser, wantUser)
	}
	if gotTemp != DefaultTemperature {
		t.Errorf("temperature = %v, want %v", gotTemp, DefaultTemperature)
	}
	if gotTokens != DefaultMaxTokens {
		t.Errorf("maxTokens = %d, want %d", gotTokens, DefaultMaxTokens)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	retriever := &MockRetriever{
		RetrieveFunc: func(ctx context.Context, question string) (string, error) {
			t.Error("retrieval ran for an empty question")
			return "", nil
		},
	}

	o := New(&MockCompleter{}, retriever, "persona", 0.7, 1000)
	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := o.Answer(context.Background(), q); !errors.Is(err, fault.ErrValidation) {
			t.Errorf("Answer(%q) error = %v, want validation failure", q, err)
		}
	}
}

func TestAnswer_EmptyContextStillCompletes(t *testing.T) {
	completed := false
	completer := &MockCompleter{
		StreamCompleteFunc: func(ctx context.Context, system, user string, temperature float64, maxTokens int) (ai.Stream, error) {
			completed = true
			want := "Question: Who are you?\n\n### Excerpts from shareholder letters:\n"
			if user != want {
				t.Errorf("user message = %q, want %q", user, want)
			}
			return ai.NewSliceStream("I could not say."), nil
		},
	}

	o := New(completer, &MockRetriever{}, "persona", 0.7, 1000)
	stream, err := o.Answer(context.Background(), "Who are you?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	stream.Close()
	if !completed {
		t.Error("completion skipped for empty context")
	}
}

func TestAnswer_RetrievalErrorSkipsCompletion(t *testing.T) {
	storageErr := fault.Wrap(fault.ErrStorage, errors.New("pool closed"))

	retriever := &MockRetriever{
		RetrieveFunc: func(ctx context.Context, question string) (string, error) {
			return "", storageErr
		},
	}
	completer := &MockCompleter{
		StreamCompleteFunc: func(ctx context.Context, system, user string, temperature float64, maxTokens int) (ai.Stream, error) {
			t.Error("completion ran after retrieval failed")
			return nil, nil
		},
	}

	o := New(completer, retriever, "persona", 0.7, 1000)
	if _, err := o.Answer(context.Background(), "q"); !errors.Is(err, fault.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestAnswer_MidStreamFailure(t *testing.T) {
	providerErr := fault.Wrap(fault.ErrProvider, errors.New("connection dropped"))

	completer := &MockCompleter{
		StreamCompleteFunc: func(ctx context.Context, system, user string, temperature float64, maxTokens int) (ai.Stream, error) {
			return ai.NewFailingStream(providerErr, "partial ", "answer"), nil
		},
	}

	o := New(completer, &MockRetriever{}, "persona", 0.7, 1000)
	stream, err := o.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	out, err := drain(t, stream)
	if !errors.Is(err, fault.ErrProvider) {
		t.Fatalf("expected provider error after fragments, got %v", err)
	}
	if out != "partial answer" {
		t.Errorf("fragments before failure = %q, want %q", out, "partial answer")
	}
}

func TestNew_SamplingOverrides(t *testing.T) {
	completer := &MockCompleter{
		StreamCompleteFunc: func(ctx context.Context, system, user string, temperature float64, maxTokens int) (ai.Stream, error) {
			if temperature != 0.2 || maxTokens != 64 {
				t.Errorf("got temp=%v tokens=%d, want 0.2 and 64", temperature, maxTokens)
			}
			return ai.NewSliceStream(), nil
		},
	}

	o := New(completer, &MockRetriever{}, "persona", 0.2, 64)
	stream, err := o.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	stream.Close()
}
