// Package chat orchestrates one chat turn: retrieve context for the
// question, build the persona exchange, and stream the completion back.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmorken/letterchat/internal/ai"
	"github.com/pmorken/letterchat/internal/fault"
)

// Retriever produces the assembled context block for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) (string, error)
}

// Completer is the slice of the provider client the orchestrator needs.
type Completer interface {
	StreamComplete(ctx context.Context, system, user string, temperature float64, maxTokens int) (ai.Stream, error)
}

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Orchestrator forwards questions plus retrieved context to the completion
// provider. The system prompt is opaque configuration: it is forwarded
// verbatim and never inspected.
type Orchestrator struct {
	completer    Completer
	retriever    Retriever
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// New creates an orchestrator with fixed sampling parameters. Zero
// temperature or maxTokens fall back to the defaults.
func New(completer Completer, retriever Retriever, systemPrompt string, temperature float64, maxTokens int) *Orchestrator {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Orchestrator{
		completer:    completer,
		retriever:    retriever,
		systemPrompt: systemPrompt,
		temperature:  temperature,
		maxTokens:    maxTokens,
	}
}

// Answer runs retrieval to completion before the completion call starts,
// then returns the live fragment stream. The caller owns the stream and
// must Close it on every exit path. An empty context block is not a
// failure: the completion still runs and the persona instructs the model to
// ask a clarifying question when the evidence is thin. Any collaborator
// error before streaming begins collapses to a single failure with no
// completion call.
func (o *Orchestrator) Answer(ctx context.Context, question string) (ai.Stream, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fault.Wrap(fault.ErrValidation, errors.New("question is required"))
	}

	contextBlock, err := o.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	user := fmt.Sprintf("Question: %s\n\n### Excerpts from shareholder letters:\n%s", question, contextBlock)
	return o.completer.StreamComplete(ctx, o.systemPrompt, user, o.temperature, o.maxTokens)
}
