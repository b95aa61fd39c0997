package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/codesoul/internal/index"
	"github.com/dshills/codesoul/internal/llm"
	"github.com/dshills/codesoul/internal/persona"
	"github.com/dshills/codesoul/pkg/types"
)

// DefaultTopK is how many chunks are retrieved per question
const DefaultTopK = index.DefaultTopK

var _ Retriever = (*index.Index)(nil)

// Retriever finds the chunks most similar to a text
type Retriever interface {
	Search(ctx context.Context, text string, k int) ([]types.RetrievalResult, error)
}

// PersonaSource returns the active persona, if any
type PersonaSource interface {
	Persona() (types.Persona, bool)
}

// Orchestrator answers questions from retrieved code context
type Orchestrator struct {
	retriever Retriever
	client    llm.Client
	personas  PersonaSource
	topK      int
	logger    zerolog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPersonaSource sets where the system prompt comes from
func WithPersonaSource(src PersonaSource) Option {
	return func(o *Orchestrator) {
		o.personas = src
	}
}

// WithTopK overrides DefaultTopK
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an orchestrator. A nil client means generation is unavailable.
func New(retriever Retriever, client llm.Client, opts ...Option) *Orchestrator {
	if client == nil {
		client = llm.Unavailable{}
	}
	o := &Orchestrator{
		retriever: retriever,
		client:    client,
		topK:      DefaultTopK,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Retrieve returns the top chunks for query, most similar first
func (o *Orchestrator) Retrieve(ctx context.Context, query string) ([]types.RetrievalResult, error) {
	return o.retriever.Search(ctx, query, o.topK)
}

// BuildContext renders results as labeled sections in ranking order
func BuildContext(results []types.RetrievalResult) string {
	sections := make([]string, len(results))
	for i, r := range results {
		sections[i] = r.Label() + "\n" + r.Content
	}
	return strings.Join(sections, "\n\n")
}

// Messages composes the chat request for a question and its context block
func Messages(systemPrompt, contextBlock, query string) []llm.Message {
	if systemPrompt == "" {
		systemPrompt = persona.FallbackSystemPrompt
	}
	return []llm.Message{
		llm.System(systemPrompt),
		llm.User(fmt.Sprintf("Context:\n%s\n\nUser Question: %s", contextBlock, query)),
	}
}

// BlankQueryMessage answers a question with no text. Nothing is retrieved.
const BlankQueryMessage = "Ask me something about the code and I will answer."

// DegradedMessage is the single fragment yielded when generation is unavailable
func DegradedMessage(retrieved int) string {
	return fmt.Sprintf("I found %d relevant snippets, but I have no API key to speak. Set %s to enable answers.", retrieved, llm.EnvAPIKey)
}

// Answer streams the answer to query as text fragments. Failures arrive as
// a final in-band fragment; cancellation ends the stream quietly.
func (o *Orchestrator) Answer(ctx context.Context, query string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for frag, err := range o.Stream(ctx, query) {
			if err != nil {
				yield(ErrorMessage(err))
				return
			}
			if !yield(frag) {
				return
			}
		}
	}
}

// ErrorMessage renders err as a conversational fragment
func ErrorMessage(err error) string {
	var ie *types.IndexError
	if errors.As(err, &ie) {
		return fmt.Sprintf("Error searching the index: %v", err)
	}
	return fmt.Sprintf("Error communicating with the model: %v", err)
}

// Stream is Answer with failures reported as errors instead of text.
// A failure is yielded once and ends the sequence.
func (o *Orchestrator) Stream(ctx context.Context, query string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if strings.TrimSpace(query) == "" {
			yield(BlankQueryMessage, nil)
			return
		}

		results, err := o.Retrieve(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error().Err(err).Msg("retrieval failed")
			yield("", err)
			return
		}
		o.logger.Debug().Int("results", len(results)).Str("query", query).Msg("context retrieved")

		if !o.client.Available() {
			yield(DegradedMessage(len(results)), nil)
			return
		}

		var systemPrompt string
		if o.personas != nil {
			if p, ok := o.personas.Persona(); ok {
				systemPrompt = p.SystemPrompt
			}
		}
		msgs := Messages(systemPrompt, BuildContext(results), query)

		for frag, err := range o.client.Stream(ctx, msgs) {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if errors.Is(err, types.ErrGenerationUnavailable) {
					yield(DegradedMessage(len(results)), nil)
					return
				}
				o.logger.Error().Err(err).Msg("generation failed")
				yield("", err)
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}
