package llm

import (
	"context"
	"iter"

	"github.com/dshills/codesoul/pkg/types"
)

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation
type Message struct {
	Role    Role
	Content string
}

// System builds a system message
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Client generates text from chat messages
type Client interface {
	// Available reports whether a generation credential is configured.
	// When false, Complete and Stream fail with types.ErrGenerationUnavailable.
	Available() bool

	// Complete returns the whole response at once
	Complete(ctx context.Context, msgs []Message, opts ...CallOption) (string, error)

	// Stream yields response fragments in arrival order. A failure is
	// yielded once as ("", err) and ends the sequence. Breaking out of the
	// range loop or cancelling ctx stops the request.
	Stream(ctx context.Context, msgs []Message, opts ...CallOption) iter.Seq2[string, error]
}

// CallOption tunes a single request
type CallOption func(*callOptions)

type callOptions struct {
	jsonMode    bool
	temperature *float64
	maxTokens   int
}

// WithJSONMode asks the model for a JSON object response
func WithJSONMode() CallOption {
	return func(o *callOptions) {
		o.jsonMode = true
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) CallOption {
	return func(o *callOptions) {
		o.temperature = &t
	}
}

// WithMaxTokens caps the response length
func WithMaxTokens(n int) CallOption {
	return func(o *callOptions) {
		o.maxTokens = n
	}
}

func applyOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Unavailable is the client used when no API key is configured
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Complete(context.Context, []Message, ...CallOption) (string, error) {
	return "", types.ErrGenerationUnavailable
}

func (Unavailable) Stream(context.Context, []Message, ...CallOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", types.ErrGenerationUnavailable)
	}
}
