package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dshills/codesoul/pkg/types"
)

const (
	// DefaultBaseURL is the DeepSeek OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultModel is the chat model used when none is configured
	DefaultModel = "deepseek-chat"

	// EnvAPIKey holds the generation credential
	EnvAPIKey = "DEEPSEEK_API_KEY"
)

// Config configures the generative client
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration // Zero means no client-side timeout
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// New returns an OpenAIClient, or Unavailable when cfg has no API key
func New(cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Unavailable{}, nil
	}
	return NewOpenAIClient(cfg)
}

// OpenAIClient talks to any OpenAI-compatible chat endpoint through langchaingo
type OpenAIClient struct {
	model  llms.Model
	name   string
	logger zerolog.Logger
}

// NewOpenAIClient creates a client for cfg. BaseURL and Model default to DeepSeek.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil && cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient != nil {
		opts = append(opts, openai.WithHTTPClient(httpClient))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return newClient(model, cfg.Model, cfg.Logger), nil
}

func newClient(model llms.Model, name string, logger zerolog.Logger) *OpenAIClient {
	return &OpenAIClient{model: model, name: name, logger: logger}
}

func (c *OpenAIClient) Available() bool { return true }

// Model returns the configured model name
func (c *OpenAIClient) Model() string { return c.name }

func (c *OpenAIClient) Complete(ctx context.Context, msgs []Message, opts ...CallOption) (string, error) {
	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, toMessageContent(msgs), toCallOptions(applyOptions(opts))...)
	if err != nil {
		return "", &types.GenerationFailure{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &types.GenerationFailure{Err: errors.New("empty response")}
	}

	c.logger.Debug().Str("model", c.name).Dur("elapsed", time.Since(start)).Msg("completion finished")
	return resp.Choices[0].Content, nil
}

// Stream runs the request on its own goroutine and forwards each streamed
// chunk to the consumer. The request is cancelled as soon as the consumer
// stops pulling.
func (c *OpenAIClient) Stream(parent context.Context, msgs []Message, opts ...CallOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(parent)
		defer cancel()

		frags := make(chan string)
		errc := make(chan error, 1)

		callOpts := toCallOptions(applyOptions(opts))
		callOpts = append(callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			select {
			case frags <- string(chunk):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))

		var final string
		go func() {
			defer close(frags)
			resp, err := c.model.GenerateContent(ctx, toMessageContent(msgs), callOpts...)
			if err == nil && len(resp.Choices) > 0 {
				final = resp.Choices[0].Content
			}
			errc <- err
		}()

		streamed := 0
		for frag := range frags {
			streamed++
			if !yield(frag, nil) {
				cancel()
				for range frags {
				}
				return
			}
		}

		err := <-errc
		switch {
		case parent.Err() != nil:
			// Cancelled by the caller: stop without reporting
			return
		case err != nil:
			yield("", &types.GenerationFailure{Err: err})
		case streamed == 0 && final != "":
			// Backend answered without streaming
			yield(final, nil)
		}
	}
}

func toMessageContent(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, len(msgs))
	for i, m := range msgs {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		out[i] = llms.TextParts(role, m.Content)
	}
	return out
}

func toCallOptions(o callOptions) []llms.CallOption {
	var out []llms.CallOption
	if o.jsonMode {
		out = append(out, llms.WithJSONMode())
	}
	if o.temperature != nil {
		out = append(out, llms.WithTemperature(*o.temperature))
	}
	if o.maxTokens > 0 {
		out = append(out, llms.WithMaxTokens(o.maxTokens))
	}
	return out
}
