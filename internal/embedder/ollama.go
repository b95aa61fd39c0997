package embedder

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaProvider embeds through a local Ollama server via langchaingo
type OllamaProvider struct {
	model     string
	dimension int
	embedder  embeddings.Embedder
	cache     *Cache
}

// NewOllamaProvider creates an Ollama embedder. An empty serverURL falls
// back to OLLAMA_HOST, then to the default local address. dimension is the
// model's output size; zero means OllamaDimension.
func NewOllamaProvider(serverURL, model string, dimension int, cache *Cache) (*OllamaProvider, error) {
	if serverURL == "" {
		serverURL = os.Getenv(EnvOllamaHost)
	}
	if serverURL == "" {
		serverURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension <= 0 {
		dimension = OllamaDimension
	}

	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama client: %v", ErrProviderFailed, err)
	}

	emb, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(DefaultBatchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embedder: %v", ErrProviderFailed, err)
	}

	return newOllamaProvider(emb, model, dimension, cache), nil
}

func newOllamaProvider(emb embeddings.Embedder, model string, dimension int, cache *Cache) *OllamaProvider {
	return &OllamaProvider{
		model:     model,
		dimension: dimension,
		embedder:  emb,
		cache:     cache,
	}
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := o.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embs, err := cachedBatch(o.cache, req.Texts, ProviderOllama, o.model, func(missing []string) ([][]float32, error) {
		vectors, err := o.embedder.EmbedDocuments(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		return vectors, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embs,
		Provider:   ProviderOllama,
		Model:      o.model,
	}, nil
}

func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	return nil
}
