package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, ollama, local; empty auto-detects
	APIKey    string
	BaseURL   string // Endpoint override (server URL for ollama)
	Model     string
	Dimension int // Only used by ollama, whose models vary
	CacheSize int // Zero uses DefaultCacheSize, negative disables the cache
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. CODESOUL_EMBEDDING_PROVIDER (jina, openai, ollama, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	return New(Config{Provider: os.Getenv(EnvProvider)})
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize >= 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache, WithBaseURL(cfg.BaseURL), WithModel(cfg.Model))
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache, WithBaseURL(cfg.BaseURL), WithModel(cfg.Model))
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Dimension, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}

// IsKnownProvider reports whether name is a supported provider
func IsKnownProvider(name string) bool {
	switch strings.ToLower(name) {
	case ProviderJina, ProviderOpenAI, ProviderOllama, ProviderLocal:
		return true
	}
	return false
}
