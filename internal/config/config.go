// Package config loads codesoul settings.
//
// Sources, lowest precedence first: built-in defaults, a YAML file
// (codesoul.yaml in the working directory unless a path is given),
// environment variables, and finally command-line flags applied by the
// caller. A .env file is loaded into the environment first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/codesoul/internal/chunker"
	"github.com/dshills/codesoul/internal/embedder"
	"github.com/dshills/codesoul/internal/index"
	"github.com/dshills/codesoul/internal/llm"
	"github.com/dshills/codesoul/internal/storage"
	"github.com/dshills/codesoul/pkg/types"
)

// DefaultFileName is the YAML file looked up in the working directory
const DefaultFileName = "codesoul.yaml"

// Environment overrides
const (
	EnvLLMBaseURL     = "CODESOUL_LLM_BASE_URL"
	EnvLLMModel       = "CODESOUL_LLM_MODEL"
	EnvEmbeddingModel = "CODESOUL_EMBEDDING_MODEL"
	EnvStore          = "CODESOUL_STORE"
	EnvDBDir          = "CODESOUL_DB_DIR"
	EnvLogLevel       = "CODESOUL_LOG_LEVEL"
	EnvTopK           = "CODESOUL_TOP_K"
)

// Config is the full application configuration
type Config struct {
	Root  string `yaml:"root"`   // Directory to index
	DBDir string `yaml:"db_dir"` // Parent of the per-root stores
	Store string `yaml:"store"`  // sqlite or chromem
	TopK  int    `yaml:"top_k"`

	Chunking  ChunkingConfig  `yaml:"chunking"`
	Scan      ScanConfig      `yaml:"scan"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Log       LogConfig       `yaml:"log"`
}

// ChunkingConfig sets the line window and overlap
type ChunkingConfig struct {
	Window  int `yaml:"window"`
	Overlap int `yaml:"overlap"`
}

// ScanConfig overrides the scanner's ignore list and extension allow-list
type ScanConfig struct {
	Ignore     []string `yaml:"ignore,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"`
	Workers    int      `yaml:"workers"`
}

// EmbeddingConfig selects the embedding provider. API keys for hosted
// providers are read from JINA_API_KEY and OPENAI_API_KEY.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // jina, openai, ollama, local; empty auto-detects
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	CacheSize   int    `yaml:"cache_size"`
}

// LLMConfig configures the generative model. The key never comes from YAML.
type LLMConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	APIKey      string `yaml:"-"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"` // Empty logs to stderr
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Root:  ".",
		DBDir: index.DefaultDirName,
		Store: storage.KindSQLite,
		TopK:  index.DefaultTopK,
		Chunking: ChunkingConfig{
			Window:  chunker.DefaultWindow,
			Overlap: chunker.DefaultOverlap,
		},
		Embedding: EmbeddingConfig{
			BatchSize: embedder.DefaultBatchSize,
		},
		LLM: LLMConfig{
			BaseURL:     llm.DefaultBaseURL,
			Model:       llm.DefaultModel,
			TimeoutSecs: 120,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads defaults, then the YAML file, then the environment. An empty
// path tries DefaultFileName; a missing default file is not an error but a
// missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LLM.APIKey, llm.EnvAPIKey)
	setString(&c.LLM.BaseURL, EnvLLMBaseURL)
	setString(&c.LLM.Model, EnvLLMModel)
	setString(&c.Embedding.Provider, embedder.EnvProvider)
	setString(&c.Embedding.Model, EnvEmbeddingModel)
	setString(&c.Store, EnvStore)
	setString(&c.DBDir, EnvDBDir)
	setString(&c.Log.Level, EnvLogLevel)

	if v := strings.TrimSpace(os.Getenv(EnvTopK)); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return &types.ConfigurationError{Field: EnvTopK, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		c.TopK = k
	}
	return nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

// Validate reports the first invalid setting as a *types.ConfigurationError
func (c *Config) Validate() error {
	if c.Chunking.Window <= 0 {
		return &types.ConfigurationError{Field: "chunking.window", Reason: "must be positive"}
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Window {
		return &types.ConfigurationError{Field: "chunking.overlap", Reason: fmt.Sprintf("must be in [0, %d)", c.Chunking.Window)}
	}
	if !storage.IsKnownKind(c.Store) {
		return &types.ConfigurationError{Field: "store", Reason: fmt.Sprintf("unknown store %q", c.Store)}
	}
	if c.Embedding.Provider != "" && !embedder.IsKnownProvider(c.Embedding.Provider) {
		return &types.ConfigurationError{Field: "embedding.provider", Reason: fmt.Sprintf("unknown provider %q", c.Embedding.Provider)}
	}
	if c.Embedding.BatchSize < 0 || c.Embedding.BatchSize > embedder.MaxBatchSize {
		return &types.ConfigurationError{Field: "embedding.batch_size", Reason: fmt.Sprintf("must be in [0, %d]", embedder.MaxBatchSize)}
	}
	if c.TopK <= 0 {
		return &types.ConfigurationError{Field: "top_k", Reason: "must be positive"}
	}
	if c.Root == "" {
		return &types.ConfigurationError{Field: "root", Reason: "must not be empty"}
	}
	return nil
}

// EmbedderConfig converts the embedding section for embedder.New
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		BaseURL:   c.Embedding.BaseURL,
		Model:     c.Embedding.Model,
		Dimension: c.Embedding.Dimension,
		CacheSize: c.Embedding.CacheSize,
	}
}
