package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/codesoul/internal/chunker"
	"github.com/dshills/codesoul/internal/config"
	"github.com/dshills/codesoul/internal/embedder"
	"github.com/dshills/codesoul/internal/index"
	"github.com/dshills/codesoul/internal/indexer"
	"github.com/dshills/codesoul/internal/llm"
	"github.com/dshills/codesoul/internal/persona"
	"github.com/dshills/codesoul/internal/rag"
	"github.com/dshills/codesoul/internal/scanner"
	"github.com/dshills/codesoul/internal/storage"
	"github.com/dshills/codesoul/pkg/types"
)

var (
	// ErrNotReady is returned for questions asked before the persona exists
	ErrNotReady = errors.New("session not ready: index the codebase first")

	// ErrIngesting is returned when an ingestion pass is already running
	ErrIngesting = errors.New("ingestion already in progress")
)

// Session owns everything needed to index one root and answer questions
// about it. It is safe for concurrent use; ingestion passes are serialized.
type Session struct {
	root         string
	index        *index.Index
	indexer      *indexer.Indexer
	client       llm.Client
	initializer  *persona.Initializer
	orchestrator *rag.Orchestrator
	logger       zerolog.Logger
	workers      int

	lock indexer.IndexLock

	mu      sync.RWMutex
	persona *types.Persona
}

// Option configures a Session built with New
type Option func(*options)

type options struct {
	scanner *scanner.Scanner
	chunker *chunker.Chunker
	topK    int
	workers int
}

// WithScanner replaces the default scanner
func WithScanner(sc *scanner.Scanner) Option {
	return func(o *options) { o.scanner = sc }
}

// WithChunker replaces the default chunker
func WithChunker(ch *chunker.Chunker) Option {
	return func(o *options) { o.chunker = ch }
}

// WithTopK sets how many chunks each question retrieves
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// WithWorkers bounds the file readers of an ingestion pass
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// New assembles a session for root from an index and a generative client
func New(root string, ix *index.Index, client llm.Client, logger zerolog.Logger, opts ...Option) *Session {
	o := options{topK: rag.DefaultTopK}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scanner == nil {
		o.scanner = scanner.New(scanner.Config{}, logger)
	}
	if o.chunker == nil {
		o.chunker = chunker.NewDefault()
	}
	if client == nil {
		client = llm.Unavailable{}
	}

	s := &Session{
		root:        root,
		index:       ix,
		indexer:     indexer.New(o.scanner, o.chunker, ix, logger),
		client:      client,
		initializer: persona.NewInitializer(client, logger.With().Str("component", "persona").Logger()),
		logger:      logger,
		workers:     o.workers,
	}
	s.orchestrator = rag.New(ix, client,
		rag.WithPersonaSource(s),
		rag.WithTopK(o.topK),
		rag.WithLogger(logger.With().Str("component", "rag").Logger()),
	)
	return s
}

// Open builds a session from configuration: the store for cfg.Root under
// cfg.DBDir, the embedder, and the generative client.
func Open(cfg *config.Config, logger zerolog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ch, err := chunker.New(cfg.Chunking.Window, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	dir, err := index.StoreDir(cfg.DBDir, cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store directory: %w", err)
	}

	store, err := storage.Open(cfg.Store, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	client, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		Logger:  logger.With().Str("component", "llm").Logger(),
	})
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}

	ix := index.New(store, emb,
		index.WithBatchSize(cfg.Embedding.BatchSize),
		index.WithConcurrency(cfg.Embedding.Concurrency),
		index.WithLogger(logger.With().Str("component", "index").Logger()),
	)

	logger.Debug().
		Str("root", cfg.Root).
		Str("store", store.Location()).
		Str("embedder", ix.EmbedderID()).
		Bool("generation", client.Available()).
		Msg("session opened")

	sc := scanner.New(scanner.Config{IgnorePatterns: cfg.Scan.Ignore, Extensions: cfg.Scan.Extensions}, logger)
	return New(cfg.Root, ix, client, logger,
		WithScanner(sc),
		WithChunker(ch),
		WithTopK(cfg.TopK),
		WithWorkers(cfg.Scan.Workers),
	), nil
}

// Root returns the indexed directory
func (s *Session) Root() string { return s.root }

// GenerationAvailable reports whether a generation credential is configured
func (s *Session) GenerationAvailable() bool { return s.client.Available() }

// Ingesting reports whether an ingestion pass is running
func (s *Session) Ingesting() bool { return s.lock.Held() }

// Ingest runs one ingestion pass over the root. A concurrent call fails
// with ErrIngesting instead of waiting.
func (s *Session) Ingest(ctx context.Context, reset bool, progress indexer.ProgressFunc) (*indexer.Statistics, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrIngesting
	}
	defer s.lock.Release()

	return s.indexer.IndexProject(ctx, s.root, &indexer.Config{Workers: s.workers, Reset: reset}, progress)
}

// EnsureIndexed ingests the root only when the store is empty. It returns
// nil statistics when nothing was done.
func (s *Session) EnsureIndexed(ctx context.Context, progress indexer.ProgressFunc) (*indexer.Statistics, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.Count > 0 {
		return nil, nil
	}
	return s.Ingest(ctx, false, progress)
}

// InitPersona derives the persona from the current index size. It runs
// once; later calls return the persona already chosen.
func (s *Session) InitPersona(ctx context.Context) (types.Persona, error) {
	if p, ok := s.Persona(); ok {
		return p, nil
	}

	stats, err := s.index.Stats(ctx)
	if err != nil {
		return types.Persona{}, err
	}
	p := s.initializer.Initialize(ctx, stats)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persona != nil {
		return *s.persona, nil
	}
	s.persona = &p
	return p, nil
}

// Start ingests the root, then initializes the persona
func (s *Session) Start(ctx context.Context, reset bool, progress indexer.ProgressFunc) (*indexer.Statistics, types.Persona, error) {
	stats, err := s.Ingest(ctx, reset, progress)
	if err != nil {
		return nil, types.Persona{}, err
	}
	p, err := s.InitPersona(ctx)
	if err != nil {
		return stats, types.Persona{}, err
	}
	return stats, p, nil
}

// Persona returns the active persona
func (s *Session) Persona() (types.Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.persona == nil {
		return types.Persona{}, false
	}
	return *s.persona, true
}

// Ready reports whether questions are accepted
func (s *Session) Ready() bool {
	_, ok := s.Persona()
	return ok
}

// Answer streams the answer to question as text fragments. Before the
// persona exists it yields a single ErrNotReady fragment.
func (s *Session) Answer(ctx context.Context, question string) iter.Seq[string] {
	if !s.Ready() {
		return func(yield func(string) bool) {
			yield(ErrNotReady.Error())
		}
	}
	return s.orchestrator.Answer(ctx, question)
}

// Stream is Answer with failures reported as errors
func (s *Session) Stream(ctx context.Context, question string) iter.Seq2[string, error] {
	if !s.Ready() {
		return func(yield func(string, error) bool) {
			yield("", ErrNotReady)
		}
	}
	return s.orchestrator.Stream(ctx, question)
}

// Search returns the k chunks nearest to query without generating
func (s *Session) Search(ctx context.Context, query string, k int) ([]types.RetrievalResult, error) {
	if k <= 0 {
		k = rag.DefaultTopK
	}
	return s.index.Search(ctx, query, k)
}

// Stats reports the store's entry count and location
func (s *Session) Stats(ctx context.Context) (types.IndexStats, error) {
	return s.index.Stats(ctx)
}

// EmbedderID names the embedder as "provider/model"
func (s *Session) EmbedderID() string { return s.index.EmbedderID() }

// Reset drops every stored entry and forgets the persona
func (s *Session) Reset(ctx context.Context) error {
	if !s.lock.TryAcquire() {
		return ErrIngesting
	}
	defer s.lock.Release()

	if err := s.index.Reset(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.persona = nil
	s.mu.Unlock()
	return nil
}

// Close releases the store and embedder
func (s *Session) Close() error {
	return s.index.Close()
}
