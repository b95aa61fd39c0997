package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codesoul/internal/embedder"
	"github.com/dshills/codesoul/internal/storage"
	"github.com/dshills/codesoul/pkg/types"
)

const (
	// DefaultDirName is the directory, relative to the working directory,
	// holding one store per indexed root
	DefaultDirName = ".codesoul_db"

	// DefaultTopK is the number of chunks retrieved per question
	DefaultTopK = 5

	// metaEmbeddingModel records which embedder filled a store
	metaEmbeddingModel = "embedding_model"
)

// ErrEmbedderChanged is returned when a store was filled by a different
// embedding provider or model than the one configured now
var ErrEmbedderChanged = errors.New("index was built with a different embedding model")

// Index pairs a vector store with the embedder that fills and queries it.
// Every failure is returned as a *types.IndexError.
type Index struct {
	store       storage.VectorStore
	embedder    embedder.Embedder
	logger      zerolog.Logger
	batchSize   int
	concurrency int
}

// Option configures an Index
type Option func(*Index)

// WithBatchSize sets how many chunks are embedded per provider call
func WithBatchSize(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithConcurrency bounds the embedding batches in flight
func WithConcurrency(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(ix *Index) {
		ix.logger = logger
	}
}

// New creates an Index over store using emb for vectors
func New(store storage.VectorStore, emb embedder.Embedder, opts ...Option) *Index {
	ix := &Index{
		store:       store,
		embedder:    emb,
		logger:      zerolog.Nop(),
		batchSize:   embedder.DefaultBatchSize,
		concurrency: min(runtime.NumCPU(), 4),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// StoreDir returns the store directory for root under baseDir. Each
// absolute root gets its own directory, so indexes never mix.
func StoreDir(baseDir, root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return filepath.Join(baseDir, hex.EncodeToString(sum[:6])), nil
}

// Upsert writes entries to the store. Zero entries is a no-op.
func (ix *Index) Upsert(ctx context.Context, entries []types.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ix.store.Upsert(ctx, entries); err != nil {
		return &types.IndexError{Op: "upsert", Err: err}
	}
	return nil
}

// IndexChunks embeds chunks in batches, a bounded number at a time, then
// upserts all entries in one write. It returns the number of entries written.
func (ix *Index) IndexChunks(ctx context.Context, chunks []types.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	entries := make([]types.IndexEntry, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))
		batch := chunks[start:end]
		offset := start

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = embeddable(c.Content)
			}

			resp, err := ix.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return fmt.Errorf("batch at chunk %d: %w", offset, err)
			}

			for i, vec := range resp.Vectors() {
				entries[offset+i] = types.NewIndexEntry(batch[i], vec)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, &types.IndexError{Op: "embed", Err: err}
	}

	ix.logger.Debug().Int("entries", len(entries)).Str("store", ix.store.Location()).Msg("upserting entries")

	if err := ix.Upsert(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// blankPlaceholder stands in for whitespace-only chunks, which providers
// refuse to embed. The stored content is left as is.
const blankPlaceholder = " "

func embeddable(content string) string {
	if strings.TrimSpace(content) == "" {
		return blankPlaceholder
	}
	return content
}

// Embed returns the vector for text
func (ix *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := ix.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, &types.IndexError{Op: "embed", Err: err}
	}
	return emb.Vector, nil
}

// Query returns up to k entries nearest to vector, closest first
func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]types.RetrievalResult, error) {
	results, err := ix.store.Query(ctx, vector, k)
	if err != nil {
		return nil, &types.IndexError{Op: "query", Err: err}
	}
	return results, nil
}

// Search embeds text and queries with the result
func (ix *Index) Search(ctx context.Context, text string, k int) ([]types.RetrievalResult, error) {
	vector, err := ix.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return ix.Query(ctx, vector, k)
}

// Stats reports the entry count and store location
func (ix *Index) Stats(ctx context.Context) (types.IndexStats, error) {
	n, err := ix.store.Count(ctx)
	if err != nil {
		return types.IndexStats{}, &types.IndexError{Op: "stats", Err: err}
	}
	return types.IndexStats{Count: n, Location: ix.store.Location()}, nil
}

// Reset removes every entry
func (ix *Index) Reset(ctx context.Context) error {
	if err := ix.store.Reset(ctx); err != nil {
		return &types.IndexError{Op: "reset", Err: err}
	}
	return nil
}

// EmbedderID names the configured embedder as "provider/model"
func (ix *Index) EmbedderID() string {
	return ix.embedder.Provider() + "/" + ix.embedder.Model()
}

// CheckEmbedder compares the configured embedder with the one recorded in
// the store and records it when the store has none. A mismatch returns
// ErrEmbedderChanged wrapped in an IndexError. Stores that cannot record
// metadata always pass.
func (ix *Index) CheckEmbedder(ctx context.Context) error {
	meta, ok := ix.store.(storage.MetaStore)
	if !ok {
		return nil
	}

	want := ix.EmbedderID()
	got, found, err := meta.GetMeta(ctx, metaEmbeddingModel)
	if err != nil {
		return &types.IndexError{Op: "stats", Err: err}
	}
	if found && got != want {
		return &types.IndexError{Op: "stats", Err: fmt.Errorf("%w: stored %s, configured %s", ErrEmbedderChanged, got, want)}
	}
	if !found {
		if err := meta.SetMeta(ctx, metaEmbeddingModel, want); err != nil {
			return &types.IndexError{Op: "upsert", Err: err}
		}
	}
	return nil
}

// Close releases the store and the embedder
func (ix *Index) Close() error {
	return errors.Join(ix.store.Close(), ix.embedder.Close())
}
