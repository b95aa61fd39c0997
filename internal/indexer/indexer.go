package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codesoul/internal/chunker"
	"github.com/dshills/codesoul/internal/index"
	"github.com/dshills/codesoul/internal/scanner"
	"github.com/dshills/codesoul/pkg/types"
)

// Indexer coordinates the ingestion pipeline: scan -> read -> chunk -> embed -> store
type Indexer struct {
	scanner *scanner.Scanner
	chunker *chunker.Chunker
	index   *index.Index
	logger  zerolog.Logger

	// Worker pool configuration
	workers int
}

// Config contains configuration for one ingestion pass
type Config struct {
	Workers int  // Concurrent file readers (default: runtime.NumCPU())
	Reset   bool // Drop every stored entry before indexing
}

// Stage names a step of the ingestion pass
type Stage string

const (
	StageReset    Stage = "reset"
	StageScan     Stage = "scan"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageComplete Stage = "complete"
)

// Event is one line of the ingestion progress narrative
type Event struct {
	Stage   Stage
	Message string
	Files   int
	Chunks  int
}

// ProgressFunc receives progress events. It is called from the goroutine
// running IndexProject.
type ProgressFunc func(Event)

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesScanned  int // Eligible files found by the scanner
	FilesIndexed  int // Files that produced at least one chunk
	FilesSkipped  int // Files that could not be read
	ChunksCreated int
	ScanSkipped   int // Subtrees and entries the scanner could not visit
	Skipped       []types.ScanPartialFailure
	Duration      time.Duration
}

// New creates a new Indexer instance
func New(sc *scanner.Scanner, ch *chunker.Chunker, ix *index.Index, logger zerolog.Logger) *Indexer {
	return &Indexer{
		scanner: sc,
		chunker: ch,
		index:   ix,
		logger:  logger.With().Str("component", "indexer").Logger(),
		workers: runtime.NumCPU(),
	}
}

// IndexProject ingests every eligible file under rootPath. Unreadable files
// are counted and skipped; an index failure aborts the pass.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config, progress ProgressFunc) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	idx.workers = config.Workers
	if progress == nil {
		progress = func(Event) {}
	}

	startTime := time.Now()
	stats := &Statistics{}

	if config.Reset {
		progress(Event{Stage: StageReset, Message: "Resetting index..."})
		if err := idx.index.Reset(ctx); err != nil {
			return nil, err
		}
	}

	if err := idx.checkEmbedder(ctx, progress); err != nil {
		return nil, err
	}

	progress(Event{Stage: StageScan, Message: fmt.Sprintf("Scanning %s...", rootPath)})
	scan, err := idx.scanner.Scan(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}
	stats.FilesScanned = len(scan.Files)
	stats.ScanSkipped = len(scan.Skipped)
	stats.Skipped = append(stats.Skipped, scan.Skipped...)
	progress(Event{Stage: StageScan, Message: fmt.Sprintf("Found %d files.", len(scan.Files)), Files: len(scan.Files)})

	chunks, err := idx.chunkFiles(ctx, scan.Root, scan.Files, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk files: %w", err)
	}
	progress(Event{
		Stage:   StageChunk,
		Message: fmt.Sprintf("Created %d chunks from %d files.", len(chunks), stats.FilesIndexed),
		Files:   stats.FilesIndexed,
		Chunks:  len(chunks),
	})

	if len(chunks) > 0 {
		progress(Event{Stage: StageEmbed, Message: "Embedding and storing chunks...", Chunks: len(chunks)})
	}
	n, err := idx.index.IndexChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	stats.ChunksCreated = n
	stats.Duration = time.Since(startTime)

	idx.logger.Info().
		Int("files", stats.FilesIndexed).
		Int("chunks", stats.ChunksCreated).
		Int("skipped", stats.FilesSkipped+stats.ScanSkipped).
		Dur("duration", stats.Duration).
		Msg("indexing complete")

	progress(Event{
		Stage:   StageComplete,
		Message: fmt.Sprintf("Indexing complete. %d chunks stored.", n),
		Files:   stats.FilesIndexed,
		Chunks:  n,
	})
	return stats, nil
}

// checkEmbedder resets the store when it was built with a different embedder,
// since vectors from two models are not comparable
func (idx *Indexer) checkEmbedder(ctx context.Context, progress ProgressFunc) error {
	err := idx.index.CheckEmbedder(ctx)
	if !errors.Is(err, index.ErrEmbedderChanged) {
		return err
	}

	idx.logger.Warn().Err(err).Msg("embedding model changed, rebuilding index")
	progress(Event{Stage: StageReset, Message: "Embedding model changed, resetting index..."})
	if err := idx.index.Reset(ctx); err != nil {
		return err
	}
	return idx.index.CheckEmbedder(ctx)
}

// chunkFiles reads and chunks files concurrently. Each worker writes only
// its own slot; chunks come back in file order.
func (idx *Indexer) chunkFiles(ctx context.Context, root string, files []string, stats *Statistics) ([]types.Chunk, error) {
	// Create worker pool with semaphore
	semaphore := make(chan struct{}, idx.workers)

	var (
		indexed int32
		skipped int32
	)
	perFile := make([][]types.Chunk, len(files))
	results := make([]chunker.FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return nil, ctx.Err()
		case semaphore <- struct{}{}:
		}

		g.Go(func() error {
			defer func() { <-semaphore }()

			chunks, res := idx.chunker.ChunkFile(root, path)
			results[i] = res
			if !res.OK() {
				atomic.AddInt32(&skipped, 1)
				idx.logger.Debug().Str("path", res.RelPath).Err(res.Err).Msg("skipping file")
				return nil
			}
			perFile[i] = chunks
			if len(chunks) > 0 {
				atomic.AddInt32(&indexed, 1)
			}
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)

	var all []types.Chunk
	for i, res := range results {
		if !res.OK() {
			stats.Skipped = append(stats.Skipped, res.Skip())
			continue
		}
		all = append(all, perFile[i]...)
	}
	return all, nil
}
