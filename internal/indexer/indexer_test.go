package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codesoul/internal/chunker"
	"github.com/dshills/codesoul/internal/embedder"
	"github.com/dshills/codesoul/internal/index"
	"github.com/dshills/codesoul/internal/scanner"
	"github.com/dshills/codesoul/internal/storage"
	"github.com/dshills/codesoul/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension        int
	model            string
	generateBatchErr error
	callCount        int
	mu               sync.Mutex
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 8, model: "test-v1"}
}

func (m *mockEmbedder) vector(text string) []float32 {
	vector := make([]float32, m.dimension)
	for i := range vector {
		vector[i] = 0.5
	}
	vector[len(text)%m.dimension] = 1
	return vector
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return &embedder.Embedding{
		Vector:    m.vector(req.Text),
		Dimension: m.dimension,
		Provider:  "mock",
		Model:     m.model,
	}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generateBatchErr != nil {
		return nil, m.generateBatchErr
	}

	m.callCount++
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		embeddings[i] = &embedder.Embedding{
			Vector:    m.vector(text),
			Dimension: m.dimension,
			Provider:  "mock",
			Model:     m.model,
		}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: "mock", Model: m.model}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return m.model }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// setupTestIndexer creates an indexer over an in-memory SQLite store
func setupTestIndexer(t testing.TB, emb embedder.Embedder) (*Indexer, *index.Index) {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err, "Failed to create test storage")

	ix := index.New(store, emb, index.WithBatchSize(4))
	t.Cleanup(func() { _ = ix.Close() })

	idx := New(scanner.New(scanner.Config{}, zerolog.Nop()), chunker.NewDefault(), ix, zerolog.Nop())
	return idx, ix
}

// createTestFile creates a file under dir for testing
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	err := os.MkdirAll(filepath.Dir(filePath), 0755)
	require.NoError(t, err)

	err = os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err)

	return filePath
}

func numberedLines(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	return sb.String()
}

func count(t *testing.T, ix *index.Index) int {
	t.Helper()
	stats, err := ix.Stats(context.Background())
	require.NoError(t, err)
	return stats.Count
}

// TestIndexProject_Success tests successful project indexing
func TestIndexProject_Success(t *testing.T) {
	tmpDir := t.TempDir()

	createTestFile(t, tmpDir, "main.py", "def main():\n    print('hello')\n")
	createTestFile(t, tmpDir, "pkg/util.go", numberedLines(120))
	createTestFile(t, tmpDir, "README.md", "# readme\n")
	createTestFile(t, tmpDir, "image.png", "not text")

	idx, ix := setupTestIndexer(t, newMockEmbedder())

	stats, err := idx.IndexProject(context.Background(), tmpDir, &Config{Workers: 2}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.FilesScanned)
	assert.Equal(t, 3, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesSkipped)
	// 120 lines -> windows at 1, 41, 81
	assert.Equal(t, 5, stats.ChunksCreated)
	assert.Greater(t, stats.Duration, time.Duration(0))
	assert.Equal(t, 5, count(t, ix))
}

// TestIndexProject_EmptyProject tests indexing an empty directory
func TestIndexProject_EmptyProject(t *testing.T) {
	emb := newMockEmbedder()
	idx, ix := setupTestIndexer(t, emb)

	stats, err := idx.IndexProject(context.Background(), t.TempDir(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesScanned)
	assert.Equal(t, 0, stats.ChunksCreated)
	assert.Equal(t, 0, emb.getCallCount())
	assert.Equal(t, 0, count(t, ix))
}

// TestIndexProject_Idempotent verifies re-indexing unchanged files keeps the count
func TestIndexProject_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.py", numberedLines(60))
	createTestFile(t, tmpDir, "b.py", numberedLines(10))

	idx, ix := setupTestIndexer(t, newMockEmbedder())

	_, err := idx.IndexProject(context.Background(), tmpDir, nil, nil)
	require.NoError(t, err)
	first := count(t, ix)

	_, err = idx.IndexProject(context.Background(), tmpDir, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, count(t, ix))
	assert.Equal(t, 3, first)
}

// TestIndexProject_Reset verifies stale entries are dropped on reset
func TestIndexProject_Reset(t *testing.T) {
	tmpDir := t.TempDir()
	gone := createTestFile(t, tmpDir, "gone.py", "x = 1\n")
	createTestFile(t, tmpDir, "kept.py", "y = 2\n")

	idx, ix := setupTestIndexer(t, newMockEmbedder())

	_, err := idx.IndexProject(context.Background(), tmpDir, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, count(t, ix))

	require.NoError(t, os.Remove(gone))

	// Without reset the old entry survives
	_, err = idx.IndexProject(context.Background(), tmpDir, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count(t, ix))

	_, err = idx.IndexProject(context.Background(), tmpDir, &Config{Reset: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, ix))
}

// TestIndexProject_EmbedderChanged verifies a model switch rebuilds the store
func TestIndexProject_EmbedderChanged(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.py", "x = 1\n")

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	oldIx := index.New(store, newMockEmbedder())
	old := New(scanner.New(scanner.Config{}, zerolog.Nop()), chunker.NewDefault(), oldIx, zerolog.Nop())

	_, err = old.IndexProject(context.Background(), tmpDir, nil, nil)
	require.NoError(t, err)
	location := store.Location()
	require.NoError(t, oldIx.Close())

	store, err = storage.NewSQLiteStore(location)
	require.NoError(t, err)
	emb := newMockEmbedder()
	emb.model = "test-v2"
	newIx := index.New(store, emb)
	t.Cleanup(func() { _ = newIx.Close() })

	var events []Event
	idx := New(scanner.New(scanner.Config{}, zerolog.Nop()), chunker.NewDefault(), newIx, zerolog.Nop())
	_, err = idx.IndexProject(context.Background(), tmpDir, nil, func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.Equal(t, StageReset, events[0].Stage)
	assert.NoError(t, newIx.CheckEmbedder(context.Background()))
	assert.Equal(t, 1, count(t, newIx))
}

// TestIndexProject_UnreadableFile verifies read failures are counted, not fatal
func TestIndexProject_UnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}

	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "ok.py", "x = 1\n")
	locked := createTestFile(t, tmpDir, "locked.py", "secret = 1\n")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0644) })

	idx, ix := setupTestIndexer(t, newMockEmbedder())

	stats, err := idx.IndexProject(context.Background(), tmpDir, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesScanned)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	require.Len(t, stats.Skipped, 1)
	assert.Equal(t, "locked.py", stats.Skipped[0].Path)
	assert.Equal(t, 1, count(t, ix))
}

// TestIndexProject_EmbeddingErrors verifies an embedding failure aborts the batch
func TestIndexProject_EmbeddingErrors(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.py", "x = 1\n")

	emb := newMockEmbedder()
	emb.generateBatchErr = errors.New("provider down")
	idx, ix := setupTestIndexer(t, emb)

	stats, err := idx.IndexProject(context.Background(), tmpDir, nil, nil)

	assert.Nil(t, stats)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIndex)
	assert.Contains(t, err.Error(), "provider down")
	assert.Equal(t, 0, count(t, ix))
}

// TestIndexProject_ContextCancellation verifies a cancelled context stops the pass
func TestIndexProject_ContextCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	for i := 0; i < 20; i++ {
		createTestFile(t, tmpDir, fmt.Sprintf("f%02d.py", i), numberedLines(30))
	}

	idx, ix := setupTestIndexer(t, newMockEmbedder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.IndexProject(ctx, tmpDir, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, count(t, ix))
}

// TestIndexProject_ProgressNarrative verifies the event sequence
func TestIndexProject_ProgressNarrative(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.py", numberedLines(5))
	createTestFile(t, tmpDir, "b.py", numberedLines(5))

	idx, _ := setupTestIndexer(t, newMockEmbedder())

	var events []Event
	_, err := idx.IndexProject(context.Background(), tmpDir, nil, func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	var stages []Stage
	for _, ev := range events {
		stages = append(stages, ev.Stage)
		assert.NotEmpty(t, ev.Message)
	}
	assert.Equal(t, []Stage{StageScan, StageScan, StageChunk, StageEmbed, StageComplete}, stages)
	assert.Equal(t, "Found 2 files.", events[1].Message)
	assert.Equal(t, 2, events[len(events)-1].Chunks)
}

// TestIndexProject_WorkerConcurrency verifies results do not depend on the worker count
func TestIndexProject_WorkerConcurrency(t *testing.T) {
	tmpDir := t.TempDir()
	for i := 0; i < 30; i++ {
		createTestFile(t, tmpDir, fmt.Sprintf("dir%d/f%02d.py", i%3, i), numberedLines(55))
	}

	for _, workers := range []int{1, 4, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			idx, ix := setupTestIndexer(t, newMockEmbedder())

			stats, err := idx.IndexProject(context.Background(), tmpDir, &Config{Workers: workers}, nil)
			require.NoError(t, err)
			assert.Equal(t, 30, stats.FilesIndexed)
			assert.Equal(t, 60, stats.ChunksCreated)
			assert.Equal(t, 60, count(t, ix))
		})
	}
}

// TestIndexLock_ConcurrentAcquisition tests IndexLock behavior under concurrent access
func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	t.Run("release makes lock available again", func(t *testing.T) {
		var lock IndexLock
		require.True(t, lock.TryAcquire())
		assert.True(t, lock.Held())
		assert.False(t, lock.TryAcquire())

		lock.Release()
		assert.False(t, lock.Held())
		assert.True(t, lock.TryAcquire())
		lock.Release()
	})

	t.Run("one of many goroutines wins", func(t *testing.T) {
		var lock IndexLock
		const numGoroutines = 100

		acquired := make([]bool, numGoroutines)
		var wg sync.WaitGroup
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(i int) {
				defer wg.Done()
				acquired[i] = lock.TryAcquire()
			}(i)
		}
		wg.Wait()

		successCount := 0
		for _, ok := range acquired {
			if ok {
				successCount++
			}
		}
		assert.Equal(t, 1, successCount, "Exactly one goroutine should acquire the lock")
	})
}
