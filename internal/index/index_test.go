package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codesoul/internal/chunker"
	"github.com/dshills/codesoul/internal/embedder"
	"github.com/dshills/codesoul/internal/storage"
	"github.com/dshills/codesoul/pkg/types"
)

// countingEmbedder wraps the local provider and counts batch calls
type countingEmbedder struct {
	embedder.Embedder
	batches atomic.Int32
	fail    error
}

func (c *countingEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	c.batches.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Embedder.GenerateBatch(ctx, req)
}

func (c *countingEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Embedder.GenerateEmbedding(ctx, req)
}

func newTestIndex(t *testing.T, opts ...Option) (*Index, *countingEmbedder) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	local, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	emb := &countingEmbedder{Embedder: local}

	ix := New(store, emb, opts...)
	t.Cleanup(func() { _ = ix.Close() })
	return ix, emb
}

func sampleChunks(n int) []types.Chunk {
	chunks := make([]types.Chunk, n)
	for i := range chunks {
		chunks[i] = types.Chunk{
			FilePath:  fmt.Sprintf("pkg/file%d.py", i),
			StartLine: 1,
			EndLine:   3,
			Content:   fmt.Sprintf("def function_%d(arg):\n    return arg * %d\n", i, i),
		}
	}
	return chunks
}

func TestIndexChunks(t *testing.T) {
	ix, emb := newTestIndex(t, WithBatchSize(4), WithConcurrency(2))
	ctx := context.Background()

	n, err := ix.IndexChunks(ctx, sampleChunks(10))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, int32(3), emb.batches.Load())

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Count)
	assert.Equal(t, ":memory:", stats.Location)
}

func TestIndexChunks_Reindex(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	chunks := sampleChunks(5)
	_, err := ix.IndexChunks(ctx, chunks)
	require.NoError(t, err)
	_, err = ix.IndexChunks(ctx, chunks)
	require.NoError(t, err)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Count)
}

func TestIndexChunks_Empty(t *testing.T) {
	ix, emb := newTestIndex(t)
	n, err := ix.IndexChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, emb.batches.Load())

	require.NoError(t, ix.Upsert(context.Background(), nil))
}

func TestIndexChunks_BlankTrailingWindow(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	ch, err := chunker.New(2, 0)
	require.NoError(t, err)
	chunks := ch.Chunk("a.py", "def a():\n    pass\n\n")
	require.Len(t, chunks, 2)
	require.Empty(t, chunks[1].Content)

	n, err := ix.IndexChunks(ctx, chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)

	results, err := ix.Search(ctx, "def a pass", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	contents := map[string]string{}
	for _, r := range results {
		contents[r.ID] = r.Content
	}
	assert.Equal(t, "def a():\n    pass", contents["a.py:1"])
	assert.Equal(t, "", contents["a.py:3"], "blank content is stored unchanged")
}

func TestIndexChunks_EmbedFailure(t *testing.T) {
	ix, emb := newTestIndex(t)
	emb.fail = errors.New("provider down")

	_, err := ix.IndexChunks(context.Background(), sampleChunks(3))
	require.ErrorIs(t, err, types.ErrIndex)

	var idxErr *types.IndexError
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, "embed", idxErr.Op)
	assert.Contains(t, err.Error(), "provider down")

	// Nothing was written
	stats, err := ix.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestSearch_RanksRelevantChunkFirst(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	c := chunker.NewDefault()
	var chunks []types.Chunk
	chunks = append(chunks, c.Chunk("auth/login.py", "def login(username, password):\n    session = create_session(username)\n    return session\n")...)
	chunks = append(chunks, c.Chunk("db/query.sql", "SELECT * FROM orders WHERE total > 100;\n")...)
	chunks = append(chunks, c.Chunk("ui/button.css", ".button { color: red; padding: 4px; }\n")...)

	_, err := ix.IndexChunks(ctx, chunks)
	require.NoError(t, err)

	results, err := ix.Search(ctx, "how does login create a session for a username", DefaultTopK)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "auth/login.py:1", results[0].ID)
	assert.Equal(t, "auth/login.py[1-3]", results[0].Label())

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestQuery_StoreFailure(t *testing.T) {
	ix, _ := newTestIndex(t)
	require.NoError(t, ix.store.Close())

	_, err := ix.Query(context.Background(), []float32{1}, 5)
	var idxErr *types.IndexError
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, "query", idxErr.Op)
	assert.ErrorIs(t, err, storage.ErrClosed)

	_, err = ix.Stats(context.Background())
	assert.ErrorIs(t, err, types.ErrIndex)
}

func TestReset(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	_, err := ix.IndexChunks(ctx, sampleChunks(3))
	require.NoError(t, err)
	require.NoError(t, ix.Reset(ctx))

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestCheckEmbedder(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	// First check records the embedder, later checks pass
	require.NoError(t, ix.CheckEmbedder(ctx))
	require.NoError(t, ix.CheckEmbedder(ctx))

	meta := ix.store.(storage.MetaStore)
	require.NoError(t, meta.SetMeta(ctx, metaEmbeddingModel, "jina/jina-embeddings-v3"))

	err := ix.CheckEmbedder(ctx)
	assert.ErrorIs(t, err, ErrEmbedderChanged)
	assert.ErrorIs(t, err, types.ErrIndex)

	// Reset forgets the old embedder
	require.NoError(t, ix.Reset(ctx))
	assert.NoError(t, ix.CheckEmbedder(ctx))
	assert.Equal(t, "local/local-hashing", ix.EmbedderID())
}

func TestStoreDir(t *testing.T) {
	base := filepath.Join("work", DefaultDirName)

	a, err := StoreDir(base, "/src/project")
	require.NoError(t, err)
	b, err := StoreDir(base, "/src/project/")
	require.NoError(t, err)
	c, err := StoreDir(base, "/src/other")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, base, filepath.Dir(a))
}
