package session

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codesoul/internal/config"
	"github.com/dshills/codesoul/internal/embedder"
	"github.com/dshills/codesoul/internal/index"
	"github.com/dshills/codesoul/internal/indexer"
	"github.com/dshills/codesoul/internal/llm"
	"github.com/dshills/codesoul/internal/storage"
	"github.com/dshills/codesoul/pkg/types"
)

// echoClient answers with a persona on Complete and echoes the system prompt on Stream
type echoClient struct{}

func (echoClient) Available() bool { return true }

func (echoClient) Complete(context.Context, []llm.Message, ...llm.CallOption) (string, error) {
	return `{"name":"Echo","description":"A test soul","style":"Repeats itself"}`, nil
}

func (echoClient) Stream(_ context.Context, msgs []llm.Message, _ ...llm.CallOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("system=", nil) {
			return
		}
		yield(msgs[0].Content, nil)
	}
}

func writeTree(t *testing.T, files int) string {
	t.Helper()
	root := t.TempDir()
	for i := 0; i < files; i++ {
		path := filepath.Join(root, fmt.Sprintf("mod%d.py", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("def f%d():\n    return %d\n", i, i)), 0o644))
	}
	return root
}

func newTestSession(t *testing.T, root string, client llm.Client) *Session {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	s := New(root, index.New(store, emb), client, zerolog.Nop())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func collect(seq iter.Seq[string]) string {
	var sb strings.Builder
	for frag := range seq {
		sb.WriteString(frag)
	}
	return sb.String()
}

func TestSession_NotReadyBeforePersona(t *testing.T) {
	s := newTestSession(t, writeTree(t, 2), echoClient{})

	assert.False(t, s.Ready())
	assert.Equal(t, ErrNotReady.Error(), collect(s.Answer(context.Background(), "hi")))

	for _, err := range s.Stream(context.Background(), "hi") {
		assert.ErrorIs(t, err, ErrNotReady)
	}
}

func TestSession_StartThenAnswer(t *testing.T) {
	s := newTestSession(t, writeTree(t, 3), echoClient{})

	var messages []string
	stats, p, err := s.Start(context.Background(), false, func(ev indexer.Event) {
		messages = append(messages, ev.Message)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.ChunksCreated)
	assert.Equal(t, "Echo", p.Name)
	assert.Equal(t, types.TierReserved, p.Tier)
	assert.True(t, s.Ready())
	assert.Contains(t, messages, "Found 3 files.")

	answer := collect(s.Answer(context.Background(), "what is f1?"))
	assert.True(t, strings.HasPrefix(answer, "system=You are the living soul of this codebase."), answer)
	assert.Contains(t, answer, "Name: Echo")
}

func TestSession_DegradedWithoutCredential(t *testing.T) {
	s := newTestSession(t, writeTree(t, 2), nil)

	_, p, err := s.Start(context.Background(), false, nil)
	require.NoError(t, err)
	assert.True(t, p.Scripted)
	assert.False(t, s.GenerationAvailable())

	var frags []string
	for frag := range s.Answer(context.Background(), "anything") {
		frags = append(frags, frag)
	}
	require.Len(t, frags, 1)
	assert.Contains(t, frags[0], "found 2 relevant snippets")
}

func TestSession_PersonaRunsOnce(t *testing.T) {
	s := newTestSession(t, writeTree(t, 1), echoClient{})

	_, first, err := s.Start(context.Background(), false, nil)
	require.NoError(t, err)

	_, err = s.Ingest(context.Background(), false, nil)
	require.NoError(t, err)
	second, err := s.InitPersona(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSession_IngestIsExclusive(t *testing.T) {
	s := newTestSession(t, writeTree(t, 1), nil)

	require.True(t, s.lock.TryAcquire())
	assert.True(t, s.Ingesting())

	_, err := s.Ingest(context.Background(), false, nil)
	assert.ErrorIs(t, err, ErrIngesting)
	assert.ErrorIs(t, s.Reset(context.Background()), ErrIngesting)

	s.lock.Release()
	_, err = s.Ingest(context.Background(), false, nil)
	assert.NoError(t, err)
}

func TestSession_EnsureIndexed(t *testing.T) {
	s := newTestSession(t, writeTree(t, 2), nil)

	stats, err := s.EnsureIndexed(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.ChunksCreated)

	stats, err = s.EnsureIndexed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, stats, "a filled store is not re-indexed")
}

func TestSession_ResetForgetsPersona(t *testing.T) {
	s := newTestSession(t, writeTree(t, 2), nil)
	_, _, err := s.Start(context.Background(), false, nil)
	require.NoError(t, err)

	require.NoError(t, s.Reset(context.Background()))
	assert.False(t, s.Ready())

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestSession_Search(t *testing.T) {
	s := newTestSession(t, writeTree(t, 4), nil)
	_, err := s.Ingest(context.Background(), false, nil)
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "def f2", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestOpen_FromConfig(t *testing.T) {
	for _, kind := range []string{storage.KindSQLite, storage.KindChromem} {
		t.Run(kind, func(t *testing.T) {
			cfg := config.Default()
			cfg.Root = writeTree(t, 2)
			cfg.DBDir = t.TempDir()
			cfg.Store = kind
			cfg.Embedding.Provider = embedder.ProviderLocal

			s, err := Open(cfg, zerolog.Nop())
			require.NoError(t, err)
			defer s.Close()

			assert.Equal(t, "local/"+embedder.DefaultLocalModel, s.EmbedderID())

			_, _, err = s.Start(context.Background(), false, nil)
			require.NoError(t, err)

			stats, err := s.Stats(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 2, stats.Count)
			assert.True(t, strings.HasPrefix(stats.Location, cfg.DBDir), stats.Location)
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Chunking.Overlap = cfg.Chunking.Window

	_, err := Open(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
