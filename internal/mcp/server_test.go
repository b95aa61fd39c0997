package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codesoul/internal/config"
	"github.com/dshills/codesoul/internal/embedder"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.DBDir = t.TempDir()
	cfg.Embedding.Provider = embedder.ProviderLocal

	s, err := NewServer(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.py"), []byte("def login(user):\n    return check(user)\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "db.py"), []byte("def connect():\n    return open_db()\n"), 0o644))
	return root
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

// TestServer_Initialization verifies tools are registered and the db dir is absolute
func TestServer_Initialization(t *testing.T) {
	cfg := config.Default()
	cfg.DBDir = "relative-db"

	s, err := NewServer(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.mcp)
	assert.True(t, filepath.IsAbs(s.cfg.DBDir))
	assert.Equal(t, "relative-db", cfg.DBDir, "caller config is not modified")
}

// TestIndexThenSearch verifies the main tool flow
func TestIndexThenSearch(t *testing.T) {
	s := newTestServer(t)
	root := newProject(t)
	ctx := context.Background()

	res, err := s.handleIndexCodebase(ctx, call(map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, float64(2), out["chunks_created"])
	assert.NotEmpty(t, out["persona"])

	res, err = s.handleSearchCode(ctx, call(map[string]interface{}{"path": root, "query": "login user", "limit": float64(1)}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, float64(1), out["count"])

	res, err = s.handleGetStatus(ctx, call(map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, float64(2), out["chunks_count"])
	assert.Equal(t, "local/"+embedder.DefaultLocalModel, out["embedder"])
	assert.Contains(t, out, "persona")
}

// TestAskCodebase_IndexesOnDemand verifies ask works on a fresh project without a key
func TestAskCodebase_IndexesOnDemand(t *testing.T) {
	s := newTestServer(t)
	root := newProject(t)

	res, err := s.handleAskCodebase(context.Background(), call(map[string]interface{}{"path": root, "question": "how do I log in?"}))
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "found 2 relevant snippets")
}

// TestGetStatus_NotIndexed verifies status of an empty index
func TestGetStatus_NotIndexed(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleGetStatus(context.Background(), call(map[string]interface{}{"path": newProject(t)}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, false, out["indexed"])
	assert.Contains(t, out["message"], "index_codebase")
	assert.NotContains(t, out, "persona")
}

// TestToolArgumentValidation verifies parameter errors
func TestToolArgumentValidation(t *testing.T) {
	s := newTestServer(t)
	root := newProject(t)
	file := filepath.Join(root, "auth.py")
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    interface{}
		code    int
	}{
		{"non-map arguments", s.handleIndexCodebase, "nope", ErrorCodeInvalidParams},
		{"missing path", s.handleIndexCodebase, map[string]interface{}{}, ErrorCodeInvalidParams},
		{"relative path", s.handleGetStatus, map[string]interface{}{"path": "src"}, ErrorCodeInvalidParams},
		{"missing directory", s.handleGetStatus, map[string]interface{}{"path": filepath.Join(root, "nope")}, ErrorCodeInvalidParams},
		{"file not directory", s.handleGetStatus, map[string]interface{}{"path": file}, ErrorCodeInvalidParams},
		{"empty query", s.handleSearchCode, map[string]interface{}{"path": root, "query": "  "}, ErrorCodeEmptyQuery},
		{"limit too small", s.handleSearchCode, map[string]interface{}{"path": root, "query": "q", "limit": float64(0)}, ErrorCodeInvalidParams},
		{"limit too large", s.handleSearchCode, map[string]interface{}{"path": root, "query": "q", "limit": float64(101)}, ErrorCodeInvalidParams},
		{"empty question", s.handleAskCodebase, map[string]interface{}{"path": root}, ErrorCodeEmptyQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req mcp.CallToolRequest
			req.Params.Arguments = tt.args

			res, err := tt.handler(ctx, req)
			assert.Nil(t, res)
			requireMCPError(t, err, tt.code)
		})
	}
}

// TestSessionReuse verifies one session per root
func TestSessionReuse(t *testing.T) {
	s := newTestServer(t)
	root := newProject(t)

	a, err := s.sessionFor(root)
	require.NoError(t, err)
	b, err := s.sessionFor(root)
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := s.sessionFor(newProject(t))
	require.NoError(t, err)
	assert.NotSame(t, a, other)

	require.NoError(t, s.Close())
	assert.Empty(t, s.sessions)
}
