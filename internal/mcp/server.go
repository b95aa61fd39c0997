package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/codesoul/internal/config"
	"github.com/dshills/codesoul/internal/session"
)

const (
	// ServerName is the MCP server name
	ServerName = "codesoul"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Opener builds a session for cfg; session.Open in production
type Opener func(cfg *config.Config, logger zerolog.Logger) (*session.Session, error)

// Server wraps the MCP server with one session per indexed root
type Server struct {
	mcp    *server.MCPServer
	cfg    config.Config
	open   Opener
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewServer creates a new MCP server instance. cfg supplies everything but
// the root, which each tool call names.
func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	return newServer(cfg, session.Open, logger)
}

func newServer(cfg *config.Config, open Opener, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	// Store directories are derived from roots; anchor them so every
	// session resolves the same location regardless of the caller.
	base := *cfg
	if !filepath.IsAbs(base.DBDir) {
		abs, err := filepath.Abs(base.DBDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database directory: %w", err)
		}
		base.DBDir = abs
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		cfg:      base,
		open:     open,
		logger:   logger.With().Str("component", "mcp").Logger(),
		sessions: make(map[string]*session.Session),
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()

	errc := make(chan error, 1)
	go func() { errc <- server.ServeStdio(s.mcp) }()

	s.logger.Info().Str("db_dir", s.cfg.DBDir).Msg("MCP server started")

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	}
}

// Close releases every open session
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for root, sess := range s.sessions {
		errs = append(errs, sess.Close())
		delete(s.sessions, root)
	}
	return errors.Join(errs...)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(askCodebaseTool(), s.handleAskCodebase)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// sessionFor returns the session for root, opening it on first use
func (s *Server) sessionFor(root string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[root]; ok {
		return sess, nil
	}

	cfg := s.cfg
	cfg.Root = root
	sess, err := s.open(&cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.sessions[root] = sess
	return sess, nil
}
