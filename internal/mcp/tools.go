package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codesoul/internal/indexer"
	"github.com/dshills/codesoul/internal/session"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// maxReportedSkips caps the skipped paths listed in an index response
const maxReportedSkips = 5

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessionFor(path)
	if err != nil {
		return nil, internalError("failed to open index", err)
	}

	reset := getBoolDefault(args, "reset", false)
	stats, err := sess.Ingest(ctx, reset, func(ev indexer.Event) {
		s.logger.Info().Str("path", path).Str("stage", string(ev.Stage)).Msg(ev.Message)
	})
	if errors.Is(err, session.ErrIngesting) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	if err != nil {
		return nil, internalError("indexing failed", err)
	}

	p, err := sess.InitPersona(ctx)
	if err != nil {
		return nil, internalError("failed to initialize persona", err)
	}

	response := map[string]interface{}{
		"indexed":        true,
		"files_scanned":  stats.FilesScanned,
		"files_indexed":  stats.FilesIndexed,
		"files_skipped":  stats.FilesSkipped + stats.ScanSkipped,
		"chunks_created": stats.ChunksCreated,
		"duration_ms":    stats.Duration.Milliseconds(),
		"persona":        p.Name,
	}

	if len(stats.Skipped) > 0 {
		skipped := stats.Skipped
		if len(skipped) > maxReportedSkips {
			response["skipped_count"] = len(skipped)
			skipped = skipped[:maxReportedSkips]
		}
		messages := make([]string, len(skipped))
		for i := range skipped {
			messages[i] = skipped[i].Error()
		}
		response["skipped"] = messages
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", DefaultSearchLimit)
	if limit < 1 || limit > MaxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", MaxSearchLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	sess, err := s.sessionFor(path)
	if err != nil {
		return nil, internalError("failed to open index", err)
	}

	results, err := sess.Search(ctx, query, limit)
	if err != nil {
		return nil, internalError("search failed", err)
	}

	items := make([]map[string]interface{}, len(results))
	for i, r := range results {
		items[i] = map[string]interface{}{
			"rank":       i + 1,
			"distance":   r.Distance,
			"file":       r.FilePath,
			"start_line": r.StartLine,
			"end_line":   r.EndLine,
			"content":    r.Content,
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"count":   len(items),
		"results": items,
	})), nil
}

// handleAskCodebase handles the ask_codebase tool invocation. The index is
// built first when empty; the answer is collected from the stream.
func (s *Server) handleAskCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	question := strings.TrimSpace(getStringDefault(args, "question", ""))
	if question == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	sess, err := s.sessionFor(path)
	if err != nil {
		return nil, internalError("failed to open index", err)
	}

	if !sess.Ready() {
		if _, err := sess.EnsureIndexed(ctx, nil); err != nil && !errors.Is(err, session.ErrIngesting) {
			return nil, internalError("indexing failed", err)
		}
		if _, err := sess.InitPersona(ctx); err != nil {
			return nil, internalError("failed to initialize persona", err)
		}
	}

	var answer strings.Builder
	for frag := range sess.Answer(ctx, question) {
		answer.WriteString(frag)
	}
	return mcp.NewToolResultText(answer.String()), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessionFor(path)
	if err != nil {
		return nil, internalError("failed to open index", err)
	}

	stats, err := sess.Stats(ctx)
	if err != nil {
		return nil, internalError("failed to get status", err)
	}

	response := map[string]interface{}{
		"indexed":              stats.Count > 0,
		"path":                 path,
		"chunks_count":         stats.Count,
		"location":             stats.Location,
		"embedder":             sess.EmbedderID(),
		"generation_available": sess.GenerationAvailable(),
		"indexing":             sess.Ingesting(),
	}
	if p, ok := sess.Persona(); ok {
		response["persona"] = map[string]interface{}{
			"name":     p.Name,
			"tier":     p.Tier,
			"scripted": p.Scripted,
		}
	}
	if stats.Count == 0 {
		response["message"] = "Project not indexed. Use index_codebase tool to index this project."
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// pathArgs extracts the argument map and validates its path
func pathArgs(request mcp.CallToolRequest) (map[string]interface{}, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	return args, filepath.Clean(path), nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func internalError(message string, err error) error {
	return newMCPError(ErrorCodeInternalError, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is accessible
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Check if it's a directory
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Check if directory is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
