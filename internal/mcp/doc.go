// Package mcp implements the Model Context Protocol (MCP) server for codesoul.
//
// The server exposes four tools to AI coding assistants:
//   - index_codebase: Index a source tree and derive its persona
//   - search_code: Return the chunks nearest to a query
//   - ask_codebase: Answer a question in the codebase's voice
//   - get_status: Report index size, store and persona
//
// Every tool takes an absolute "path". The server keeps one session per
// path, each with its own store under the configured database directory.
//
// # Tool: index_codebase
//
//	Request:
//	{
//	  "name": "index_codebase",
//	  "arguments": {"path": "/path/to/project", "reset": false}
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "files_scanned": 42,
//	  "files_indexed": 42,
//	  "files_skipped": 0,
//	  "chunks_created": 131,
//	  "duration_ms": 812,
//	  "persona": "The Hyperactive Startup Engineer"
//	}
//
// # Tool: search_code
//
//	{"name": "search_code", "arguments": {"path": "/p", "query": "session setup", "limit": 5}}
//
// Results are ranked by cosine distance, closest first, with file, line
// range and content.
//
// # Tool: ask_codebase
//
//	{"name": "ask_codebase", "arguments": {"path": "/p", "question": "where are chunks stored?"}}
//
// An empty index is built first. Without DEEPSEEK_API_KEY the answer only
// reports how many snippets were found.
//
// # Error Handling
//
// Errors are returned as *MCPError:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (store, embedder, filesystem)
//   - -32002: Indexing in progress
//   - -32004: Empty query or question
//
// # Logging
//
// The server logs to stderr; stdout is reserved for the protocol.
package mcp
