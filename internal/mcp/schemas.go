package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Limits for search_code
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 100
)

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a source tree into overlapping line chunks so it can be searched and questioned",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the project root"),
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, drop the existing index before indexing (full rebuild)",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Return the indexed code chunks most similar to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to an indexed project"),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     DefaultSearchLimit,
					"minimum":     1,
					"maximum":     MaxSearchLimit,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// askCodebaseTool returns the tool definition for ask_codebase
func askCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_codebase",
		Description: "Ask the codebase a question; it answers in character from retrieved code context",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the project root; indexed first if needed"),
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question about the code",
				},
			},
			Required: []string{"path", "question"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index size, store location, embedder and persona for a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the project"),
			},
			Required: []string{"path"},
		},
	}
}
