// Package types provides shared type definitions for codesoul.
//
// This package defines the domain types used across the ingestion and
// retrieval pipeline: chunks, index entries, retrieval results, personas and
// the error taxonomy.
//
// # Chunks
//
// Chunk is a window of a source file's lines. Its identity is derived from
// the file path and start line, which makes re-indexing idempotent:
//
//	chunk := types.Chunk{
//	    FilePath:  "internal/app.go",
//	    StartLine: 41,
//	    EndLine:   90,
//	    Content:   text,
//	}
//	chunk.Identity() // "internal/app.go:41"
//
// # Retrieval Results
//
// RetrievalResult is what a vector store returns from a query. Distance is a
// cosine distance, so lower values mean closer matches:
//
//	for _, r := range results {
//	    fmt.Println(r.Label(), r.Distance)
//	}
//
// # Errors
//
// Pipeline errors are typed so callers can branch on them:
//
//	var idxErr *types.IndexError
//	if errors.As(err, &idxErr) {
//	    log.Printf("index %s failed", idxErr.Op)
//	}
//
//	if errors.Is(err, types.ErrGenerationUnavailable) {
//	    // degraded mode, not a failure
//	}
package types
