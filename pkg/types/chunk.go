package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// Metadata carries the lightweight per-chunk hints stored alongside the vector
type Metadata struct {
	IsDefinition bool   // Chunk text contains a definition-introducing token
	Language     string // File extension including the dot, e.g. ".py"
	LOC          int    // Lines in the chunk
}

// Chunk is a contiguous, possibly overlapping, slice of a file's lines
type Chunk struct {
	// Location
	FilePath  string // Relative to the indexed root
	StartLine int    // 1-based, inclusive
	EndLine   int    // 1-based, inclusive

	// Content
	Content string

	Metadata Metadata
}

// Identity returns the upsert key of the chunk. It depends only on the file
// path and start line, so re-indexing the same region overwrites the entry.
func (c Chunk) Identity() string {
	return ChunkIdentity(c.FilePath, c.StartLine)
}

// ChunkIdentity builds the identity for a chunk starting at startLine in filePath
func ChunkIdentity(filePath string, startLine int) string {
	return fmt.Sprintf("%s:%d", filePath, startLine)
}

// ContentHash computes the SHA-256 hash of the chunk content
func (c Chunk) ContentHash() [32]byte {
	return sha256.Sum256([]byte(c.Content))
}

// Validate checks the chunk's line bounds and content
func (c Chunk) Validate() error {
	if c.FilePath == "" {
		return errors.New("chunk file path cannot be empty")
	}

	if c.Content == "" {
		return ErrEmptyContent
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	return nil
}

// IndexEntry is the persisted form of a chunk plus its embedding vector.
// Only vector stores create and read these.
type IndexEntry struct {
	ID        string
	Vector    []float32
	Content   string
	FilePath  string
	StartLine int
	EndLine   int
	Metadata  Metadata
}

// NewIndexEntry pairs a chunk with its embedding
func NewIndexEntry(c Chunk, vector []float32) IndexEntry {
	return IndexEntry{
		ID:        c.Identity(),
		Vector:    vector,
		Content:   c.Content,
		FilePath:  c.FilePath,
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Metadata:  c.Metadata,
	}
}

// Validate checks that an entry can be stored
func (e IndexEntry) Validate() error {
	if e.ID == "" {
		return ErrInvalidEntryID
	}
	if len(e.Vector) == 0 {
		return ErrEmptyVector
	}
	return nil
}
