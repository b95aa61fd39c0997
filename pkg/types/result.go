package types

import "fmt"

// RetrievalResult is a read-only projection of a stored entry returned by a query
type RetrievalResult struct {
	// Identification
	ID string

	// Location
	FilePath  string // Relative to the indexed root
	StartLine int
	EndLine   int

	Content  string
	Metadata Metadata

	// Scoring: lower is more similar (cosine distance)
	Distance float64
}

// Label renders the "{file_path}[{start}-{end}]" heading used in context blocks
func (r RetrievalResult) Label() string {
	return fmt.Sprintf("%s[%d-%d]", r.FilePath, r.StartLine, r.EndLine)
}

// Validate checks if the retrieval result is valid
func (r RetrievalResult) Validate() error {
	if r.ID == "" {
		return ErrInvalidEntryID
	}

	if r.FilePath == "" {
		return ErrMissingFileInfo
	}

	if r.Distance < 0 {
		return ErrInvalidDistance
	}

	return nil
}

// IndexStats summarises a vector store
type IndexStats struct {
	Count    int    // Entries stored after the last completed upsert
	Location string // Where the store persists its data
}
