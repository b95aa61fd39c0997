package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/codesoul/pkg/types"
)

// Store kinds
const (
	KindSQLite  = "sqlite"
	KindChromem = "chromem"

	// SQLiteFileName is the database file inside a store directory
	SQLiteFileName = "index.db"

	// CollectionName is the chromem collection holding the entries
	CollectionName = "codebase"
)

var (
	// ErrUnknownKind is returned by Open for an unsupported store kind
	ErrUnknownKind = errors.New("unknown store kind")
	// ErrClosed is returned when a closed store is used
	ErrClosed = errors.New("store closed")
)

// VectorStore persists index entries and answers nearest-neighbour queries.
// Implementations are safe for concurrent use.
type VectorStore interface {
	// Upsert inserts or replaces entries by ID. Zero entries is a no-op.
	Upsert(ctx context.Context, entries []types.IndexEntry) error

	// Query returns up to k entries ordered by ascending cosine distance
	// to vector. An empty store or k <= 0 yields no results.
	Query(ctx context.Context, vector []float32, k int) ([]types.RetrievalResult, error)

	// Count returns the number of stored entries
	Count(ctx context.Context) (int, error)

	// Location describes where the store persists its data
	Location() string

	// Reset removes every entry
	Reset(ctx context.Context) error

	Close() error
}

// Open opens (or creates) a store of the given kind under dir
func Open(kind, dir string) (VectorStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	switch strings.ToLower(kind) {
	case KindSQLite, "":
		return NewSQLiteStore(filepath.Join(dir, SQLiteFileName))
	case KindChromem:
		return NewChromemStore(dir)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// IsKnownKind reports whether kind names a supported store
func IsKnownKind(kind string) bool {
	switch strings.ToLower(kind) {
	case KindSQLite, KindChromem:
		return true
	}
	return false
}

// validateEntries checks every entry before a write so a bad batch leaves
// the store untouched
func validateEntries(entries []types.IndexEntry) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, entries[i].ID, err)
		}
	}
	return nil
}

// MetaStore is implemented by stores that can record store-level values
// next to the entries
type MetaStore interface {
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (value string, ok bool, err error)
}

var (
	_ VectorStore = (*SQLiteStore)(nil)
	_ VectorStore = (*ChromemStore)(nil)
	_ MetaStore   = (*SQLiteStore)(nil)
)
