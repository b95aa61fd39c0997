package storage

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/dshills/codesoul/pkg/types"
)

// Metadata keys of a chromem document
const (
	metaFilePath     = "file_path"
	metaStartLine    = "start_line"
	metaEndLine      = "end_line"
	metaIsDefinition = "is_definition"
	metaLanguage     = "language"
	metaLOC          = "loc"
)

// ChromemStore implements VectorStore on a persistent chromem-go database.
// Documents always carry their embedding, so the collection never calls
// an embedding function.
type ChromemStore struct {
	dir string

	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	closed     bool
}

// NewChromemStore opens the chromem database persisted under dir
func NewChromemStore(dir string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem database: %w", err)
	}

	c, err := db.GetOrCreateCollection(CollectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	return &ChromemStore{dir: dir, db: db, collection: c}, nil
}

// noEmbed guards against chromem computing embeddings itself
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: documents must carry embeddings", types.ErrEmptyVector)
}

func (s *ChromemStore) Location() string {
	return s.dir
}

func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Upsert adds the entries; chromem replaces documents with an existing ID
func (s *ChromemStore) Upsert(ctx context.Context, entries []types.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := validateEntries(entries); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Content,
			Embedding: e.Vector,
			Metadata: map[string]string{
				metaFilePath:     e.FilePath,
				metaStartLine:    strconv.Itoa(e.StartLine),
				metaEndLine:      strconv.Itoa(e.EndLine),
				metaIsDefinition: strconv.FormatBool(e.Metadata.IsDefinition),
				metaLanguage:     e.Metadata.Language,
				metaLOC:          strconv.Itoa(e.Metadata.LOC),
			},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query returns the k nearest documents. chromem rejects k larger than
// the collection, so k is clamped first.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int) ([]types.RetrievalResult, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	k = min(k, count)

	found, err := s.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	results := make([]types.RetrievalResult, len(found))
	for i, r := range found {
		results[i] = types.RetrievalResult{
			ID:        r.ID,
			FilePath:  r.Metadata[metaFilePath],
			StartLine: atoi(r.Metadata[metaStartLine]),
			EndLine:   atoi(r.Metadata[metaEndLine]),
			Content:   r.Content,
			Metadata: types.Metadata{
				IsDefinition: r.Metadata[metaIsDefinition] == "true",
				Language:     r.Metadata[metaLanguage],
				LOC:          atoi(r.Metadata[metaLOC]),
			},
			Distance: clampDistance(1 - float64(r.Similarity)),
		}
	}

	sortResults(results)
	return results, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.collection.Count(), nil
}

// Reset drops and recreates the collection
func (s *ChromemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.db.DeleteCollection(CollectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := s.db.GetOrCreateCollection(CollectionName, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	s.collection = c
	return nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
