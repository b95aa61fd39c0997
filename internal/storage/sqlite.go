package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/codesoul/pkg/types"
)

// SQLiteStore implements VectorStore on a single SQLite file. Vectors are
// stored as little-endian float32 blobs and scored in Go.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu     sync.RWMutex
	closed bool
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens the store at dbPath, creating and migrating it as
// needed. ":memory:" gives a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Location returns the database file path
func (s *SQLiteStore) Location() string {
	return s.path
}

// Upsert writes all entries in one transaction
func (s *SQLiteStore) Upsert(ctx context.Context, entries []types.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := validateEntries(entries); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, file_path, start_line, end_line, content, vector, dimension,
		                     is_definition, language, loc, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			content = excluded.content,
			vector = excluded.vector,
			dimension = excluded.dimension,
			is_definition = excluded.is_definition,
			language = excluded.language,
			loc = excluded.loc,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	now := time.Now()
	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.ID, e.FilePath, e.StartLine, e.EndLine, e.Content,
			serializeVector(e.Vector), len(e.Vector),
			e.Metadata.IsDefinition, e.Metadata.Language, e.Metadata.LOC, now)
		if err != nil {
			return fmt.Errorf("failed to upsert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Query scans every entry of the query's dimension and keeps the k closest
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]types.RetrievalResult, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, start_line, end_line, content, vector,
		       is_definition, COALESCE(language, ''), loc
		FROM entries
		WHERE dimension = ?
	`, len(vector))
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]types.RetrievalResult, 0, k)
	for rows.Next() {
		var r types.RetrievalResult
		var blob []byte
		if err := rows.Scan(&r.ID, &r.FilePath, &r.StartLine, &r.EndLine, &r.Content, &blob,
			&r.Metadata.IsDefinition, &r.Metadata.Language, &r.Metadata.LOC); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		r.Distance = cosineDistance(vector, deserializeVector(blob))
		results = append(results, r)

		// Trim periodically so memory stays bounded on large indexes
		if len(results) >= 4*k+1024 {
			results = topK(results, k)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	return topK(results, k), nil
}

// Count returns the number of stored entries
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Reset deletes every entry and the store metadata
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries; DELETE FROM store_meta;"); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	return nil
}

// SetMeta records a store-level value, such as the embedding model
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta returns a store-level value; ok is false when unset
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (value string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	err = s.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, true, nil
}
