// Package storage persists index entries and answers nearest-neighbour queries.
//
// Two VectorStore implementations share one contract:
//   - SQLiteStore: a single SQLite file with an entries table, scored by
//     brute-force cosine distance in Go
//   - ChromemStore: a persistent chromem-go collection
//
// Both key entries by chunk identity ("<file_path>:<start_line>"), so an
// upsert of an existing identity replaces the stored row.
//
// # Basic Usage
//
//	store, err := storage.Open(storage.KindSQLite, ".codesoul_db/3f2a9c")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Upsert(ctx, entries)
//	results, err := store.Query(ctx, queryVector, 5)
//	for _, r := range results {
//	    fmt.Printf("%s (distance %.3f)\n", r.Label(), r.Distance)
//	}
//
// # Distance
//
// Distance is 1 - cosine similarity, clamped to [0, 2]. Lower is more
// similar. Results come back in ascending distance; ties are broken by ID.
//
// # SQLite Schema
//
// Tables:
//   - schema_version: applied migrations (semver)
//   - entries: id, location, content, vector blob, dimension, metadata
//   - store_meta: key/value pairs such as the embedding model
//
// Queries only score rows whose dimension matches the query vector, so an
// index filled by a different embedding provider returns nothing rather
// than garbage.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
package storage
