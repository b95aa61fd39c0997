// Package indexer coordinates the end-to-end ingestion pipeline for a source tree.
//
// The indexer orchestrates scanning, reading, chunking, embedding and storage,
// managing concurrency and error handling so a single unreadable file never
// stops a pass.
//
// # Basic Usage
//
//	idx := indexer.New(scanner, chunker, ix, logger)
//
//	stats, err := idx.IndexProject(ctx, "/path/to/project", &indexer.Config{Reset: false},
//	    func(ev indexer.Event) { fmt.Println(ev.Message) })
//
//	fmt.Printf("Indexed %d files (%d chunks) in %v\n",
//	    stats.FilesIndexed, stats.ChunksCreated, stats.Duration)
//
// # Indexing Pipeline
//
//  1. Reset: optional drop-and-recreate of the store
//  2. Embedder check: a store built with another embedding model is reset
//  3. Scan: walk the root, prune ignored directories, keep allowed extensions
//  4. Read & Chunk: fixed line windows with overlap (parallel)
//  5. Embed & Store: vector batches, then one upsert keyed by "path:start"
//
// Upserts make re-indexing idempotent: running the same pass twice leaves
// the entry count unchanged.
//
// # Concurrent Processing
//
// Files are read by a worker pool bounded by a channel semaphore:
//
//	semaphore := make(chan struct{}, workers)
//
// Each worker writes only its own result slot, so chunk order follows the
// scanner's lexical file order regardless of scheduling. Default: NumCPU()
// workers.
//
// # Error Handling
//
// Unreadable files become types.ScanPartialFailure records in
// Statistics.Skipped and are counted in FilesSkipped. Embedding or storage
// failures abort the pass with a *types.IndexError; nothing from a failed
// batch is written.
//
// # Progress
//
// The ProgressFunc receives plain-text Events ("Found 12 files.", "Created
// 40 chunks from 12 files.") suitable for a terminal or a status line.
//
// # Locking
//
// IndexLock is a non-blocking guard callers use to refuse a second
// ingestion of the same store while one is running.
package indexer
