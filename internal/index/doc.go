// Package index pairs a vector store with an embedder.
//
// IndexChunks embeds chunks in concurrent batches and writes them in a
// single upsert; Search embeds a question and returns the nearest chunks.
// Failures from either side come back as *types.IndexError, whose Op
// names the step that failed ("embed", "upsert", "query", "stats", "reset").
//
//	ix := index.New(store, emb, index.WithLogger(logger))
//	if _, err := ix.IndexChunks(ctx, chunks); err != nil {
//	    return err
//	}
//	results, err := ix.Search(ctx, "where is the session created?", index.DefaultTopK)
package index
