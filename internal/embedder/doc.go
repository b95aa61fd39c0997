// Package embedder generates vector embeddings for code chunks using various providers.
//
// The embedder supports remote providers (Jina AI, OpenAI), a local Ollama
// server and an offline hashing provider, and provides batching, caching,
// and retries for production use.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "def parse(path): ...",
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Batch Processing
//
// GenerateBatch returns one embedding per input, in input order. HTTP
// providers split requests larger than MaxBatchSize into several API calls.
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//	vectors := resp.Vectors()
//
// # Provider Selection
//
// With an empty Config.Provider the embedder picks a provider from the
// environment:
//
//  1. If CODESOUL_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else → local hashing provider (offline mode)
//
// Ollama is only used when selected explicitly. Its server URL comes from
// Config.BaseURL or OLLAMA_HOST.
//
// # Provider Comparison
//
// Jina AI: 1024 dimensions, code-aware.
//
// OpenAI: 1536 dimensions, general purpose.
//
// Ollama: model dependent (768 for nomic-embed-text), runs locally.
//
// Local: 384 dimensions. Feature hashing over identifier tokens, no model
// and no network. Good enough to rank chunks that share vocabulary with the
// query; use a real model for semantic matches.
//
// # Caching
//
// Providers share an LRU cache keyed by the SHA-256 of the text. Cached
// texts are never sent to the provider again; Get and Set copy vectors so
// callers cannot corrupt cached entries.
//
// # Error Handling
//
// Transient failures (network errors, 429 and 5xx responses) are retried
// with exponential backoff. Other client errors fail immediately:
//
//	_, err := emb.GenerateBatch(ctx, req)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // provider unavailable or rejected the request
//	}
package embedder
