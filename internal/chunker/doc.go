// Package chunker divides source files into overlapping line windows for embedding and search.
//
// Line-based windows work the same way for every language in a mixed tree,
// which keeps the chunker free of parsers.
//
// # Basic Usage
//
//	c, err := chunker.New(50, 10)
//	if err != nil {
//	    log.Fatal(err) // *types.ConfigurationError when overlap >= window
//	}
//
//	for _, chunk := range c.Chunk("internal/app.go", content) {
//	    fmt.Printf("%s lines %d-%d\n", chunk.Identity(), chunk.StartLine, chunk.EndLine)
//	}
//
// # Window Layout
//
// Windows start every (window - overlap) lines. With a window of 50 and an
// overlap of 10, a 120-line file produces:
//
//	[1-50] [41-90] [81-120]
//
// The final window is clamped to the end of the file, so chunks always cover
// every line and the last EndLine equals the line count.
//
// # Identity
//
// A chunk's identity is "<file_path>:<start_line>". Chunking the same file
// twice yields the same identities, so storing chunks with an upsert keyed
// by identity replaces old entries instead of duplicating them.
//
// # Reading Files
//
// ReadFile returns a FileResult rather than an error. A file that cannot be
// read contributes no chunks; the caller aggregates the skips:
//
//	chunks, res := c.ChunkFile(root, path)
//	if !res.OK() {
//	    skipped = append(skipped, res.Skip())
//	}
package chunker
