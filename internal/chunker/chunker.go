package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/codesoul/pkg/types"
)

const (
	// DefaultWindow is the number of lines per chunk
	DefaultWindow = 50

	// DefaultOverlap is the number of lines shared by consecutive chunks
	DefaultOverlap = 10
)

// definitionTokens are substrings that usually introduce a definition.
// False positives are fine: IsDefinition is a ranking and display hint.
var definitionTokens = []string{
	"def ", "class ", "function ", "interface ", "struct ",
	"func ", "fn ", "impl ", "type ",
}

// Chunker splits file content into fixed-size overlapping line windows
type Chunker struct {
	window  int
	overlap int
}

// New creates a Chunker. The step (window - overlap) must be at least one line.
func New(window, overlap int) (*Chunker, error) {
	if window <= 0 {
		return nil, &types.ConfigurationError{Field: "window", Reason: fmt.Sprintf("must be positive, got %d", window)}
	}
	if overlap < 0 {
		return nil, &types.ConfigurationError{Field: "overlap", Reason: fmt.Sprintf("must not be negative, got %d", overlap)}
	}
	if overlap >= window {
		return nil, &types.ConfigurationError{
			Field:  "overlap",
			Reason: fmt.Sprintf("must be smaller than window (overlap=%d, window=%d)", overlap, window),
		}
	}
	return &Chunker{window: window, overlap: overlap}, nil
}

// NewDefault creates a Chunker with the default 50/10 window
func NewDefault() *Chunker {
	return &Chunker{window: DefaultWindow, overlap: DefaultOverlap}
}

// Window returns the configured window size
func (c *Chunker) Window() int { return c.window }

// Overlap returns the configured overlap
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits content into windows starting at lines 1, 1+step, 1+2*step...
// The last window is clamped so its EndLine equals the file's line count.
// Blank content yields no chunks.
func (c *Chunker) Chunk(filePath, content string) []types.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := splitLines(content)
	total := len(lines)
	if total == 0 {
		return nil
	}

	step := c.window - c.overlap
	language := filepath.Ext(filePath)
	chunks := make([]types.Chunk, 0, total/step+1)

	for start := 0; start < total; start += step {
		end := start + c.window
		if end > total {
			end = total
		}

		text := strings.Join(lines[start:end], "\n")
		chunks = append(chunks, types.Chunk{
			FilePath:  filePath,
			StartLine: start + 1,
			EndLine:   end,
			Content:   text,
			Metadata: types.Metadata{
				IsDefinition: IsDefinition(text),
				Language:     language,
				LOC:          end - start,
			},
		})

		if end == total {
			break
		}
	}

	return chunks
}

// IsDefinition reports whether text contains a definition-introducing token
func IsDefinition(text string) bool {
	for _, tok := range definitionTokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

// splitLines splits on \n, \r\n and \r. A single trailing line break does
// not produce an extra empty line.
func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}

// FileResult is the outcome of reading one file: either content or the
// reason it was skipped.
type FileResult struct {
	Path    string // Absolute path
	RelPath string // Relative to the indexed root, slash separated
	Content string
	Err     error // Non-nil when the file was skipped
}

// OK reports whether the file was read
func (r FileResult) OK() bool {
	return r.Err == nil
}

// Skip converts a failed read into a partial-failure record
func (r FileResult) Skip() types.ScanPartialFailure {
	reason := "unknown"
	if r.Err != nil {
		reason = r.Err.Error()
	}
	return types.ScanPartialFailure{Path: r.RelPath, Reason: reason}
}

// ReadFile reads path as text. Invalid UTF-8 sequences are dropped rather
// than failing the read.
func ReadFile(root, path string) FileResult {
	res := FileResult{Path: path, RelPath: path}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		res.Err = fmt.Errorf("failed to compute relative path: %w", err)
		return res
	}
	res.RelPath = filepath.ToSlash(rel)

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to read file: %w", err)
		return res
	}

	res.Content = strings.ToValidUTF8(string(data), "")
	return res
}

// ChunkFile reads path and chunks it. A failed read yields no chunks and
// the failure in the returned FileResult.
func (c *Chunker) ChunkFile(root, path string) ([]types.Chunk, FileResult) {
	res := ReadFile(root, path)
	if !res.OK() {
		return nil, res
	}
	return c.Chunk(res.RelPath, res.Content), res
}
