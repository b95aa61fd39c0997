package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dshills/codesoul/pkg/types"
)

// DefaultIgnorePatterns are excluded from every scan unless overridden
var DefaultIgnorePatterns = []string{
	".git", "__pycache__", "node_modules", ".venv", "venv", "dist", "build",
	".idea", ".vscode", ".DS_Store", "*.pyc", "*.lock", "poetry.lock", "uv.lock",
	".codesoul_db",
}

// DefaultExtensions is the allow-list of source, markup and config extensions
var DefaultExtensions = []string{
	".py", ".js", ".ts", ".tsx", ".jsx", ".rs", ".go", ".java", ".c", ".cpp",
	".h", ".md", ".json", ".toml", ".yaml", ".yml", ".html", ".css",
}

// ErrRootNotDirectory is returned when the scan root is not a directory
var ErrRootNotDirectory = errors.New("scan root is not a directory")

// Config contains configuration for the scanner
type Config struct {
	IgnorePatterns []string // Raw patterns; defaults to DefaultIgnorePatterns
	Extensions     []string // Allowed extensions; defaults to DefaultExtensions
}

// Result is the outcome of a scan. Skipped holds subtrees and files that
// could not be read; they never fail the scan.
type Result struct {
	Root       string
	Files      []string // Absolute paths, lexical order
	Skipped    []types.ScanPartialFailure
	DirsPruned int
}

// Scanner walks a root directory applying ignore and extension filters
type Scanner struct {
	matcher    *Matcher
	extensions map[string]struct{}
	logger     zerolog.Logger
}

// New creates a new Scanner instance
func New(cfg Config, logger zerolog.Logger) *Scanner {
	ignore := cfg.IgnorePatterns
	if ignore == nil {
		ignore = DefaultIgnorePatterns
	}
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[ext] = struct{}{}
	}

	return &Scanner{
		matcher:    NewMatcher(ParsePatterns(ignore)),
		extensions: allowed,
		logger:     logger.With().Str("component", "scanner").Logger(),
	}
}

// Scan walks root on a dedicated goroutine and returns the full set of
// eligible files. Ignored directories are pruned before descent.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, absRoot)
	}

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := s.walk(ctx, absRoot)
		done <- outcome{result: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.result, out.err
	}
}

// walk performs the blocking directory traversal
func (s *Scanner) walk(ctx context.Context, root string) (*Result, error) {
	result := &Result{Root: root}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			if path == root {
				return err
			}
			s.skip(result, root, path, err.Error())
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			s.skip(result, root, path, relErr.Error())
			return nil
		}

		if d.IsDir() {
			if s.matcher.Ignored(rel) {
				result.DirsPruned++
				return filepath.SkipDir
			}
			return nil
		}

		if s.matcher.Ignored(rel) {
			return nil
		}

		if !s.eligible(path, d) {
			return nil
		}

		result.Files = append(result.Files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("root", root).
		Int("files", len(result.Files)).
		Int("skipped", len(result.Skipped)).
		Int("pruned", result.DirsPruned).
		Msg("scan complete")

	return result, nil
}

// eligible checks the extension allow-list and that the entry is a regular
// file (or a symlink to one)
func (s *Scanner) eligible(path string, d fs.DirEntry) bool {
	if _, ok := s.extensions[filepath.Ext(d.Name())]; !ok {
		return false
	}

	if d.Type().IsRegular() {
		return true
	}

	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		return err == nil && info.Mode().IsRegular()
	}

	return false
}

// skip records a non-fatal per-path failure
func (s *Scanner) skip(result *Result, root, path, reason string) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	result.Skipped = append(result.Skipped, types.ScanPartialFailure{Path: rel, Reason: reason})
	s.logger.Warn().Str("path", rel).Str("reason", reason).Msg("skipping unreadable path")
}
