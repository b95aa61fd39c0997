package scanner

import (
	"path/filepath"
	"strings"
)

// PatternKind distinguishes the two supported ignore pattern forms
type PatternKind int

const (
	// PatternLiteral matches a path segment or base name exactly (case-sensitive)
	PatternLiteral PatternKind = iota
	// PatternSuffixGlob matches base names ending in a suffix ("*.ext" form)
	PatternSuffixGlob
)

// Pattern is an ignore rule. Only two forms exist: a literal name and a
// single leading-wildcard suffix glob. Full glob syntax is not supported.
type Pattern struct {
	Kind  PatternKind
	Value string // literal name, or the suffix without the leading "*"
}

// Literal returns a pattern matching the exact name
func Literal(name string) Pattern {
	return Pattern{Kind: PatternLiteral, Value: name}
}

// SuffixGlob returns a pattern matching base names ending in suffix
func SuffixGlob(suffix string) Pattern {
	return Pattern{Kind: PatternSuffixGlob, Value: suffix}
}

// ParsePattern turns "*.lock" into SuffixGlob(".lock") and anything else into a Literal
func ParsePattern(s string) Pattern {
	if strings.HasPrefix(s, "*") && len(s) > 1 {
		return SuffixGlob(s[1:])
	}
	return Literal(s)
}

// ParsePatterns parses a list of raw ignore strings, dropping blanks
func ParsePatterns(raw []string) []Pattern {
	patterns := make([]Pattern, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		patterns = append(patterns, ParsePattern(s))
	}
	return patterns
}

// String renders the pattern in its source form
func (p Pattern) String() string {
	if p.Kind == PatternSuffixGlob {
		return "*" + p.Value
	}
	return p.Value
}

// matchSegment reports whether a single path segment matches a literal pattern
func (p Pattern) matchSegment(segment string) bool {
	return p.Kind == PatternLiteral && segment == p.Value
}

// matchBase reports whether a base name matches the pattern
func (p Pattern) matchBase(base string) bool {
	switch p.Kind {
	case PatternSuffixGlob:
		return strings.HasSuffix(base, p.Value)
	default:
		return base == p.Value
	}
}

// Matcher evaluates a set of patterns against relative paths
type Matcher struct {
	patterns []Pattern
}

// NewMatcher creates a matcher over the given patterns
func NewMatcher(patterns []Pattern) *Matcher {
	return &Matcher{patterns: patterns}
}

// Ignored reports whether relPath (slash or OS separated, relative to the
// scan root) is excluded: any segment equal to a literal pattern, or a base
// name matching any pattern.
func (m *Matcher) Ignored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == "." || relPath == "" {
		return false
	}

	segments := strings.Split(relPath, "/")
	for _, seg := range segments {
		for _, p := range m.patterns {
			if p.matchSegment(seg) {
				return true
			}
		}
	}

	base := segments[len(segments)-1]
	for _, p := range m.patterns {
		if p.matchBase(base) {
			return true
		}
	}

	return false
}
