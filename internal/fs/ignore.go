package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"

	"cfs-go/internal/cfs"
)

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against the whole name; false = match against each segment
}

// IgnoreMatcher decides which uploaded names are skipped.
// Patterns without '/' match any single segment of the name, so ".git"
// drops a whole uploaded .git folder. Patterns with '/' match the full
// slash-separated name relative to the upload directory.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given upload name should be ignored.
func (m *IgnoreMatcher) Match(name string) bool {
	if len(m.patterns) == 0 || name == "" {
		return false
	}

	name = strings.Trim(name, "/")
	segments := strings.Split(name, "/")

	for _, p := range m.patterns {
		if p.matchPath {
			// Bad pattern: path.Match returns an error and no match.
			if ok, _ := path.Match(p.pattern, name); ok {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if ok, _ := path.Match(p.pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

// Ignored implements cfs.NameFilter.
func (m *IgnoreMatcher) Ignored(name string) bool {
	return m.Match(name)
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}

// Compile-time check that IgnoreMatcher implements cfs.NameFilter interface
var _ cfs.NameFilter = (*IgnoreMatcher)(nil)
