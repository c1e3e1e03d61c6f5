package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProtectMatcher checks device paths against a set of protected patterns.
// Patterns containing '/' match the full resolved path; others match the
// basename only, so "nvme0n1*" protects a disk and all its partitions.
type ProtectMatcher struct {
	patterns []protectPattern
}

type protectPattern struct {
	pattern   string
	matchPath bool
}

// NewProtectMatcher creates a ProtectMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewProtectMatcher(rawPatterns []string) *ProtectMatcher {
	var patterns []protectPattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, protectPattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &ProtectMatcher{patterns: patterns}
}

// Match returns the first pattern protecting path, if any.
func (m *ProtectMatcher) Match(path string) (string, bool) {
	if m == nil {
		return "", false
	}
	normalized := filepath.ToSlash(path)
	basename := filepath.Base(path)

	for _, p := range m.patterns {
		subject := basename
		if p.matchPath {
			subject = normalized
		}
		matched, err := filepath.Match(p.pattern, subject)
		if err != nil {
			// Bad pattern: skip.
			continue
		}
		if matched {
			return p.pattern, true
		}
	}
	return "", false
}

// Len returns the number of active patterns.
func (m *ProtectMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// ParseProtectFile reads a protect file, one pattern per line.
// Returns nil and no error if the file does not exist.
func ParseProtectFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening protect file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading protect file: %w", err)
	}
	return patterns, nil
}
