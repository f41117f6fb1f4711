// Package sanitize validates untrusted request input.
package sanitize

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ErrInvalidPattern indicates a glob pattern is malformed or dangerous.
var ErrInvalidPattern = errors.New("invalid or dangerous pattern")

// maxPatternLen bounds a single glob.
const maxPatternLen = 512

// dangerousPatternChars are shell metacharacters and runs that make
// matching pathologically slow. Braces and brackets are doublestar syntax
// and stay allowed.
var dangerousPatternChars = regexp.MustCompile(`[;\|\$\x60<>&\(\)]|\.{3,}|\*{3,}`)

// ValidateGlobPattern checks a workspace glob. Empty patterns are allowed.
func ValidateGlobPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	if len(pattern) > maxPatternLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidPattern, maxPatternLen)
	}
	if dangerousPatternChars.MatchString(pattern) {
		return fmt.Errorf("%w: contains dangerous characters", ErrInvalidPattern)
	}
	if strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("%w: must be relative to the workspace", ErrInvalidPattern)
	}
	for _, seg := range strings.Split(pattern, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: contains path traversal", ErrInvalidPattern)
		}
	}
	// path.Match validates the whole pattern even when it does not match.
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return nil
}

// ValidateGlobPatterns validates a slice of glob patterns.
func ValidateGlobPatterns(patterns []string) error {
	for i, p := range patterns {
		if err := ValidateGlobPattern(p); err != nil {
			return fmt.Errorf("pattern[%d] %q: %w", i, p, err)
		}
	}
	return nil
}
