// Package ignore turns gitignore-style files into glob matchers for
// workspace retrieval.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// Pattern is one compiled ignore rule.
type Pattern struct {
	Glob    string
	DirOnly bool
}

// Matcher reports whether workspace-relative paths are ignored.
type Matcher struct {
	patterns []Pattern
}

// Parser reads gitignore-style files.
type Parser struct {
	// IgnoreFiles are looked up relative to the project root.
	IgnoreFiles []string

	// Fallback lines are used when none of IgnoreFiles exist.
	Fallback []string
}

// NewParser creates a parser for the given ignore file names.
func NewParser(ignoreFiles, fallback []string) *Parser {
	return &Parser{IgnoreFiles: ignoreFiles, Fallback: fallback}
}

// ParseProject combines every ignore file found under root into one matcher.
// .git is always ignored.
func (p *Parser) ParseProject(root string) (*Matcher, error) {
	lines := []string{".git/"}
	found := false

	for _, name := range p.IgnoreFiles {
		fileLines, err := readLines(filepath.Join(root, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		lines = append(lines, fileLines...)
		found = true
	}
	if !found {
		lines = append(lines, p.Fallback...)
	}
	return Compile(lines)
}

// Compile builds a matcher from gitignore lines. Comments, blanks and
// negations are skipped.
func Compile(lines []string) (*Matcher, error) {
	m := &Matcher{}
	seen := make(map[Pattern]bool)
	for _, line := range lines {
		pat, ok := parseLine(line)
		if !ok || seen[pat] {
			continue
		}
		if _, err := doublestar.Match(pat.Glob, "sample"); err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", line, err)
		}
		seen[pat] = true
		m.patterns = append(m.patterns, pat)
	}
	return m, nil
}

// Match reports whether rel (slash-separated, relative to the root) is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	rel = filepath.ToSlash(strings.TrimPrefix(rel, "./"))
	for _, p := range m.patterns {
		if !p.DirOnly || isDir {
			if ok, _ := doublestar.Match(p.Glob, rel); ok {
				return true
			}
		}
		// Anything beneath an ignored directory is ignored too.
		if ok, _ := doublestar.Match(p.Glob+"/**", rel); ok {
			return true
		}
	}
	return false
}

// Patterns returns the compiled globs in declaration order.
func (m *Matcher) Patterns() []Pattern {
	return append([]Pattern(nil), m.patterns...)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func parseLine(line string) (Pattern, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return Pattern{}, false
	}

	var p Pattern
	if strings.HasSuffix(line, "/") {
		p.DirOnly = true
		line = strings.TrimRight(line, "/")
	}

	// A slash anywhere but the end anchors the pattern at the root.
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return Pattern{}, false
	}
	if !anchored && !strings.HasPrefix(line, "**/") {
		line = "**/" + line
	}
	p.Glob = line
	return p, true
}
