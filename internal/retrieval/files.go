package retrieval

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/gav/internal/ignore"
)

const (
	defaultMaxFileBytes  = 256 * 1024
	defaultSnippetBytes  = 4096
	defaultMaxCandidates = 200

	sniffBytes = 512
)

// ErrOutsideRoot is returned for paths that resolve outside the workspace.
var ErrOutsideRoot = errors.New("path outside workspace root")

// Options are shared by the file-backed providers.
type Options struct {
	Root          string
	Ignore        *ignore.Matcher
	MaxFileBytes  int64
	SnippetBytes  int
	MaxCandidates int
}

func (o Options) withDefaults() Options {
	if o.Root == "" {
		o.Root = "."
	}
	if abs, err := filepath.Abs(o.Root); err == nil {
		o.Root = abs
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = defaultMaxFileBytes
	}
	if o.SnippetBytes <= 0 {
		o.SnippetBytes = defaultSnippetBytes
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = defaultMaxCandidates
	}
	return o
}

// resolve maps a hint onto an absolute path and its slash-separated
// workspace-relative form.
func resolve(root, p string) (abs, rel string, err error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	abs = filepath.Clean(p)
	rel, err = filepath.Rel(root, abs)
	if err != nil {
		return "", "", fmt.Errorf("computing relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return abs, filepath.ToSlash(rel), nil
}

// readText returns the file content, or ok=false for directories, oversize
// and binary files.
func readText(path string, maxBytes int64) (string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false, err
	}
	if info.IsDir() || info.Size() > maxBytes {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if isBinary(data) {
		return "", false, nil
	}
	return string(data), true, nil
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	return bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(data)
}

// snippet returns at most limit bytes of content around offset, starting at
// a line boundary.
func snippet(content string, offset, limit int) string {
	if len(content) <= limit {
		return content
	}
	start := 0
	if offset > limit/4 {
		start = offset - limit/4
		if nl := strings.LastIndexByte(content[:start], '\n'); nl >= 0 {
			start = nl + 1
		}
	}
	end := start + limit
	if end > len(content) {
		end = len(content)
		start = end - limit
	}
	for start < end && !utf8.RuneStart(content[start]) {
		start++
	}
	for end > start && end < len(content) && !utf8.RuneStart(content[end]) {
		end--
	}
	return content[start:end]
}
