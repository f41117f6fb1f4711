package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/fyrsmithlabs/gav/internal/orchestrator"
)

const (
	pathMatchScore    = 2.0
	contentMatchScore = 0.5
	maxContentMatches = 10
)

// WorkspaceProvider walks the workspace and scores text files against the
// request intent.
type WorkspaceProvider struct {
	opts Options
}

// NewWorkspaceProvider creates a workspace walker.
func NewWorkspaceProvider(opts Options) *WorkspaceProvider {
	return &WorkspaceProvider{opts: opts.withDefaults()}
}

func (p *WorkspaceProvider) Name() string { return "workspace" }

// Candidates returns at most MaxCandidates files with a positive score.
// Files are ordered by score, then by walk order.
func (p *WorkspaceProvider) Candidates(ctx context.Context, req orchestrator.Request) ([]orchestrator.Candidate, error) {
	terms := Terms(req.Intent)
	if len(terms) == 0 {
		return nil, nil
	}

	var out []orchestrator.Candidate
	err := filepath.WalkDir(p.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped rather than failing the walk.
			if d != nil && d.IsDir() && path != p.opts.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == p.opts.Root {
			return nil
		}

		rel, err := filepath.Rel(p.opts.Root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if p.opts.Ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !matchesGlobs(req.Hints.Globs, rel) {
			return nil
		}

		content, ok, err := readText(path, p.opts.MaxFileBytes)
		if err != nil || !ok {
			return nil
		}
		if c, ok := p.score(rel, content, terms); ok {
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return out, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > p.opts.MaxCandidates {
		out = out[:p.opts.MaxCandidates]
	}
	return out, nil
}

func (p *WorkspaceProvider) score(rel, content string, terms []string) (orchestrator.Candidate, bool) {
	c := orchestrator.Candidate{Path: rel}
	lowerPath := strings.ToLower(rel)
	lowerContent := strings.ToLower(content)
	first := -1

	for _, t := range terms {
		if strings.Contains(lowerPath, t) {
			c.Score += pathMatchScore
			c.Reasons = append(c.Reasons, fmt.Sprintf("path matches %q", t))
		}
		n := strings.Count(lowerContent, t)
		if n == 0 {
			continue
		}
		if i := strings.Index(lowerContent, t); first < 0 || i < first {
			first = i
		}
		c.Reasons = append(c.Reasons, fmt.Sprintf("content mentions %q %d times", t, n))
		if n > maxContentMatches {
			n = maxContentMatches
		}
		c.Score += float64(n) * contentMatchScore
	}
	if c.Score == 0 {
		return c, false
	}
	if first < 0 {
		first = 0
	}
	c.Content = snippet(content, first, p.opts.SnippetBytes)
	return c, true
}

func matchesGlobs(globs []string, rel string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}
