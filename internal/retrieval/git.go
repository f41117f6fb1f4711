package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"

	"github.com/fyrsmithlabs/gav/internal/orchestrator"
)

const (
	changedScore   = 1.5
	untrackedScore = 1.0
)

// GitProvider proposes files with uncommitted changes. Outside a
// repository it returns nothing.
type GitProvider struct {
	opts Options
}

// NewGitProvider creates a worktree-status provider.
func NewGitProvider(opts Options) *GitProvider {
	return &GitProvider{opts: opts.withDefaults()}
}

func (p *GitProvider) Name() string { return "git" }

func (p *GitProvider) Candidates(ctx context.Context, req orchestrator.Request) ([]orchestrator.Candidate, error) {
	repo, err := git.PlainOpenWithOptions(p.opts.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}

	branch := ""
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	// Status paths are relative to the worktree root, which may sit above
	// the workspace root.
	wtRoot := wt.Filesystem.Root()

	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []orchestrator.Candidate
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		fs := status[name]
		if fs.Worktree == git.Deleted || fs.Staging == git.Deleted ||
			(fs.Worktree == git.Unmodified && fs.Staging == git.Unmodified) {
			continue
		}

		abs := filepath.Join(wtRoot, filepath.FromSlash(name))
		_, rel, err := resolve(p.opts.Root, abs)
		if err != nil {
			continue
		}
		if p.opts.Ignore.Match(rel, false) || !matchesGlobs(req.Hints.Globs, rel) {
			continue
		}
		content, ok, err := readText(abs, p.opts.MaxFileBytes)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return out, err
		}
		if !ok {
			continue
		}

		c := orchestrator.Candidate{
			Path:    rel,
			Content: snippet(content, 0, p.opts.SnippetBytes),
		}
		switch {
		case fs.Worktree == git.Untracked:
			c.Score = untrackedScore
			c.Reasons = append(c.Reasons, "untracked")
		case fs.Staging != git.Unmodified:
			c.Score = changedScore
			c.Reasons = append(c.Reasons, "staged")
		default:
			c.Score = changedScore
			c.Reasons = append(c.Reasons, "modified")
		}
		if branch != "" {
			c.Reasons[len(c.Reasons)-1] += " on " + branch
		}
		out = append(out, c)
		if len(out) >= p.opts.MaxCandidates {
			break
		}
	}
	return out, nil
}
