package retrieval

import (
	"context"
	"errors"
	"os"

	"github.com/fyrsmithlabs/gav/internal/orchestrator"
)

// HintScore ranks explicitly requested paths above anything discovered.
const HintScore = 10.0

// HintProvider returns the files named in Request.Hints.Paths.
type HintProvider struct {
	opts Options
}

// NewHintProvider creates a hinted-path provider.
func NewHintProvider(opts Options) *HintProvider {
	return &HintProvider{opts: opts.withDefaults()}
}

func (p *HintProvider) Name() string { return "hints" }

// Candidates reads each hinted path. Missing, binary and out-of-root paths
// are skipped.
func (p *HintProvider) Candidates(ctx context.Context, req orchestrator.Request) ([]orchestrator.Candidate, error) {
	var out []orchestrator.Candidate
	seen := make(map[string]bool)
	for _, h := range req.Hints.Paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		abs, rel, err := resolve(p.opts.Root, h)
		if err != nil {
			if errors.Is(err, ErrOutsideRoot) {
				continue
			}
			return out, err
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true

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
		out = append(out, orchestrator.Candidate{
			Path:    rel,
			Content: snippet(content, 0, p.opts.SnippetBytes),
			Score:   HintScore,
			Reasons: []string{"explicitly requested"},
		})
	}
	return out, nil
}
