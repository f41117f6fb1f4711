package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/gav/internal/sanitize"
)

var (
	// ErrInvalidRequest is recorded when a request cannot be served.
	ErrInvalidRequest = errors.New("invalid context request")
	// ErrClosed is recorded when Gather is called after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// Strategy names how a bundle was assembled.
type Strategy string

const (
	StrategyGreedy   Strategy = "greedy"
	StrategyDegraded Strategy = "degraded"
)

// Hints scope a request.
type Hints struct {
	// Paths are always considered, relative to the workspace root.
	Paths []string `json:"paths,omitempty"`
	// Globs restrict workspace retrieval to matching paths.
	Globs []string `json:"globs,omitempty"`
	// MaxSources caps the bundle size; 0 means no cap.
	MaxSources int `json:"max_sources,omitempty"`
}

// Request asks for context to support one agent step.
type Request struct {
	Intent string `json:"intent"`
	Budget int    `json:"budget"`
	Hints  Hints  `json:"hints,omitempty"`
}

// Validate reports whether the request can be served.
func (r Request) Validate() error {
	if r.Budget <= 0 {
		return fmt.Errorf("%w: budget must be positive", ErrInvalidRequest)
	}
	if r.Hints.MaxSources < 0 {
		return fmt.Errorf("%w: max_sources must be >= 0", ErrInvalidRequest)
	}
	if err := sanitize.ValidateGlobPatterns(r.Hints.Globs); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Candidate is a provider's proposal before costing.
type Candidate struct {
	Path    string
	Content string
	Score   float64
	Reasons []string
}

// Source is one entry of a bundle.
type Source struct {
	Path          string   `json:"path"`
	Content       string   `json:"content"`
	Score         float64  `json:"score"`
	Reasons       []string `json:"reasons"`
	EstimatedCost int      `json:"estimated_cost"`
}

// Metadata describes how a bundle was produced.
type Metadata struct {
	TokensUsed int      `json:"tokens_used"`
	CacheHits  int      `json:"cache_hits"`
	Strategy   Strategy `json:"strategy"`
	Considered int      `json:"considered"`
	Faults     []string `json:"faults,omitempty"`
}

// Bundle is the context handed to the planner. Callers own the returned value.
type Bundle struct {
	Sources  []Source `json:"sources"`
	Metadata Metadata `json:"metadata"`
}

// Clone returns a deep copy.
func (b Bundle) Clone() Bundle {
	out := Bundle{Metadata: b.Metadata}
	if b.Metadata.Faults != nil {
		out.Metadata.Faults = append([]string(nil), b.Metadata.Faults...)
	}
	if b.Sources != nil {
		out.Sources = make([]Source, len(b.Sources))
		for i, s := range b.Sources {
			s.Reasons = append([]string(nil), s.Reasons...)
			out.Sources[i] = s
		}
	}
	return out
}

// Provider lists and scores candidate sources. Implementations must honour
// ctx cancellation and bound their own running time.
type Provider interface {
	Name() string
	Candidates(ctx context.Context, req Request) ([]Candidate, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, req Request) ([]Candidate, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Candidates(ctx context.Context, req Request) ([]Candidate, error) {
	return p.Fn(ctx, req)
}
