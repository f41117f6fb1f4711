// Package tokens estimates the token cost of candidate context.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator returns a token cost for a piece of content.
// Implementations must be safe for concurrent use.
type Estimator interface {
	Estimate(content string) int
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(content string) int

// Estimate implements Estimator.
func (f EstimatorFunc) Estimate(content string) int { return f(content) }

// DefaultCharsPerToken approximates English prose and source code for
// BPE tokenizers.
const DefaultCharsPerToken = 4

// Heuristic estimates by byte length, rounding up so any non-empty
// content costs at least one token.
type Heuristic struct {
	CharsPerToken int
}

// Estimate implements Estimator.
func (h Heuristic) Estimate(content string) int {
	if content == "" {
		return 0
	}
	per := h.CharsPerToken
	if per <= 0 {
		per = DefaultCharsPerToken
	}
	return (len(content) + per - 1) / per
}

// Tiktoken counts tokens with a BPE encoding such as cl100k_base.
type Tiktoken struct {
	enc      *tiktoken.Tiktoken
	fallback Heuristic
}

// NewTiktoken loads the named encoding. Loading may fetch the BPE ranks
// over the network on first use.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Estimate implements Estimator. The encoder panics on some inputs; those
// fall back to the heuristic.
func (t *Tiktoken) Estimate(content string) (n int) {
	if content == "" {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			n = t.fallback.Estimate(content)
		}
	}()
	return len(t.enc.Encode(content, []string{"all"}, nil))
}

// New returns the estimator named by kind ("heuristic" or "tiktoken").
// When the tiktoken encoding cannot be loaded the heuristic is returned
// together with the load error, so callers can log and continue.
func New(kind, encoding string) (Estimator, error) {
	switch kind {
	case "", "heuristic":
		return Heuristic{}, nil
	case "tiktoken":
		tk, err := NewTiktoken(encoding)
		if err != nil {
			return Heuristic{}, err
		}
		return tk, nil
	default:
		return Heuristic{}, fmt.Errorf("unknown estimator %q", kind)
	}
}
