package secrets

import (
	"fmt"
	"regexp"
	"sort"
)

// Config configures the scrubber.
type Config struct {
	Enabled         bool
	Rules           []Rule
	RedactionString string
}

// DefaultConfig returns an enabled config with DefaultRules.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Rules:           DefaultRules(),
		RedactionString: "[REDACTED]",
	}
}

// Result reports what Scrub changed. Matched values are never retained.
type Result struct {
	Scrubbed string
	Findings map[string]int
}

// Total returns the number of redacted spans.
func (r *Result) Total() int {
	n := 0
	for _, c := range r.Findings {
		n += c
	}
	return n
}

// Scrubber redacts secrets from content.
type Scrubber interface {
	Scrub(content string) *Result
	IsEnabled() bool
}

type compiledRule struct {
	id string
	re *regexp.Regexp
}

type scrubber struct {
	enabled     bool
	replacement string
	rules       []compiledRule
}

// New compiles cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &scrubber{enabled: cfg.Enabled, replacement: cfg.RedactionString}
	if s.replacement == "" {
		s.replacement = "[REDACTED]"
	}
	seen := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if r.ID == "" || seen[r.ID] {
			return nil, fmt.Errorf("rule id %q is empty or duplicated", r.ID)
		}
		seen[r.ID] = true
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, re: re})
	}
	return s, nil
}

// Nop returns a disabled scrubber.
func Nop() Scrubber {
	return &scrubber{}
}

func (s *scrubber) IsEnabled() bool { return s.enabled }

type span struct{ start, end int }

// Scrub replaces every match, merging overlapping matches into one redaction.
func (s *scrubber) Scrub(content string) *Result {
	res := &Result{Scrubbed: content, Findings: map[string]int{}}
	if !s.enabled || content == "" {
		return res
	}

	var spans []span
	for _, r := range s.rules {
		for _, m := range r.re.FindAllStringIndex(content, -1) {
			spans = append(spans, span{m[0], m[1]})
			res.Findings[r.id]++
		}
	}
	if len(spans) == 0 {
		return res
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	out := make([]byte, 0, len(content))
	prev := 0
	for _, sp := range merged {
		out = append(out, content[prev:sp.start]...)
		out = append(out, s.replacement...)
		prev = sp.end
	}
	out = append(out, content[prev:]...)
	res.Scrubbed = string(out)
	return res
}
