package orchestrator

import "sort"

// Rank sorts sources by descending score. Equal scores keep discovery order.
func Rank(sources []Source) {
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Score > sources[j].Score
	})
}

// Select takes ranked sources in order until the next one would exceed
// budget. It never skips ahead to a cheaper source. When the first source
// alone exceeds budget it is returned by itself.
func Select(ranked []Source, budget, maxSources int) ([]Source, int) {
	selected := make([]Source, 0, len(ranked))
	used := 0
	for i, s := range ranked {
		if maxSources > 0 && len(selected) >= maxSources {
			break
		}
		if used+s.EstimatedCost > budget {
			if i == 0 {
				selected = append(selected, s)
				used = s.EstimatedCost
			}
			break
		}
		selected = append(selected, s)
		used += s.EstimatedCost
	}
	return selected, used
}

// merge folds candidates that share a path. Scores add, reasons append in
// provider order and the first non-empty content wins. The first
// appearance of a path fixes its discovery position.
func merge(batches [][]Candidate) []Candidate {
	index := make(map[string]int)
	var out []Candidate
	for _, batch := range batches {
		for _, c := range batch {
			i, ok := index[c.Path]
			if !ok {
				index[c.Path] = len(out)
				c.Reasons = append([]string(nil), c.Reasons...)
				out = append(out, c)
				continue
			}
			m := &out[i]
			m.Score += c.Score
			m.Reasons = append(m.Reasons, c.Reasons...)
			if m.Content == "" {
				m.Content = c.Content
			}
		}
	}
	return out
}
