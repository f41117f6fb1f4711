package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path"
	"sort"
	"strings"
)

type keyFields struct {
	Intent     string   `json:"i"`
	Budget     int      `json:"b"`
	Paths      []string `json:"p"`
	Globs      []string `json:"g"`
	MaxSources int      `json:"m"`
}

// CacheKey hashes the fields that affect a bundle. Hint order and
// duplicates do not change the key.
func CacheKey(req Request) string {
	kf := keyFields{
		Intent:     strings.Join(strings.Fields(req.Intent), " "),
		Budget:     req.Budget,
		Paths:      normalize(req.Hints.Paths, true),
		Globs:      normalize(req.Hints.Globs, false),
		MaxSources: req.Hints.MaxSources,
	}
	// Marshal of a struct of strings and ints cannot fail.
	data, _ := json.Marshal(kf)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func normalize(in []string, clean bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if clean {
			s = path.Clean(strings.ReplaceAll(s, "\\", "/"))
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
