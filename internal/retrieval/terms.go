package retrieval

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "are": true, "was": true,
	"not": true, "but": true, "all": true, "any": true, "can": true,
	"how": true, "why": true, "what": true, "when": true, "where": true,
	"fix": true, "add": true, "make": true, "use": true, "please": true,
}

// Terms splits an intent into lowercase search terms of three or more
// characters, without stopwords, in first-seen order.
func Terms(intent string) []string {
	fields := strings.FieldsFunc(strings.ToLower(intent), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	var out []string
	seen := make(map[string]bool)
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
