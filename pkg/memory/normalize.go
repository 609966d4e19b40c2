package memory

import "strings"

// normalizeText lower-cases and trims text for comparison. Total: empty
// input yields the empty string.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type conflictPair struct {
	prefix  string
	antonym string
}

// conflictPrefixes maps a statement's polarity prefix to its opposite.
// Ordered, first match wins. Note the table is not symmetric:
// "prefers" flips to "dislikes" but nothing flips back to "prefers".
var conflictPrefixes = []conflictPair{
	{"user dislikes ", "user enjoys "},
	{"user enjoys ", "user dislikes "},
	{"user prefers ", "user dislikes "},
	{"user likes ", "user dislikes "},
}

// oppositeStatement derives the normalized form of a statement's logical
// opposite by prefix substitution. This is a lexical heuristic, not
// semantic negation: statements that do not start with one of the table
// prefixes have no recognized opposite and (_, false) is returned.
func oppositeStatement(normalized string) (string, bool) {
	for _, p := range conflictPrefixes {
		if strings.HasPrefix(normalized, p.prefix) {
			return p.antonym + normalized[len(p.prefix):], true
		}
	}
	return "", false
}
