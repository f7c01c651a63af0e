package matching

import "strings"

// Normalize lowercases and trims a raw query for matching.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Tokenize splits a normalized query on whitespace and drops short tokens.
// Tokens of length <= 2 ("a", "of", "to") carry almost no signal for
// keyword overlap, so discarding them doubles as cheap stop-word
// suppression without a stop-word list.
func Tokenize(query string) []string {
	fields := strings.Fields(Normalize(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
