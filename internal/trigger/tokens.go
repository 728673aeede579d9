package trigger

import "strings"

// Tokenize splits a trigger or action line on whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// Join builds a lookup key from tokens.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

// IndexFold returns the position of the first token equal to word under
// case folding, or -1.
func IndexFold(tokens []string, word string) int {
	for i, t := range tokens {
		if strings.EqualFold(t, word) {
			return i
		}
	}
	return -1
}
