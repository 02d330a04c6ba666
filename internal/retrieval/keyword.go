package retrieval

import (
	"strings"
	"unicode"
)

// keywordWeight blends sparse keyword coverage into the dense cosine score.
// Cosine dominates; keyword overlap breaks ties between semantically close
// chunks and rewards exact model numbers and error codes that embeddings
// tend to blur.
const keywordWeight = 0.25

func tokenise(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// queryTokens returns the significant query tokens. Very short tokens carry
// no signal and are dropped.
func queryTokens(query string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenise(query) {
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}

// keywordScore is the fraction of query tokens present in the content:
// 1 when every significant query token appears, 0 when none do.
func keywordScore(query map[string]bool, content string) float64 {
	if len(query) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, tok := range tokenise(content) {
		if query[tok] {
			present[tok] = true
		}
	}
	return float64(len(present)) / float64(len(query))
}
