package ingest

import (
	"regexp"
	"strings"
)

var (
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
	newlineRuns  = regexp.MustCompile(`[ \t]*\n\s*`)
	siteSuffixes = regexp.MustCompile(`\s*\|\s*[A-Za-z][\w .-]*\s*$`)
)

// CleanText normalises scraped page text: one newline convention, invisible
// whitespace removed, runs collapsed, lowercased.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "​", " ")
	s = strings.ReplaceAll(s, " ", " ")
	s = newlineRuns.ReplaceAllString(s, "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// CleanTitle cleans a page title, dropping the trailing "| Site Name"
// decoration and flattening newlines.
func CleanTitle(s string) string {
	s = CleanText(s)
	s = siteSuffixes.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

// splitSentences partitions cleaned text at newlines and after sentence
// terminators followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t') {
			flush()
		}
	}
	flush()
	return out
}

// BoilerplateSentences returns the sentences appearing in every document:
// headers, footers and cookie banners shared across the whole site.
func BoilerplateSentences(docs []string) map[string]bool {
	if len(docs) < 2 {
		return nil
	}
	counts := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, s := range splitSentences(doc) {
			if !seen[s] {
				seen[s] = true
				counts[s]++
			}
		}
	}
	out := make(map[string]bool)
	for s, n := range counts {
		if n == len(docs) {
			out[s] = true
		}
	}
	return out
}

// StripBoilerplate removes the given sentences from a document, rejoining
// what remains line by line.
func StripBoilerplate(text string, boilerplate map[string]bool) string {
	if len(boilerplate) == 0 {
		return text
	}
	var kept []string
	for _, s := range splitSentences(text) {
		if !boilerplate[s] {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n")
}
