// Package products canonicalises product names and matches user input
// against the allowlisted product slugs the knowledge base is keyed by.
package products

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// General is the slug for unscoped, non-product-specific questions.
const General = "general"

var (
	unicodeDashes = strings.NewReplacer("–", "-", "—", "-", "−", "-", "‐", "-", "­", "-", "‒", "-")
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9-]+`)
	whitespace    = regexp.MustCompile(`\s+`)
	multiDash     = regexp.MustCompile(`-{2,}`)
)

// Canonicalise lowercases and hyphenates a product name into the slug form
// used by the chunk store payloads.
func Canonicalise(name string) string {
	s := unicodeDashes.Replace(name)
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	s = whitespace.ReplaceAllString(s, "-")
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = multiDash.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Catalogue is the loaded product allowlist.
type Catalogue struct {
	slugs   []string
	slugSet map[string]bool
}

// LoadCatalogue reads product names from the first column of a CSV file and
// canonicalises them. Two distinct raw names collapsing to one slug is a
// data error.
func LoadCatalogue(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open product list: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read product list: %w", err)
	}

	slugToRaw := make(map[string]string)
	var slugs []string
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		raw := strings.TrimSpace(rec[0])
		if raw == "" {
			continue
		}
		slug := Canonicalise(raw)
		if prev, ok := slugToRaw[slug]; ok {
			if prev != raw {
				return nil, fmt.Errorf("canonicalisation collision: %q vs %q -> %q", prev, raw, slug)
			}
			continue
		}
		slugToRaw[slug] = raw
		slugs = append(slugs, slug)
	}

	set := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		set[s] = true
	}
	return &Catalogue{slugs: slugs, slugSet: set}, nil
}

// Len returns the number of allowlisted products.
func (c *Catalogue) Len() int { return len(c.slugs) }

// Slugs returns the allowlisted slugs in load order.
func (c *Catalogue) Slugs() []string {
	out := make([]string, len(c.slugs))
	copy(out, c.slugs)
	return out
}

// Candidates returns the canonicalised input, the top-k best-matching slugs
// (best first), and whether the input matched a slug exactly.
func (c *Catalogue) Candidates(userInput string, k int) (string, []string, bool) {
	if k <= 0 {
		k = 10
	}

	q := Canonicalise(userInput)
	qTokens := tokenSet(q)

	type scored struct {
		slug  string
		score float64
	}
	all := make([]scored, len(c.slugs))
	for i, p := range c.slugs {
		all[i] = scored{slug: p, score: score(q, qTokens, p)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	if len(all) > k {
		all = all[:k]
	}
	top := make([]string, len(all))
	for i, s := range all {
		top[i] = s.slug
	}
	return q, top, c.slugSet[q]
}

func score(q string, qTokens map[string]bool, p string) float64 {
	pTokens := tokenSet(p)

	var s float64
	if p == q {
		s += 3.0
	}
	if q != "" && (strings.HasPrefix(p, q) || strings.HasPrefix(q, p)) {
		s += 0.75
	}
	s += jaccard(qTokens, pTokens) * 0.75
	s += similarityRatio(q, p)
	return s
}

func tokenSet(slug string) map[string]bool {
	if slug == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, tok := range strings.Split(slug, "-") {
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// similarityRatio is 2*LCS/(len(a)+len(b)): 1 for identical strings, 0 for
// no common subsequence.
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
