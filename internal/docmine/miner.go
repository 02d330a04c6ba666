package docmine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"deskmate/internal/oracle"
	"deskmate/internal/session"
)

// ErrNoFallback indicates no usable document excerpt could be produced.
// Callers should escalate when they see this.
var ErrNoFallback = errors.New("no fallback document available")

const fallbackPreamble = "We could not find an exact answer to your query after multiple search attempts, but the following document may contain useful information."

var illegalPathChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// LocalName maps a document URL to the filename it is stored under in the
// manuals directory. The ingest downloader uses the same mapping.
func LocalName(url string) string {
	name := strings.TrimPrefix(url, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = illegalPathChars.ReplaceAllString(name, "_")
	if len(name) > 240 {
		name = name[:240]
	}
	return name + "-1.pdf"
}

// Miner extracts a verbatim excerpt from the document most cited across a
// session's retrieval history.
type Miner struct {
	oracle        *oracle.Adapter
	docs          DocumentStore
	manualsDir    string
	pageThreshold int
	maxPages      int
	log           *zap.Logger
}

// NewMiner builds a Miner. pageThreshold is the page count at or below
// which a document is returned whole; maxPages caps how many pages a
// contents-guided extraction may pull.
func NewMiner(adapter *oracle.Adapter, docs DocumentStore, manualsDir string, pageThreshold, maxPages int, log *zap.Logger) *Miner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Miner{
		oracle:        adapter,
		docs:          docs,
		manualsDir:    manualsDir,
		pageThreshold: pageThreshold,
		maxPages:      maxPages,
		log:           log,
	}
}

// Mine produces the fallback excerpt for the given question, or
// ErrNoFallback when no document can serve.
func (m *Miner) Mine(ctx context.Context, question string, history []session.RetrievalRecord) (string, error) {
	locator := mostCitedDocument(history)
	if locator == "" {
		m.log.Info("fallback: no document sources in retrieval history")
		return "", ErrNoFallback
	}

	path := filepath.Join(m.manualsDir, LocalName(locator))
	if _, err := os.Stat(path); err != nil {
		m.log.Warn("fallback: document not on disk", zap.String("url", locator), zap.String("path", path))
		return "", ErrNoFallback
	}

	total, err := m.docs.PageCount(path)
	if err != nil || total == 0 {
		m.log.Warn("fallback: unreadable document", zap.String("path", path), zap.Error(err))
		return "", ErrNoFallback
	}

	if total <= m.pageThreshold {
		return m.wholeDocument(locator, path, total)
	}
	return m.guidedExcerpt(ctx, question, locator, path, total)
}

func (m *Miner) wholeDocument(locator, path string, total int) (string, error) {
	pages := make([]int, total)
	for i := range pages {
		pages[i] = i + 1
	}
	text, err := m.docs.ExtractPages(path, pages)
	if err != nil || strings.TrimSpace(text) == "" {
		return "", ErrNoFallback
	}
	annotation := fmt.Sprintf("all (%d pages)", total)
	return composeFallback(locator, annotation, text), nil
}

// guidedExcerpt reads the opening pages, asks the oracle to locate the most
// relevant section via the table of contents, and extracts those pages.
// Without a usable table of contents there is no excerpt: a blind slice of a
// large manual is worse than escalating.
func (m *Miner) guidedExcerpt(ctx context.Context, question, locator, path string, total int) (string, error) {
	head := make([]int, m.pageThreshold)
	for i := range head {
		head[i] = i + 1
	}
	headText, err := m.docs.ExtractPages(path, head)
	if err != nil || strings.TrimSpace(headText) == "" {
		return "", ErrNoFallback
	}

	toc, err := m.analyseContents(ctx, question, headText)
	if err != nil {
		m.log.Warn("fallback: contents analysis unavailable", zap.String("url", locator), zap.Error(err))
		return "", ErrNoFallback
	}
	if !toc.HasTOC || len(toc.RelevantPages) == 0 {
		m.log.Info("fallback: no usable table of contents", zap.String("url", locator))
		return "", ErrNoFallback
	}

	pages := clampPages(toc.RelevantPages, total, m.maxPages)
	if len(pages) == 0 {
		return "", ErrNoFallback
	}
	text, err := m.docs.ExtractPages(path, pages)
	if err != nil || strings.TrimSpace(text) == "" {
		return "", ErrNoFallback
	}

	annotation := pageList(pages)
	if toc.SectionTitle != "" {
		annotation = fmt.Sprintf("%s (section: %s)", annotation, toc.SectionTitle)
	}
	m.log.Info("fallback: contents-guided excerpt",
		zap.String("url", locator), zap.Ints("pages", pages))
	return composeFallback(locator, annotation, text), nil
}

func (m *Miner) analyseContents(ctx context.Context, question, headText string) (oracle.TOCAnalysis, error) {
	content := fmt.Sprintf("User question: %s\n\nOpening pages of the document:\n\n%s", question, headText)
	inv := oracle.Invocation{
		Name:        "toc_analysis",
		Instruction: oracle.TOCInstruction,
		Content:     content,
		Schema:      oracle.TOCAnalysisSchema(),
	}
	return oracle.Call[oracle.TOCAnalysis](ctx, m.oracle, inv)
}

// mostCitedDocument tallies document sources across the whole retrieval
// history and returns the most cited one. Ties resolve to the source seen
// first.
func mostCitedDocument(history []session.RetrievalRecord) string {
	counts := make(map[string]int)
	var order []string
	for _, rec := range history {
		for _, src := range rec.Sources {
			if !strings.HasSuffix(strings.ToLower(src), ".pdf") {
				continue
			}
			if _, seen := counts[src]; !seen {
				order = append(order, src)
			}
			counts[src]++
		}
	}
	best := ""
	for _, src := range order {
		if best == "" || counts[src] > counts[best] {
			best = src
		}
	}
	return best
}

// clampPages dedupes, sorts and bounds the requested pages, then caps the
// result at max.
func clampPages(pages []int, total, max int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, p := range pages {
		if p < 1 || p > total || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func pageList(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}

func composeFallback(locator, annotation, text string) string {
	return fmt.Sprintf("%s\n\nSource: %s\nPages: %s\n\n%s", fallbackPreamble, locator, annotation, text)
}
