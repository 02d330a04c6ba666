package docmine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deskmate/internal/oracle"
	"deskmate/internal/session"
)

// fakeDocs serves canned per-page text keyed by path.
type fakeDocs struct {
	pages map[string][]string // path -> page texts, index 0 is page 1
}

func (f *fakeDocs) PageCount(path string) (int, error) {
	texts, ok := f.pages[path]
	if !ok {
		return 0, fmt.Errorf("no such document: %s", path)
	}
	return len(texts), nil
}

func (f *fakeDocs) ExtractPages(path string, pages []int) (string, error) {
	texts, ok := f.pages[path]
	if !ok {
		return "", fmt.Errorf("no such document: %s", path)
	}
	var parts []string
	for _, p := range pages {
		if p < 1 || p > len(texts) {
			continue
		}
		if texts[p-1] == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", p, texts[p-1]))
	}
	return strings.Join(parts, "\n\n"), nil
}

// scriptedClient returns canned oracle responses in order.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (c *scriptedClient) GenerateJSON(ctx context.Context, instruction, content string, schema map[string]interface{}) (string, error) {
	i := c.calls
	c.calls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return "{}", nil
}

func placeholderFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-"), 0o644); err != nil {
		t.Fatalf("writing placeholder: %v", err)
	}
	return path
}

func historyFor(sources ...string) []session.RetrievalRecord {
	return []session.RetrievalRecord{{Query: "q", Sources: sources}}
}

func TestMine_SmallDocumentReturnedWhole(t *testing.T) {
	dir := t.TempDir()
	url := "https://support.example.com/manuals/laptop-guide.pdf"
	path := placeholderFile(t, dir, LocalName(url))

	docs := &fakeDocs{pages: map[string][]string{
		path: {"Setup instructions.", "Battery care.", "Warranty."},
	}}
	m := NewMiner(oracle.NewAdapter(&scriptedClient{}, nil), docs, dir, 10, 20, nil)

	got, err := m.Mine(context.Background(), "battery drains fast", historyFor(url))
	if err != nil {
		t.Fatalf("Mine() error = %v", err)
	}
	for _, want := range []string{
		fallbackPreamble,
		"Source: " + url,
		"Pages: all (3 pages)",
		"Battery care.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Mine() missing %q in:\n%s", want, got)
		}
	}
}

func TestMine_MostCitedDocumentWins(t *testing.T) {
	history := []session.RetrievalRecord{
		{Sources: []string{"https://a.example/one.pdf", "https://a.example/page.html"}},
		{Sources: []string{"https://a.example/two.pdf", "https://a.example/two.pdf"}},
		{Sources: []string{"https://a.example/one.pdf"}},
	}
	// one.pdf and two.pdf both cited twice; one.pdf was seen first.
	if got := mostCitedDocument(history); got != "https://a.example/one.pdf" {
		t.Errorf("mostCitedDocument() = %q, want first-seen one.pdf", got)
	}
}

func TestMine_ContentsGuidedExcerpt(t *testing.T) {
	dir := t.TempDir()
	url := "https://support.example.com/manuals/big-manual.pdf"
	path := placeholderFile(t, dir, LocalName(url))

	texts := make([]string, 30)
	for i := range texts {
		texts[i] = fmt.Sprintf("content of page %d", i+1)
	}
	docs := &fakeDocs{pages: map[string][]string{path: texts}}

	client := &scriptedClient{responses: []string{
		`{"has_toc": true, "relevant_pages": [12, 11, 12, 99], "most_relevant_section_title": "Battery care", "reasoning": "matches question"}`,
	}}
	m := NewMiner(oracle.NewAdapter(client, nil), docs, dir, 10, 20, nil)

	got, err := m.Mine(context.Background(), "battery drains fast", historyFor(url))
	if err != nil {
		t.Fatalf("Mine() error = %v", err)
	}
	if !strings.Contains(got, "Pages: 11, 12 (section: Battery care)") {
		t.Errorf("Mine() annotation wrong:\n%s", got)
	}
	if !strings.Contains(got, "content of page 11") || !strings.Contains(got, "content of page 12") {
		t.Errorf("Mine() missing guided pages:\n%s", got)
	}
	if strings.Contains(got, "content of page 13") {
		t.Errorf("Mine() extracted pages beyond the guided set:\n%s", got)
	}
}

func TestMine_GuidedExtractionCapsPages(t *testing.T) {
	dir := t.TempDir()
	url := "https://support.example.com/manuals/huge.pdf"
	path := placeholderFile(t, dir, LocalName(url))

	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("page %d", i+1)
	}
	docs := &fakeDocs{pages: map[string][]string{path: texts}}

	var all []string
	for i := 1; i <= 30; i++ {
		all = append(all, fmt.Sprintf("%d", i))
	}
	client := &scriptedClient{responses: []string{
		fmt.Sprintf(`{"has_toc": true, "relevant_pages": [%s], "most_relevant_section_title": "Everything"}`, strings.Join(all, ", ")),
	}}
	m := NewMiner(oracle.NewAdapter(client, nil), docs, dir, 10, 20, nil)

	got, err := m.Mine(context.Background(), "anything", historyFor(url))
	if err != nil {
		t.Fatalf("Mine() error = %v", err)
	}
	if strings.Contains(got, "--- Page 21 ---") {
		t.Errorf("Mine() exceeded the page cap:\n%s", got)
	}
	if !strings.Contains(got, "--- Page 20 ---") {
		t.Errorf("Mine() should include page 20:\n%s", got)
	}
}

// bigManual builds a manual well past the whole-document threshold.
func bigManual(t *testing.T, dir, url string, pages int) *fakeDocs {
	t.Helper()
	path := placeholderFile(t, dir, LocalName(url))
	texts := make([]string, pages)
	for i := range texts {
		texts[i] = fmt.Sprintf("page %d text", i+1)
	}
	return &fakeDocs{pages: map[string][]string{path: texts}}
}

func TestMine_OracleDownYieldsNoFallback(t *testing.T) {
	dir := t.TempDir()
	url := "https://support.example.com/manuals/big.pdf"
	docs := bigManual(t, dir, url, 25)

	client := &scriptedClient{errs: []error{errors.New("invalid request")}}
	m := NewMiner(oracle.NewAdapter(client, nil), docs, dir, 10, 20, nil)

	_, err := m.Mine(context.Background(), "anything", historyFor(url))
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("Mine() error = %v, want ErrNoFallback when contents analysis is unavailable", err)
	}
}

func TestMine_NoTableOfContentsYieldsNoFallback(t *testing.T) {
	dir := t.TempDir()
	url := "https://support.example.com/manuals/big.pdf"
	docs := bigManual(t, dir, url, 25)

	client := &scriptedClient{responses: []string{
		`{"has_toc": false, "relevant_pages": []}`,
	}}
	m := NewMiner(oracle.NewAdapter(client, nil), docs, dir, 10, 20, nil)

	_, err := m.Mine(context.Background(), "anything", historyFor(url))
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("Mine() error = %v, want ErrNoFallback without a table of contents", err)
	}
}

func TestMine_EmptyRelevantPagesYieldsNoFallback(t *testing.T) {
	dir := t.TempDir()
	url := "https://support.example.com/manuals/big.pdf"
	docs := bigManual(t, dir, url, 25)

	client := &scriptedClient{responses: []string{
		`{"has_toc": true, "relevant_pages": [], "most_relevant_section_title": "Contents"}`,
	}}
	m := NewMiner(oracle.NewAdapter(client, nil), docs, dir, 10, 20, nil)

	_, err := m.Mine(context.Background(), "anything", historyFor(url))
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("Mine() error = %v, want ErrNoFallback when no pages are relevant", err)
	}
}

func TestMine_NoDocumentSources(t *testing.T) {
	m := NewMiner(oracle.NewAdapter(&scriptedClient{}, nil), &fakeDocs{}, t.TempDir(), 10, 20, nil)

	_, err := m.Mine(context.Background(), "q", historyFor("https://a.example/page.html"))
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("Mine() error = %v, want ErrNoFallback", err)
	}
}

func TestMine_DocumentMissingOnDisk(t *testing.T) {
	m := NewMiner(oracle.NewAdapter(&scriptedClient{}, nil), &fakeDocs{}, t.TempDir(), 10, 20, nil)

	_, err := m.Mine(context.Background(), "q", historyFor("https://a.example/gone.pdf"))
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("Mine() error = %v, want ErrNoFallback", err)
	}
}

func TestMine_EmptyExtractionFails(t *testing.T) {
	dir := t.TempDir()
	url := "https://a.example/scanned.pdf"
	path := placeholderFile(t, dir, LocalName(url))

	docs := &fakeDocs{pages: map[string][]string{path: {"", "", ""}}}
	m := NewMiner(oracle.NewAdapter(&scriptedClient{}, nil), docs, dir, 10, 20, nil)

	_, err := m.Mine(context.Background(), "q", historyFor(url))
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("Mine() error = %v, want ErrNoFallback", err)
	}
}

func TestLocalName(t *testing.T) {
	got := LocalName("https://support.example.com/docs/guide.pdf")
	want := "support.example.com_docs_guide.pdf-1.pdf"
	if got != want {
		t.Errorf("LocalName() = %q, want %q", got, want)
	}

	long := "https://support.example.com/" + strings.Repeat("a", 300)
	if got := LocalName(long); len(got) != 240+len("-1.pdf") {
		t.Errorf("LocalName() long base = %d chars, want 240 before the suffix", len(got)-len("-1.pdf"))
	}
}
