package retrieval

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// TestMain ensures the store's database handles do not leak goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeEmbedder returns canned vectors keyed by text, so similarity ordering
// in tests is fully deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Name() string    { return "fake" }

func newTestStore(t *testing.T, emb *fakeEmbedder) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "kb.db"), emb, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSearch_RanksBySimilarityAndFormats(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"blank screen on boot": {1, 0, 0},
		"display stays black":  {0.9, 0.1, 0},
		"battery drains fast":  {0, 1, 0},
		"keyboard backlight":   {0, 0.9, 0.1},
	}}
	s := newTestStore(t, emb)

	chunks := []Chunk{
		{Product: "latitude-7440", Title: "Display troubleshooting", URL: "https://support.example.com/display.pdf", Content: "display stays black"},
		{Product: "latitude-7440", Title: "Battery guide", URL: "https://support.example.com/battery", Content: "battery drains fast"},
		{Product: "latitude-7440", Title: "Keyboard guide", URL: "https://support.example.com/keyboard", Content: "keyboard backlight"},
	}
	if err := s.AddBatch(t.Context(), chunks); err != nil {
		t.Fatalf("AddBatch() error = %v", err)
	}

	formatted, urls, err := s.Search(t.Context(), "latitude-7440", "blank screen on boot")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("urls = %v, want 3 hits", urls)
	}
	if urls[0] != "https://support.example.com/display.pdf" {
		t.Errorf("best hit = %q, want display doc first", urls[0])
	}
	if !strings.HasPrefix(formatted, "[1] Display troubleshooting\nSource: https://support.example.com/display.pdf") {
		t.Errorf("formatted context does not lead with best hit:\n%s", formatted)
	}
	if !strings.Contains(formatted, "\n\n---\n\n") {
		t.Error("formatted context is missing entry separators")
	}
}

func TestSearch_ProductFilterScopes(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"q": {1, 0, 0},
		"a": {1, 0, 0},
		"b": {1, 0, 0},
	}}
	s := newTestStore(t, emb)

	if err := s.Add(t.Context(), Chunk{Product: "XPS 13 Plus", Title: "A", URL: "u-a", Content: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(t.Context(), Chunk{Product: "latitude-7440", Title: "B", URL: "u-b", Content: "b"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(t.Context(), Chunk{Product: "general", Title: "C", URL: "u-c", Content: "b"}); err != nil {
		t.Fatal(err)
	}

	// Filter canonicalises the product name before matching.
	_, urls, err := s.Search(t.Context(), "xps 13 plus", "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 1 || urls[0] != "u-a" {
		t.Errorf("scoped search urls = %v, want [u-a]", urls)
	}

	// "general" is a product slug like any other, not a wildcard.
	_, urls, err = s.Search(t.Context(), "general", "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 1 || urls[0] != "u-c" {
		t.Errorf("general search urls = %v, want [u-c]", urls)
	}

	// Only an empty product searches everything.
	_, urls, err = s.Search(t.Context(), "", "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 3 {
		t.Errorf("unscoped search urls = %v, want 3 hits", urls)
	}
}

func TestSearch_MissIsNotAnError(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})

	formatted, urls, err := s.Search(t.Context(), "latitude-7440", "anything")
	if err != nil {
		t.Fatalf("Search() on empty store error = %v", err)
	}
	if formatted != "" || urls != nil {
		t.Errorf("Search() = (%q, %v), want empty miss", formatted, urls)
	}
}

func TestSearch_TopKLimit(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	s := newTestStore(t, emb)

	for i := 0; i < 5; i++ {
		if err := s.Add(t.Context(), Chunk{Product: "general", Title: "T", URL: "u", Content: "c"}); err != nil {
			t.Fatal(err)
		}
	}
	_, urls, err := s.Search(t.Context(), "", "q")
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 3 {
		t.Errorf("got %d hits, want top_k=3", len(urls))
	}

	n, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}
}
