package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deskmate/internal/retrieval"
)

func TestProductForURL(t *testing.T) {
	tests := []struct {
		url   string
		isPDF bool
		want  string
	}{
		{"https://support.example.com/en-us/supportedos/latitude-13-7350-laptop/docs", false, "latitude-13-7350-laptop"},
		{"https://support.example.com/en-us/home", false, "general"},
		{"https://downloads.example.com/manuals/xps-13-9345_owners-manual_en-us.pdf", true, "xps-13-9345"},
		{"https://downloads.example.com/manuals/weird.pdf", true, "weird"},
	}
	for _, tt := range tests {
		if got := ProductForURL(tt.url, tt.isPDF); got != tt.want {
			t.Errorf("ProductForURL(%q, %t) = %q, want %q", tt.url, tt.isPDF, got, tt.want)
		}
	}
}

type stubScraper struct {
	pages map[string]ScrapedPage
}

func (s *stubScraper) Scrape(ctx context.Context, url string) (ScrapedPage, error) {
	page, ok := s.pages[url]
	if !ok {
		return ScrapedPage{}, errors.New("fetch failed")
	}
	return page, nil
}

type memStore struct {
	chunks []retrieval.Chunk
}

func (m *memStore) AddBatch(ctx context.Context, chunks []retrieval.Chunk) error {
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func TestPipeline_Run(t *testing.T) {
	osURL := "https://support.example.com/en-us/supportedos/latitude-7440/docs"
	pdfURL := "https://downloads.example.com/manuals/xps-13_manual_en-us.pdf"
	deadURL := "https://support.example.com/en-us/gone"

	scraper := &stubScraper{pages: map[string]ScrapedPage{
		osURL: {
			URL:   osURL,
			Title: "Latitude 7440 Docs | Example Support",
			Text:  "Accept all cookies.\nHow to reset the BIOS.\nPress F2 during boot.",
		},
		"https://support.example.com/en-us/other": {
			URL:   "https://support.example.com/en-us/other",
			Title: "Other | Example Support",
			Text:  "Accept all cookies.\nReplacing the battery safely.",
		},
		pdfURL: {
			URL:   pdfURL,
			Text:  "--- Page 1 ---\nService manual contents.",
			IsPDF: true,
		},
	}}
	store := &memStore{}
	productList := filepath.Join(t.TempDir(), "product_list.csv")

	p := NewPipeline(scraper, store, nil)
	stats, err := p.Run(context.Background(), []string{osURL, "https://support.example.com/en-us/other", pdfURL, deadURL}, productList)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Pages != 2 || stats.PDFs != 1 || stats.Failures != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Chunks != len(store.chunks) || stats.Chunks == 0 {
		t.Errorf("Chunks = %d, stored = %d", stats.Chunks, len(store.chunks))
	}

	byProduct := make(map[string]int)
	for _, c := range store.chunks {
		byProduct[c.Product]++
		if c.Content == "" || c.URL == "" {
			t.Errorf("incomplete chunk: %+v", c)
		}
	}
	for _, want := range []string{"latitude-7440", "general", "xps-13"} {
		if byProduct[want] == 0 {
			t.Errorf("no chunks for product %q, got %v", want, byProduct)
		}
	}

	// Boilerplate shared by every page must not survive into chunks.
	for _, c := range store.chunks {
		if c.Product == "latitude-7440" && strings.Contains(c.Content, "accept all cookies") {
			t.Errorf("boilerplate leaked into chunk: %q", c.Content)
		}
	}

	f, err := os.Open(productList)
	if err != nil {
		t.Fatalf("product list not written: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading product list: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("product list rows = %v, want 3 products", rows)
	}
}
