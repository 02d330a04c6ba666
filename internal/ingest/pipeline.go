package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"deskmate/internal/products"
	"deskmate/internal/retrieval"
)

var (
	supportedOSPath = regexp.MustCompile(`/supportedos/([^/?#]+)`)
	pdfProductName  = regexp.MustCompile(`/([^/_]+)(?:_[^/]*)?\.pdf$`)
)

// ProductForURL derives the product slug a source belongs to. Support pages
// carry it in their /supportedos/ path segment; document filenames carry it
// before the first underscore. Everything else is general.
func ProductForURL(url string, isPDF bool) string {
	if isPDF {
		if m := pdfProductName.FindStringSubmatch(strings.ToLower(url)); m != nil {
			return products.Canonicalise(m[1])
		}
		return products.General
	}
	if m := supportedOSPath.FindStringSubmatch(url); m != nil {
		return products.Canonicalise(m[1])
	}
	return products.General
}

// Scraper fetches one URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (ScrapedPage, error)
}

// ChunkStore receives embedded chunks.
type ChunkStore interface {
	AddBatch(ctx context.Context, chunks []retrieval.Chunk) error
}

// Stats summarises one pipeline run.
type Stats struct {
	Pages    int
	PDFs     int
	Failures int
	Chunks   int
	Products int
}

// Pipeline scrapes, cleans, chunks and stores a URL set.
type Pipeline struct {
	scraper   Scraper
	store     ChunkStore
	log       *zap.Logger
	batchSize int
}

// NewPipeline wires a scraper to a chunk store.
func NewPipeline(scraper Scraper, store ChunkStore, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{scraper: scraper, store: store, log: log, batchSize: 64}
}

// Run processes the URL set end to end. Per-URL failures are counted and
// skipped; the run fails only when the store rejects a batch. The returned
// stats include every distinct product slug seen, which WriteProductList can
// persist as the session-time allowlist.
func (p *Pipeline) Run(ctx context.Context, urls []string, productListPath string) (Stats, error) {
	var stats Stats

	// First pass: fetch and clean everything. Boilerplate detection needs
	// the whole page corpus before any page can be finalised.
	type doc struct {
		page    ScrapedPage
		cleaned string
		title   string
	}
	var docs []doc
	var htmlTexts []string
	for _, url := range urls {
		page, err := p.scraper.Scrape(ctx, url)
		if err != nil {
			stats.Failures++
			p.log.Warn("scrape failed, skipping", zap.String("url", url), zap.Error(err))
			continue
		}
		d := doc{page: page, cleaned: CleanText(page.Text), title: CleanTitle(page.Title)}
		if d.cleaned == "" {
			stats.Failures++
			p.log.Warn("no text extracted, skipping", zap.String("url", url))
			continue
		}
		if page.IsPDF {
			stats.PDFs++
		} else {
			stats.Pages++
			htmlTexts = append(htmlTexts, d.cleaned)
		}
		docs = append(docs, d)
	}

	boilerplate := BoilerplateSentences(htmlTexts)
	if n := len(boilerplate); n > 0 {
		p.log.Info("boilerplate sentences detected", zap.Int("count", n))
	}

	// Second pass: strip, chunk and store.
	productSet := make(map[string]bool)
	var batch []retrieval.Chunk
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.store.AddBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to store chunk batch: %w", err)
		}
		stats.Chunks += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, d := range docs {
		text := d.cleaned
		if !d.page.IsPDF {
			text = StripBoilerplate(text, boilerplate)
		}
		product := ProductForURL(d.page.URL, d.page.IsPDF)
		productSet[product] = true

		embedText := text
		if d.title != "" {
			embedText = d.title + "\n\n" + text
		}
		for _, chunk := range ChunkWords(embedText, DefaultChunkWords, DefaultChunkOverlap) {
			batch = append(batch, retrieval.Chunk{
				Product: product,
				Title:   d.title,
				URL:     d.page.URL,
				Content: chunk,
			})
			if len(batch) >= p.batchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	stats.Products = len(productSet)
	if productListPath != "" {
		if err := WriteProductList(productListPath, productSet); err != nil {
			return stats, err
		}
	}

	p.log.Info("ingest run complete",
		zap.Int("pages", stats.Pages),
		zap.Int("pdfs", stats.PDFs),
		zap.Int("failures", stats.Failures),
		zap.Int("chunks", stats.Chunks),
		zap.Int("products", stats.Products),
	)
	return stats, nil
}

// WriteProductList persists the product allowlist as a one-column CSV.
func WriteProductList(path string, productSet map[string]bool) error {
	slugs := make([]string, 0, len(productSet))
	for slug := range productSet {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write product list: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, slug := range slugs {
		if err := w.Write([]string{slug}); err != nil {
			return fmt.Errorf("failed to write product list: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
