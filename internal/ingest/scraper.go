package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"deskmate/internal/docmine"
)

// ScrapedPage is one fetched source ready for cleaning.
type ScrapedPage struct {
	URL   string
	Title string
	Text  string
	IsPDF bool
}

// PageScraper fetches support pages through a headless browser and document
// files through plain HTTP. PDFs are also saved under the manuals directory
// so the fallback miner can find them later.
type PageScraper struct {
	browser    *rod.Browser
	client     *http.Client
	docs       docmine.DocumentStore
	manualsDir string
	log        *zap.Logger
}

// NewPageScraper launches a headless browser. Close releases it.
func NewPageScraper(ctx context.Context, manualsDir string, log *zap.Logger) (*PageScraper, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(manualsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manuals directory: %w", err)
	}

	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &PageScraper{
		browser:    browser,
		client:     &http.Client{Timeout: 2 * time.Minute},
		docs:       docmine.NewPDFStore(),
		manualsDir: manualsDir,
		log:        log,
	}, nil
}

// Close shuts the browser down.
func (s *PageScraper) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}

// Scrape fetches one URL. Documents go through the HTTP path, everything
// else through the browser.
func (s *PageScraper) Scrape(ctx context.Context, url string) (ScrapedPage, error) {
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return s.scrapePDF(ctx, url)
	}
	return s.scrapeHTML(ctx, url)
}

func (s *PageScraper) scrapeHTML(ctx context.Context, url string) (ScrapedPage, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return ScrapedPage{}, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return ScrapedPage{}, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return ScrapedPage{}, fmt.Errorf("failed to load %s: %w", url, err)
	}

	info, err := page.Info()
	if err != nil {
		return ScrapedPage{}, fmt.Errorf("failed to read page info: %w", err)
	}

	body, err := page.Element("body")
	if err != nil {
		return ScrapedPage{}, fmt.Errorf("no body element in %s: %w", url, err)
	}
	text, err := body.Text()
	if err != nil {
		return ScrapedPage{}, fmt.Errorf("failed to extract text from %s: %w", url, err)
	}

	return ScrapedPage{URL: url, Title: info.Title, Text: text}, nil
}

// scrapePDF downloads the document, stores it for the fallback miner, and
// extracts its full text.
func (s *PageScraper) scrapePDF(ctx context.Context, url string) (ScrapedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ScrapedPage{}, err
	}
	req.Header.Set("User-Agent", crawlerUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return ScrapedPage{}, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if resp.StatusCode != http.StatusOK || !strings.Contains(contentType, "pdf") {
		return ScrapedPage{}, fmt.Errorf("%s did not return a PDF (status=%d, content-type=%s)", url, resp.StatusCode, contentType)
	}

	path := filepath.Join(s.manualsDir, docmine.LocalName(url))
	if _, statErr := os.Stat(path); statErr != nil {
		f, createErr := os.Create(path)
		if createErr != nil {
			return ScrapedPage{}, fmt.Errorf("failed to save document: %w", createErr)
		}
		if _, copyErr := io.Copy(f, resp.Body); copyErr != nil {
			f.Close()
			os.Remove(path)
			return ScrapedPage{}, fmt.Errorf("failed to save document: %w", copyErr)
		}
		f.Close()
	} else {
		// Already on disk from a previous run; drain so the connection can
		// be reused.
		io.Copy(io.Discard, resp.Body)
	}

	total, err := s.docs.PageCount(path)
	if err != nil {
		return ScrapedPage{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	pages := make([]int, total)
	for i := range pages {
		pages[i] = i + 1
	}
	text, err := s.docs.ExtractPages(path, pages)
	if err != nil {
		return ScrapedPage{}, fmt.Errorf("failed to extract text from %s: %w", path, err)
	}
	if strings.TrimSpace(text) == "" {
		s.log.Warn("document has no extractable text", zap.String("url", url))
	}

	return ScrapedPage{URL: url, Text: text, IsPDF: true}, nil
}
