// Package ingest implements the batch knowledge-base pipeline: sitemap
// discovery, page scraping, text cleaning, chunking and embedding into the
// chunk store. It runs offline, ahead of any support session.
package ingest

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const crawlerUserAgent = "Mozilla/5.0 (compatible; deskmate-ingest/1.0)"

// sitemapDoc covers both sitemap index files and URL sets; the root element
// name tells them apart.
type sitemapDoc struct {
	XMLName  xml.Name
	Sitemaps []sitemapLoc `xml:"sitemap"`
	URLs     []sitemapLoc `xml:"url"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// SitemapCrawler walks a sitemap tree breadth-first and collects page URLs.
type SitemapCrawler struct {
	client *http.Client
	log    *zap.Logger
}

// NewSitemapCrawler returns a crawler with a shared HTTP client.
func NewSitemapCrawler(log *zap.Logger) *SitemapCrawler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SitemapCrawler{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// Crawl fetches the start sitemap and every child sitemap it indexes,
// returning all page URLs found. Individual sitemap failures are logged and
// skipped; only a failure of the start sitemap is fatal.
func (c *SitemapCrawler) Crawl(ctx context.Context, startURL string) ([]string, error) {
	queue := []string{startURL}
	seen := map[string]bool{startURL: true}

	var pages []string
	first := true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		doc, err := c.fetchSitemap(ctx, u)
		if err != nil {
			if first {
				return nil, fmt.Errorf("failed to fetch start sitemap: %w", err)
			}
			c.log.Warn("sitemap fetch failed, skipping", zap.String("url", u), zap.Error(err))
			continue
		}
		first = false

		if doc.XMLName.Local == "sitemapindex" {
			for _, child := range doc.Sitemaps {
				loc := strings.TrimSpace(child.Loc)
				if loc != "" && !seen[loc] {
					seen[loc] = true
					queue = append(queue, loc)
				}
			}
			c.log.Info("sitemap index", zap.String("url", u), zap.Int("children", len(doc.Sitemaps)))
			continue
		}

		for _, entry := range doc.URLs {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				pages = append(pages, loc)
			}
		}
		c.log.Info("sitemap urlset", zap.String("url", u), zap.Int("urls", len(doc.URLs)))
	}
	return pages, nil
}

func (c *SitemapCrawler) fetchSitemap(ctx context.Context, url string) (*sitemapDoc, error) {
	body, err := fetchWithRetry(ctx, c.client, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sitemap body: %w", err)
	}
	return parseSitemap(data)
}

// parseSitemap handles both plain and gzip-compressed sitemap payloads,
// sniffing the gzip magic number rather than trusting the URL suffix.
func parseSitemap(data []byte) (*sitemapDoc, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		gz, err := gzip.NewReader(strings.NewReader(string(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip sitemap: %w", err)
		}
		defer gz.Close()
		data, err = io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress sitemap: %w", err)
		}
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap XML: %w", err)
	}
	return &doc, nil
}

// FilterURLs keeps URLs containing any of the given locale markers.
func FilterURLs(urls []string, markers ...string) []string {
	if len(markers) == 0 {
		return urls
	}
	seen := make(map[string]bool)
	var out []string
	for _, u := range urls {
		if seen[u] {
			continue
		}
		for _, m := range markers {
			if strings.Contains(u, m) {
				seen[u] = true
				out = append(out, u)
				break
			}
		}
	}
	return out
}

func fetchWithRetry(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	delays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error
	for attempt := 0; attempt <= len(delays); attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", crawlerUserAgent)
		req.Header.Set("Accept", "*/*")

		resp, err := client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}
		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, lastErr
			}
		}
		if attempt < len(delays) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delays[attempt]):
			}
		}
	}
	return nil, fmt.Errorf("failed to fetch %s: %w", url, lastErr)
}
