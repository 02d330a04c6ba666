package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deskmate/internal/embedding"
	"deskmate/internal/ingest"
	"deskmate/internal/retrieval"
)

var (
	ingestSitemap string
	ingestURLFile string
	ingestLocales []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the knowledge base from a sitemap or a URL list",
	Long: `Crawls a support-site sitemap (or reads URLs from a file), scrapes each
page through a headless browser, downloads linked PDF manuals, cleans and
chunks the text, and embeds everything into the chunk store. Also writes the
product allowlist used for session-time product matching.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		urls, err := collectURLs(cmd)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs to ingest: pass --sitemap or --urls")
		}
		logger.Info("ingest starting", zap.Int("urls", len(urls)))

		embedder, err := embedding.NewEngine(embedding.Config{
			Provider:       cfg.Embedding.Provider,
			GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
			GenAIModel:     cfg.Embedding.GenAIModel,
			OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
			OllamaModel:    cfg.Embedding.OllamaModel,
		})
		if err != nil {
			return fmt.Errorf("failed to create embedding engine: %w", err)
		}

		store, err := retrieval.NewStore(cfg.Retrieval.DatabasePath, embedder, cfg.Retrieval.TopK, logger)
		if err != nil {
			return fmt.Errorf("failed to open knowledge base: %w", err)
		}
		defer store.Close()

		scraper, err := ingest.NewPageScraper(ctx, cfg.Fallback.ManualsDir, logger)
		if err != nil {
			return err
		}
		defer scraper.Close()

		pipeline := ingest.NewPipeline(scraper, store, logger)
		stats, err := pipeline.Run(ctx, urls, cfg.Paths.ProductList)
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %d pages and %d documents (%d failures): %d chunks across %d products.\n",
			stats.Pages, stats.PDFs, stats.Failures, stats.Chunks, stats.Products)
		return nil
	},
}

func collectURLs(cmd *cobra.Command) ([]string, error) {
	if ingestURLFile != "" {
		f, err := os.Open(ingestURLFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open URL list: %w", err)
		}
		defer f.Close()

		var urls []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
				urls = append(urls, line)
			}
		}
		return urls, sc.Err()
	}

	if ingestSitemap != "" {
		crawler := ingest.NewSitemapCrawler(logger)
		urls, err := crawler.Crawl(cmd.Context(), ingestSitemap)
		if err != nil {
			return nil, err
		}
		return ingest.FilterURLs(urls, ingestLocales...), nil
	}

	return nil, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSitemap, "sitemap", "", "start sitemap URL to crawl")
	ingestCmd.Flags().StringVar(&ingestURLFile, "urls", "", "file with one URL per line")
	ingestCmd.Flags().StringSliceVar(&ingestLocales, "locale", []string{"en-us", "en-uk"}, "keep only URLs containing one of these markers")
}
