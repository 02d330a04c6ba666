package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"deskmate/internal/docmine"
	"deskmate/internal/embedding"
	"deskmate/internal/flow"
	"deskmate/internal/oracle"
	"deskmate/internal/outcome"
	"deskmate/internal/products"
	"deskmate/internal/retrieval"
	"deskmate/internal/session"
)

// runSession wires the full stack and drives one interactive session.
func runSession(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

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

	if n, countErr := store.Count(); countErr == nil && n == 0 {
		fmt.Println("Note: the knowledge base is empty. Run 'deskmate ingest' first for useful answers.")
	}

	adapter := oracle.NewAdapter(oracle.NewGeminiClient(oracle.GeminiConfig{
		APIKey:  cfg.Oracle.APIKey,
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
		Timeout: cfg.OracleTimeout(),
	}), logger)

	miner := docmine.NewMiner(
		adapter,
		docmine.NewPDFStore(),
		cfg.Fallback.ManualsDir,
		cfg.Fallback.TOCPageThreshold,
		cfg.Fallback.MaxTOCPages,
		logger,
	)

	var catalogue flow.ProductSource
	if cat, catErr := products.LoadCatalogue(cfg.Paths.ProductList); catErr == nil {
		catalogue = cat
	} else if !errors.Is(catErr, os.ErrNotExist) {
		logger.Warn("product list unavailable, accepting free-form product names", zap.Error(catErr))
	}

	console := NewConsole()
	engine := flow.NewEngine(flow.Options{
		Oracle:               adapter,
		Retriever:            store,
		Miner:                miner,
		Products:             catalogue,
		IO:                   console,
		Support:              outcome.NewSupportLogger(cfg.Paths.SupportLog),
		Tickets:              outcome.NewTicketLogger(cfg.Paths.TicketLog),
		Logger:               logger,
		MaxGatherAttempts:    cfg.Limits.MaxGatherAttempts,
		MaxRetrievalAttempts: cfg.Limits.MaxRetrievalAttempts,
	})

	console.Show(titleStyle.Render(fmt.Sprintf("%s %s — technical support", cfg.Name, cfg.Version)))
	st := session.New()
	logger.Info("session starting", zap.String("session_id", st.SessionID))
	return engine.Run(ctx, st)
}
