// Package retrieval implements the knowledge-base chunk store and the search
// adapter the support loop retrieves context through. Chunks live in SQLite
// with JSON-serialised embeddings; ranking is cosine similarity against the
// query embedding, optionally filtered by product slug.
package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"deskmate/internal/embedding"
	"deskmate/internal/products"
)

// Chunk is one indexed fragment of a support document.
type Chunk struct {
	Product string
	Title   string
	URL     string
	Content string
}

// Result is one scored search hit.
type Result struct {
	Chunk
	Score float64
}

// Store is the SQLite-backed chunk store.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	embedder embedding.Engine
	topK     int
	log      *zap.Logger
}

// NewStore opens (creating if needed) the chunk database at path.
func NewStore(path string, embedder embedding.Engine, topK int, log *zap.Logger) (*Store, error) {
	if topK <= 0 {
		topK = 3
	}
	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, embedder: embedder, topK: topK, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product TEXT NOT NULL,
		title TEXT,
		url TEXT,
		content TEXT NOT NULL,
		embedding TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_product ON chunks(product);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize chunk table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add embeds and stores a single chunk.
func (s *Store) Add(ctx context.Context, c Chunk) error {
	vec, err := s.embedder.Embed(ctx, c.Content)
	if err != nil {
		return fmt.Errorf("failed to embed chunk: %w", err)
	}
	return s.insert(c, vec)
}

// AddBatch embeds and stores many chunks in one embedding request.
func (s *Store) AddBatch(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d != %d", len(vecs), len(chunks))
	}

	for i, c := range chunks {
		if err := s.insert(c, vecs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insert(c Chunk, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	embJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to serialise embedding: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO chunks (product, title, url, content, embedding) VALUES (?, ?, ?, ?, ?)",
		products.Canonicalise(c.Product), c.Title, c.URL, c.Content, string(embJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Search embeds the query and returns the top-K chunks as a numbered context
// string alongside their source URLs, most similar first. An empty product
// leaves the search unscoped. No matches is not an error: ("", nil) comes
// back and the caller treats it as a miss.
func (s *Store) Search(ctx context.Context, product, query string) (string, []string, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rows *sql.Rows
	)
	if product != "" {
		rows, err = s.db.Query(
			"SELECT title, url, content, embedding FROM chunks WHERE product = ? AND embedding IS NOT NULL",
			products.Canonicalise(product),
		)
	} else {
		rows, err = s.db.Query(
			"SELECT title, url, content, embedding FROM chunks WHERE embedding IS NOT NULL",
		)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	qTokens := queryTokens(query)

	var candidates []Result
	for rows.Next() {
		var (
			r       Result
			embJSON string
		)
		if err := rows.Scan(&r.Title, &r.URL, &r.Content, &embJSON); err != nil {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}

		score, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		r.Score = score + keywordWeight*keywordScore(qTokens, r.Title+" "+r.Content)
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return "", nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	if len(candidates) == 0 {
		return "", nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > s.topK {
		candidates = candidates[:s.topK]
	}

	s.log.Debug("knowledge-base search",
		zap.String("product", product),
		zap.String("query", query),
		zap.Int("hits", len(candidates)),
		zap.Float64("top_score", candidates[0].Score),
	)

	urls := make([]string, len(candidates))
	for i, r := range candidates {
		urls[i] = r.URL
	}
	return formatResults(candidates), urls, nil
}

// formatResults renders hits as a numbered, human-readable block. The loop
// only depends on "non-empty means at least one match".
func formatResults(results []Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%d] %s\nSource: %s\n\n%s", i+1, r.Title, r.URL, r.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
