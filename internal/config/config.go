// Package config holds deskmate configuration: YAML file, defaults, and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all deskmate configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Oracle (LLM) configuration
	Oracle OracleConfig `yaml:"oracle"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Knowledge-base retrieval configuration
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Document fallback mining configuration
	Fallback FallbackConfig `yaml:"fallback"`

	// Control-loop limits
	Limits LimitsConfig `yaml:"limits"`

	// File locations
	Paths PathsConfig `yaml:"paths"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// OracleConfig configures the classifier oracle (Gemini).
type OracleConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // genai or ollama

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
}

// RetrievalConfig configures knowledge-base search.
type RetrievalConfig struct {
	DatabasePath string `yaml:"database_path"`
	TopK         int    `yaml:"top_k"`
}

// FallbackConfig configures the document fallback miner.
type FallbackConfig struct {
	// Directory where downloaded PDF manuals live.
	ManualsDir string `yaml:"manuals_dir"`

	// Documents at or under this page count are returned whole.
	TOCPageThreshold int `yaml:"toc_page_threshold"`

	// Ceiling on pages extracted from a TOC-guided subset.
	MaxTOCPages int `yaml:"max_toc_pages"`
}

// LimitsConfig holds the control-loop attempt ceilings.
type LimitsConfig struct {
	MaxGatherAttempts    int `yaml:"max_gather_attempts"`
	MaxRetrievalAttempts int `yaml:"max_retrieval_attempts"`
}

// PathsConfig holds data and log file locations.
type PathsConfig struct {
	DataDir     string `yaml:"data_dir"`
	ProductList string `yaml:"product_list"`
	SupportLog  string `yaml:"support_log"`
	TicketLog   string `yaml:"ticket_log"`
}

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "deskmate",
		Version: "1.0.0",

		Oracle: OracleConfig{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Model:   "gemini-2.5-flash",
			Timeout: "120s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "genai",
			GenAIModel:     "gemini-embedding-001",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
		},

		Retrieval: RetrievalConfig{
			DatabasePath: "data/deskmate.db",
			TopK:         3,
		},

		Fallback: FallbackConfig{
			ManualsDir:       "data/manuals",
			TOCPageThreshold: 10,
			MaxTOCPages:      20,
		},

		Limits: LimitsConfig{
			MaxGatherAttempts:    3,
			MaxRetrievalAttempts: 3,
		},

		Paths: PathsConfig{
			DataDir:     "data",
			ProductList: "data/products.csv",
			SupportLog:  "logs/support_log.csv",
			TicketLog:   "logs/tickets.csv",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an error;
// defaults plus environment overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Oracle.APIKey = key
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = key
		}
	}
	if key := os.Getenv("DESKMATE_ORACLE_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
	if model := os.Getenv("DESKMATE_ORACLE_MODEL"); model != "" {
		c.Oracle.Model = model
	}
	if url := os.Getenv("DESKMATE_ORACLE_BASE_URL"); url != "" {
		c.Oracle.BaseURL = url
	}
	if path := os.Getenv("DESKMATE_DB"); path != "" {
		c.Retrieval.DatabasePath = path
	}
	if dir := os.Getenv("DESKMATE_MANUALS_DIR"); dir != "" {
		c.Fallback.ManualsDir = dir
	}
	if ep := os.Getenv("OLLAMA_ENDPOINT"); ep != "" {
		c.Embedding.OllamaEndpoint = ep
	}
}

// OracleTimeout returns the oracle HTTP timeout as a duration.
func (c *Config) OracleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Limits.MaxGatherAttempts < 1 {
		return fmt.Errorf("limits.max_gather_attempts must be >= 1, got %d", c.Limits.MaxGatherAttempts)
	}
	if c.Limits.MaxRetrievalAttempts < 1 {
		return fmt.Errorf("limits.max_retrieval_attempts must be >= 1, got %d", c.Limits.MaxRetrievalAttempts)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be >= 1, got %d", c.Retrieval.TopK)
	}
	if c.Fallback.TOCPageThreshold < 1 {
		return fmt.Errorf("fallback.toc_page_threshold must be >= 1, got %d", c.Fallback.TOCPageThreshold)
	}
	if c.Fallback.MaxTOCPages < c.Fallback.TOCPageThreshold {
		return fmt.Errorf("fallback.max_toc_pages must be >= toc_page_threshold")
	}
	switch c.Embedding.Provider {
	case "genai", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be genai or ollama, got %q", c.Embedding.Provider)
	}
	return nil
}
