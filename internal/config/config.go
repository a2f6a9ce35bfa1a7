package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the contexta retrieval service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings. Empty APIKeys disables auth.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	APIKeys         []string `yaml:"api_keys"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout and index settings.
type StorageConfig struct {
	VectorDim       int `yaml:"vector_dim"`
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
	CacheTTLh  int    `yaml:"cache_ttl_hours"`
}

// CompletionConfig holds generative-model settings for the reranker.
type CompletionConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// RetrievalConfig holds the engine's tuning constants. The defaults were
// carried over from production tuning; they are overridable, not re-derived.
type RetrievalConfig struct {
	MaxChunks          int `yaml:"max_chunks"`
	CandidateMultiple  int `yaml:"candidate_multiple"` // store fan-out = MaxChunks * this
	ContextTokenBudget int `yaml:"context_token_budget"`

	// Fusion weights per strategy. Full-text ranks slightly above raw keyword
	// because the index already normalizes for term frequency.
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	FulltextWeight float64 `yaml:"fulltext_weight"`

	// Adaptive similarity threshold bands, keyed by query rune length.
	BaseThreshold   float64 `yaml:"base_threshold"`
	ShortQueryRunes int     `yaml:"short_query_runes"`
	LongQueryRunes  int     `yaml:"long_query_runes"`
	BandAdjust      float64 `yaml:"band_adjust"`
	ContainerAdjust float64 `yaml:"container_adjust"`
	DocumentAdjust  float64 `yaml:"document_adjust"`
	ThresholdFloor  float64 `yaml:"threshold_floor"`

	// Progressive relaxation on empty semantic results.
	RelaxationStep      float64 `yaml:"relaxation_step"`
	MaxSemanticAttempts int     `yaml:"max_semantic_attempts"`

	// Distribution cutline and domain-relevance guard.
	CutlineFloor       float64 `yaml:"cutline_floor"`
	ScopedCutlineFloor float64 `yaml:"scoped_cutline_floor"`
	OverFilterGuard    float64 `yaml:"over_filter_guard"`
	MinKeepMultiple    int     `yaml:"min_keep_multiple"` // abandon cutline below MaxChunks * this

	// Optional LLM reranking.
	RerankEnabled       bool `yaml:"rerank_enabled"`
	RerankMaxCandidates int  `yaml:"rerank_max_candidates"`
	RerankPreviewRunes  int  `yaml:"rerank_preview_runes"`

	// Full-text languages probed per query; the index must support each.
	Languages []string `yaml:"languages"`

	// ExcludeTerms extends the analyzer's stop-word list with deployment
	// boilerplate ("please", product names, greeting phrases).
	ExcludeTerms []string `yaml:"exclude_terms"`

	// Conversation-context enhancement.
	HistoryTurns       int     `yaml:"history_turns"`
	MinTopicContinuity float64 `yaml:"min_topic_continuity"`

	// Token estimation for the context packer.
	TokenEncoding     string `yaml:"token_encoding"` // tiktoken encoding name, empty = heuristic only
	ChunkTokenOverhead int   `yaml:"chunk_token_overhead"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.VectorDim <= 0 {
		c.Storage.VectorDim = 1024
	}
	if c.Storage.HNSWM <= 0 {
		c.Storage.HNSWM = 32
	}
	if c.Storage.HNSWEFConstruct <= 0 {
		c.Storage.HNSWEFConstruct = 400
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.CacheTTLh <= 0 {
		c.Embedding.CacheTTLh = 24
	}
	if c.Completion.TimeoutSec <= 0 {
		c.Completion.TimeoutSec = 20
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = 256
	}
	c.Retrieval.ApplyDefaults()
}

// ApplyDefaults fills the retrieval tuning constants with their production values.
func (r *RetrievalConfig) ApplyDefaults() {
	if r.MaxChunks <= 0 {
		r.MaxChunks = 5
	}
	if r.CandidateMultiple <= 0 {
		r.CandidateMultiple = 4
	}
	if r.ContextTokenBudget <= 0 {
		r.ContextTokenBudget = 3000
	}
	if r.SemanticWeight <= 0 {
		r.SemanticWeight = 0.4
	}
	if r.KeywordWeight <= 0 {
		r.KeywordWeight = 0.5
	}
	if r.FulltextWeight <= 0 {
		r.FulltextWeight = 0.6
	}
	if r.BaseThreshold <= 0 {
		r.BaseThreshold = 0.5
	}
	if r.ShortQueryRunes <= 0 {
		r.ShortQueryRunes = 6
	}
	if r.LongQueryRunes <= 0 {
		r.LongQueryRunes = 40
	}
	if r.BandAdjust <= 0 {
		r.BandAdjust = 0.05
	}
	if r.ContainerAdjust <= 0 {
		r.ContainerAdjust = 0.05
	}
	if r.DocumentAdjust <= 0 {
		r.DocumentAdjust = 0.1
	}
	if r.ThresholdFloor <= 0 {
		r.ThresholdFloor = 0.2
	}
	if r.RelaxationStep <= 0 {
		r.RelaxationStep = 0.05
	}
	if r.MaxSemanticAttempts <= 0 {
		r.MaxSemanticAttempts = 3
	}
	if r.CutlineFloor <= 0 {
		r.CutlineFloor = 0.35
	}
	if r.ScopedCutlineFloor <= 0 {
		r.ScopedCutlineFloor = 0.2
	}
	if r.OverFilterGuard <= 0 {
		r.OverFilterGuard = 0.7
	}
	if r.MinKeepMultiple <= 0 {
		r.MinKeepMultiple = 2
	}
	if r.RerankMaxCandidates <= 0 {
		r.RerankMaxCandidates = 20
	}
	if r.RerankPreviewRunes <= 0 {
		r.RerankPreviewRunes = 200
	}
	if len(r.Languages) == 0 {
		r.Languages = []string{"english", "korean"}
	}
	if r.HistoryTurns <= 0 {
		r.HistoryTurns = 6
	}
	if r.MinTopicContinuity <= 0 {
		r.MinTopicContinuity = 0.2
	}
	if r.ChunkTokenOverhead <= 0 {
		r.ChunkTokenOverhead = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	r := &c.Retrieval
	if r.BaseThreshold <= 0 || r.BaseThreshold >= 1 {
		return fmt.Errorf("retrieval.base_threshold must be in (0, 1), got %g", r.BaseThreshold)
	}
	if r.ThresholdFloor >= r.BaseThreshold {
		return fmt.Errorf("retrieval.threshold_floor %g must be below base_threshold %g",
			r.ThresholdFloor, r.BaseThreshold)
	}
	if r.OverFilterGuard <= 0 || r.OverFilterGuard > 1 {
		return fmt.Errorf("retrieval.over_filter_guard must be in (0, 1], got %g", r.OverFilterGuard)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
