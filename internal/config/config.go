// Package config loads the engine configuration from YAML with environment
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"intentcore/internal/discovery"
	"intentcore/internal/embedding"
)

// Config is the full engine configuration.
type Config struct {
	// CatalogPath is the SQLite database holding the canonical intent
	// catalog and the staging corpus.
	CatalogPath string `yaml:"catalog_path"`

	// PilotMode makes index refresh fail fatally when any approved intent
	// is missing its embedding, instead of degrading with a warning.
	PilotMode bool `yaml:"pilot_mode"`

	Embedding embedding.Config `yaml:"embedding"`
	Resolver  ResolverConfig   `yaml:"resolver"`
	Discovery DiscoveryConfig  `yaml:"discovery"`
	Labeling  LabelingConfig   `yaml:"labeling"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ResolverConfig tunes the runtime resolution flow.
type ResolverConfig struct {
	// MatchThreshold is the minimum cosine similarity for a semantic match.
	// Zero means the engine default (0.78).
	MatchThreshold float64 `yaml:"match_threshold"`
}

// DiscoveryConfig mirrors the clustering knobs. Zero values fall back to
// the engine defaults.
type DiscoveryConfig struct {
	K                 int     `yaml:"k"`
	MaxIterations     int     `yaml:"max_iterations"`
	MinClusterSize    int     `yaml:"min_cluster_size"`
	BatchSize         int     `yaml:"batch_size"`
	Parallelism       int     `yaml:"parallelism"`
	TopClusters       int     `yaml:"top_clusters"`
	NewCandidateLimit int     `yaml:"new_candidate_limit"`
	SampleLimit       int     `yaml:"sample_limit"`
	KeywordLimit      int     `yaml:"keyword_limit"`
	CoverageThreshold float64 `yaml:"coverage_threshold"`
}

// LabelingConfig controls the optional LLM cluster labeling step.
type LabelingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// LoggingConfig controls the categorized debug logs.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CatalogPath: "intentcore.db",
		Embedding:   embedding.DefaultConfig(),
		Labeling: LabelingConfig{
			Model: "gemini-2.0-flash",
		},
		Logging: LoggingConfig{
			Dir:   ".",
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables override secrets either way.
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

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
	}
	if path := os.Getenv("INTENTCORE_DB"); path != "" {
		c.CatalogPath = path
	}
}

// DiscoveryConfig converts the YAML knobs into the pipeline configuration,
// leaving unset fields to the pipeline defaults.
func (c *Config) DiscoveryConfig() discovery.Config {
	return discovery.Config{
		K:                 c.Discovery.K,
		MaxIterations:     c.Discovery.MaxIterations,
		MinClusterSize:    c.Discovery.MinClusterSize,
		BatchSize:         c.Discovery.BatchSize,
		Parallelism:       c.Discovery.Parallelism,
		TopClusters:       c.Discovery.TopClusters,
		NewCandidateLimit: c.Discovery.NewCandidateLimit,
		SampleLimit:       c.Discovery.SampleLimit,
		KeywordLimit:      c.Discovery.KeywordLimit,
		CoverageThreshold: c.Discovery.CoverageThreshold,
	}
}
