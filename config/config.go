// Package config loads the recognized options surface of spec.md §6 from
// an optional YAML file overlaid by environment variables (environment
// values win), grounded on the
// pack's graph.Config/Configurable map idiom generalized to a typed,
// validated struct.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrorigo/memcore/memerr"
)

// Config is the recognized options table of §6.
type Config struct {
	EnableChatMemory             bool          `yaml:"enableChatMemory"`
	EnableEmbeddingMemory        bool          `yaml:"enableEmbeddingMemory"`
	MemoryProcessingMode         string        `yaml:"memoryProcessingMode"`
	MinImportanceLevel           string        `yaml:"minImportanceLevel"`
	BufferTimeoutMS              int           `yaml:"bufferTimeout_ms"`
	MaxBufferSizeChars           int           `yaml:"maxBufferSize_chars"`
	BackgroundUpdateIntervalMS   int           `yaml:"backgroundUpdateInterval_ms"`
	Namespace                    string        `yaml:"namespace"`
	EnableRelationshipExtraction bool          `yaml:"enableRelationshipExtraction"`
	MaxTraversalDepth            int           `yaml:"maxTraversalDepth"`
	DefaultTraversalDepth        int           `yaml:"defaultTraversalDepth"`

	BufferTimeout            time.Duration `yaml:"-"`
	BackgroundUpdateInterval time.Duration `yaml:"-"`
}

var validProcessingModes = map[string]bool{"auto": true, "conscious": true, "none": true}
var validImportanceLevels = map[string]bool{"critical": true, "high": true, "medium": true, "low": true, "all": true}

// Default returns the baseline configuration before any overlay is
// applied.
func Default() Config {
	return Config{
		EnableChatMemory:       true,
		EnableEmbeddingMemory:  false,
		MemoryProcessingMode:   "auto",
		MinImportanceLevel:     "all",
		BufferTimeoutMS:        30_000,
		MaxBufferSizeChars:     100_000,
		Namespace:              "default",
		MaxTraversalDepth:      10,
		DefaultTraversalDepth:  3,
	}
}

// Load builds a Config from Default(), an optional YAML file at yamlPath
// (skipped if empty or absent), and environment variables (highest
// precedence), then validates.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if yamlErr := yaml.Unmarshal(data, &cfg); yamlErr != nil {
				return cfg, &memerr.ConfigurationError{Setting: "yaml", Reason: yamlErr.Error()}
			}
		} else if !os.IsNotExist(err) {
			return cfg, &memerr.ConfigurationError{Setting: "yaml", Reason: err.Error()}
		}
	}

	applyEnvOverlay(&cfg)

	cfg.BufferTimeout = time.Duration(cfg.BufferTimeoutMS) * time.Millisecond
	cfg.BackgroundUpdateInterval = time.Duration(cfg.BackgroundUpdateIntervalMS) * time.Millisecond

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverlay(cfg *Config) {
	if v, ok := os.LookupEnv("MEMCORE_ENABLE_CHAT_MEMORY"); ok {
		cfg.EnableChatMemory, _ = strconv.ParseBool(v)
	}
	if v, ok := os.LookupEnv("MEMCORE_ENABLE_EMBEDDING_MEMORY"); ok {
		cfg.EnableEmbeddingMemory, _ = strconv.ParseBool(v)
	}
	if v, ok := os.LookupEnv("MEMCORE_PROCESSING_MODE"); ok {
		cfg.MemoryProcessingMode = v
	}
	if v, ok := os.LookupEnv("MEMCORE_MIN_IMPORTANCE"); ok {
		cfg.MinImportanceLevel = v
	}
	if v, ok := os.LookupEnv("MEMCORE_BUFFER_TIMEOUT_MS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BufferTimeoutMS = n
		}
	}
	if v, ok := os.LookupEnv("MEMCORE_MAX_BUFFER_SIZE_CHARS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxBufferSizeChars = n
		}
	}
	if v, ok := os.LookupEnv("MEMCORE_NAMESPACE"); ok {
		cfg.Namespace = v
	}
	if v, ok := os.LookupEnv("MEMCORE_ENABLE_RELATIONSHIP_EXTRACTION"); ok {
		cfg.EnableRelationshipExtraction, _ = strconv.ParseBool(v)
	}
}

func validate(cfg Config) error {
	if !validProcessingModes[cfg.MemoryProcessingMode] {
		return &memerr.ConfigurationError{Setting: "memoryProcessingMode", Reason: "must be auto, conscious, or none"}
	}
	if !validImportanceLevels[cfg.MinImportanceLevel] {
		return &memerr.ConfigurationError{Setting: "minImportanceLevel", Reason: "must be critical, high, medium, low, or all"}
	}
	if cfg.BufferTimeoutMS <= 0 {
		return &memerr.ConfigurationError{Setting: "bufferTimeout_ms", Reason: "must be positive"}
	}
	if cfg.MaxBufferSizeChars <= 0 {
		return &memerr.ConfigurationError{Setting: "maxBufferSize_chars", Reason: "must be positive"}
	}
	if cfg.MaxTraversalDepth <= 0 {
		return &memerr.ConfigurationError{Setting: "maxTraversalDepth", Reason: "must be positive"}
	}
	if cfg.DefaultTraversalDepth > cfg.MaxTraversalDepth {
		return &memerr.ConfigurationError{Setting: "defaultTraversalDepth", Reason: "exceeds maxTraversalDepth"}
	}
	return nil
}
