package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Workspace string          `json:"workspace" env:"AETHER_WORKSPACE"`
	LogLevel  string          `json:"log_level" env:"AETHER_LOG_LEVEL"`
	Gateway   GatewayConfig   `json:"gateway"`
	Memory    MemoryConfig    `json:"memory"`
	Extractor ExtractorConfig `json:"extractor"`
	mu        sync.RWMutex
}

type GatewayConfig struct {
	Host string `json:"host" env:"AETHER_GATEWAY_HOST"`
	Port int    `json:"port" env:"AETHER_GATEWAY_PORT"`
}

type MemoryConfig struct {
	SimilarityThreshold float64 `json:"similarity_threshold" env:"AETHER_MEMORY_SIMILARITY_THRESHOLD"`
	TopK                int     `json:"top_k" env:"AETHER_MEMORY_TOP_K"`
	LastPrompts         int     `json:"last_prompts" env:"AETHER_MEMORY_LAST_PROMPTS"`
	QueryTimeoutMS      int     `json:"query_timeout_ms" env:"AETHER_MEMORY_QUERY_TIMEOUT_MS"`
	CacheTTLSeconds     int     `json:"cache_ttl_seconds" env:"AETHER_MEMORY_CACHE_TTL_SECONDS"`
	ReconcileSchedule   string  `json:"reconcile_schedule" env:"AETHER_MEMORY_RECONCILE_SCHEDULE"`
	EmbeddingModel      string  `json:"embedding_model" env:"AETHER_MEMORY_EMBEDDING_MODEL"`
}

// ExtractorConfig selects how candidate statements are produced. Mode is
// "heuristic" or "llm"; the remaining fields only apply to llm mode.
type ExtractorConfig struct {
	Mode    string `json:"mode" env:"AETHER_EXTRACTOR_MODE"`
	APIKey  string `json:"api_key" env:"AETHER_EXTRACTOR_API_KEY"`
	APIBase string `json:"api_base" env:"AETHER_EXTRACTOR_API_BASE"`
	Model   string `json:"model" env:"AETHER_EXTRACTOR_MODEL"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.aether/workspace",
		LogLevel:  "info",
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18890,
		},
		Memory: MemoryConfig{
			SimilarityThreshold: 0.75,
			TopK:                5,
			LastPrompts:         5,
			QueryTimeoutMS:      3000,
			CacheTTLSeconds:     30,
			ReconcileSchedule:   "*/10 * * * *",
			EmbeddingModel:      "aether-chargram-384-v1",
		},
		Extractor: ExtractorConfig{
			Mode:    "heuristic",
			APIBase: "https://openrouter.ai/api/v1",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Workspace)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
