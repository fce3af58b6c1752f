// Package config loads the JSON configuration file and resolves ${VAR} and
// ${VAR:default} references against the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Completion CompletionConfig `json:"completion"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Cognition  CognitionConfig  `json:"cognition"`
	Minions    []MinionConfig   `json:"minions"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
}

type CompletionConfig struct {
	Endpoint    string  `json:"endpoint"`
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TimeoutSec  int     `json:"timeout_sec"`
}

type EmbeddingConfig struct {
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// CognitionConfig tunes the background loops and memory layers of the core.
// Zero values fall back to each engine's documented defaults.
type CognitionConfig struct {
	MoodAlpha             float64 `json:"mood_alpha"`
	RegulationIntervalSec int     `json:"regulation_interval_sec"`
	ExtremeThreshold      float64 `json:"extreme_threshold"`
	PullFactor            float64 `json:"pull_factor"`
	ConsolidationSec      int     `json:"consolidation_interval_sec"`
	AutonomyIntervalSec   int     `json:"autonomy_interval_sec"`
	AutonomyThreshold     float64 `json:"autonomy_threshold"`
	RateQuota             int     `json:"rate_quota"`
	RateWindowSec         int     `json:"rate_window_sec"`
	LoopThreshold         float64 `json:"loop_threshold"`
	HealthCeiling         float64 `json:"health_ceiling"`
	WorkingCapacity       int     `json:"working_capacity"`
	ShortTermTTLSec       int     `json:"short_term_ttl_sec"`
	PromotionThreshold    float64 `json:"promotion_threshold"`
	RetentionFloor        float64 `json:"retention_floor"`
	DecayHalfLifeHours    float64 `json:"decay_half_life_hours"`
}

// MinionConfig describes one minion to spawn at startup.
type MinionConfig struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Persona string  `json:"persona"`
	Alpha   float64 `json:"alpha"`
}

// RegulationInterval returns the configured interval or zero for defaults.
func (c CognitionConfig) RegulationInterval() time.Duration {
	return time.Duration(c.RegulationIntervalSec) * time.Second
}

// ConsolidationInterval returns the configured interval or zero for defaults.
func (c CognitionConfig) ConsolidationInterval() time.Duration {
	return time.Duration(c.ConsolidationSec) * time.Second
}

// AutonomyInterval returns the configured interval or zero for defaults.
func (c CognitionConfig) AutonomyInterval() time.Duration {
	return time.Duration(c.AutonomyIntervalSec) * time.Second
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns a configuration that runs entirely in-process: no external
// databases, a local OpenAI-compatible endpoint, one sample minion.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, LogLevel: "info"},
		Completion: CompletionConfig{
			Endpoint:    "http://localhost:11434/v1",
			Model:       "llama3.2",
			Temperature: 0.7,
			MaxTokens:   512,
			TimeoutSec:  15,
		},
		Embedding: EmbeddingConfig{Dimension: 64},
		Minions: []MinionConfig{
			{ID: "kevin", Name: "Kevin", Persona: "A cheerful, slightly chaotic helper."},
		},
	}
}
