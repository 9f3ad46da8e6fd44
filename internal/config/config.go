// Package config provides YAML-based configuration for nexus.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so containerised deployments that set
// everything through the environment are unaffected by a stray config file.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. NEXUS_CONFIG environment variable
//  3. ~/.nexus/config.yaml
//  4. ./nexus.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming.
type Config struct {
	// Gemini configures the generative model backend and its fallback ladder.
	Gemini GeminiConfig `yaml:"gemini"`

	// Embedding configures the embedding model used for ingestion and retrieval.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Limits configures the three-tier admission limiter.
	Limits LimitsConfig `yaml:"limits"`

	// Ingest configures the document ingestion pipeline.
	Ingest IngestConfig `yaml:"ingest"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Store configures the SQLite session store.
	Store StoreConfig `yaml:"store"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig holds generative model settings.
type GeminiConfig struct {
	// APIKey is the Google AI Studio API key. Prefer env var GEMINI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Models overrides the built-in fallback hierarchy, ordered from most
	// capable to lightest. Comma-joined into GEMINI_MODELS.
	Models []string `yaml:"models"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	// Model is the embedding model name (default: gemini-embedding-001).
	Model string `yaml:"model"`
	// Dimensions is the output vector size (default: 768). Must match the
	// Qdrant collection; changing it requires re-ingesting all documents.
	Dimensions int `yaml:"dimensions"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// LimitsConfig holds the admission limiter ceilings.
type LimitsConfig struct {
	// PerMinute is the per-user requests-per-minute ceiling.
	PerMinute int `yaml:"per_minute"`
	// PerHour is the per-user requests-per-hour ceiling.
	PerHour int `yaml:"per_hour"`
	// GlobalInFlight is the cross-user concurrent request ceiling.
	GlobalInFlight int `yaml:"global_in_flight"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the overlap between consecutive chunks in characters.
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
}

// StoreConfig holds session store settings.
type StoreConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable
	// conversation persistence.
	DBPath string `yaml:"db_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"GEMINI_API_KEY", func(c *Config) string { return c.Gemini.APIKey }},
	{"GEMINI_MODELS", func(c *Config) string { return strings.Join(c.Gemini.Models, ",") }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"LIMIT_PER_MINUTE", func(c *Config) string { return intStr(c.Limits.PerMinute) }},
	{"LIMIT_PER_HOUR", func(c *Config) string { return intStr(c.Limits.PerHour) }},
	{"LIMIT_GLOBAL_IN_FLIGHT", func(c *Config) string { return intStr(c.Limits.GlobalInFlight) }},
	{"INGEST_CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingest.ChunkSize) }},
	{"INGEST_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingest.ChunkOverlap) }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"NEXUS_DB", func(c *Config) string { return c.Store.DBPath }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("NEXUS_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".nexus", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("nexus.yaml"); err == nil {
		return "nexus.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
