// Package config provides configuration loading and structs for the Kanshi server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Agent     AgentConfig     `yaml:"agent"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds embedding generator settings. Provider is "openai" or
// "mock" (deterministic, for offline runs and tests).
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// AgentConfig holds the conversational agent settings.
type AgentConfig struct {
	Model         string `yaml:"model"`
	MaxToolLoops  int    `yaml:"max_tool_loops"`
	MaxCitations  int    `yaml:"max_citations"`
	SnippetLength int    `yaml:"snippet_length"`
}

// IngestConfig holds ingestion settings. DedupWindowHours is the trailing
// window inside which a URL already present in the store suppresses re-insert;
// once it elapses the same URL is captured again as a fresh snapshot.
type IngestConfig struct {
	DedupWindowHours int                     `yaml:"dedup_window_hours"`
	Sources          map[string]SourceConfig `yaml:"sources"`
}

// SourceConfig configures one source adapter. Enabled nil means enabled; only
// an explicit false skips the adapter. The remaining knobs are sparse and
// per-adapter: unused fields are ignored by adapters that do not need them.
type SourceConfig struct {
	Enabled         *bool        `yaml:"enabled" json:"enabled,omitempty"`
	Subreddits      []string     `yaml:"subreddits" json:"subreddits,omitempty"`
	FeedURL         string       `yaml:"feed_url" json:"feedUrl,omitempty"`
	Feeds           []FeedConfig `yaml:"feeds" json:"feeds,omitempty"`
	Mode            string       `yaml:"mode" json:"mode,omitempty"`
	MaxItems        int          `yaml:"max_items" json:"maxItems,omitempty"`
	FetchComments   bool         `yaml:"fetch_comments" json:"fetchComments,omitempty"`
	MaxComments     int          `yaml:"max_comments" json:"maxComments,omitempty"`
	Keywords        []string     `yaml:"keywords" json:"keywords,omitempty"`
	ExcludeKeywords []string     `yaml:"exclude_keywords" json:"excludeKeywords,omitempty"`
	Pages           []string     `yaml:"pages" json:"pages,omitempty"`
	Queries         []QueryPresetConfig `yaml:"queries" json:"queries,omitempty"`
	Timespan        string       `yaml:"timespan" json:"timespan,omitempty"`
	TimeoutSeconds  int          `yaml:"timeout_seconds" json:"timeoutSeconds,omitempty"`
}

// IsEnabled reports whether the adapter should run: only an explicit false
// disables it.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// FeedConfig describes one RSS/Atom feed to poll.
type FeedConfig struct {
	Publisher string   `yaml:"publisher" json:"publisher"`
	URL       string   `yaml:"url" json:"url"`
	Tags      []string `yaml:"tags" json:"tags,omitempty"`
}

// QueryPresetConfig is one named query for the GDELT adapter.
type QueryPresetConfig struct {
	Name  string   `yaml:"name" json:"name"`
	Query string   `yaml:"query" json:"query"`
	Tags  []string `yaml:"tags" json:"tags,omitempty"`
}

// KnowledgeConfig holds chunking and drop-directory settings.
type KnowledgeConfig struct {
	ChunkSize       int      `yaml:"chunk_size"`
	ChunkOverlap    int      `yaml:"chunk_overlap"`
	DropDirectories []string `yaml:"drop_directories"`
	Extensions      []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Knowledge.DropDirectories {
		cfg.Knowledge.DropDirectories[i] = expandPath(cfg.Knowledge.DropDirectories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
