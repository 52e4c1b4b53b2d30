// Package config provides configuration loading and structs for the Kioku server.
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
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, index, and file directories.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	UploadDir      string `yaml:"upload_dir"`
	ExportDir      string `yaml:"export_dir"`
}

// OpenAIConfig holds generation service settings. The API key is read from
// the OPENAI_API_KEY environment variable, never from the config file.
type OpenAIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	MaxPromptChars int    `yaml:"max_prompt_chars"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	APIKey         string `yaml:"-"`
}

// IngestConfig holds upload and listing limits.
type IngestConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	SummaryPreview int   `yaml:"summary_preview_chars"`
}

// WatchConfig holds drop-folder auto-ingest settings. Files dropped into the
// directories are ingested for DefaultUser.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	DefaultUser string   `yaml:"default_user"`
}

// Load reads and parses the config file at path, reads the API key from the
// environment, expands paths, and applies defaults. Returns an error if the
// file cannot be read or parsed.
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
	cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Storage.ExportDir = expandPath(cfg.Storage.ExportDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
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
