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

// Config holds the tablechat API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Provider ProviderConfig `yaml:"provider"`
	RAG      RAGConfig      `yaml:"rag"`
	Upload   UploadConfig   `yaml:"upload"`
	Sessions SessionsConfig `yaml:"sessions"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ProviderConfig holds settings for the OpenAI-compatible model provider.
// A single provider serves both embeddings and chat completions.
type ProviderConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxRetries     int    `yaml:"max_retries"` // bounded retries for transient embedding failures
}

// RAGConfig holds chunking, retrieval, and prompting settings.
type RAGConfig struct {
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	TopK           int     `yaml:"top_k"`
	Temperature    float32 `yaml:"temperature"`
	PromptTemplate string  `yaml:"prompt_template"` // optional; {context} and {question} placeholders
}

// UploadConfig holds upload validation settings.
type UploadConfig struct {
	MaxFileBytes      int64    `yaml:"max_file_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	SpoolDir          string   `yaml:"spool_dir"` // empty = OS temp dir
}

// SessionsConfig holds session registry eviction settings.
type SessionsConfig struct {
	MaxSessions        int `yaml:"max_sessions"`
	TTLSec             int `yaml:"ttl_sec"`
	JanitorIntervalSec int `yaml:"janitor_interval_sec"`
}

// CacheConfig holds the optional Redis embedding cache settings.
// The cache is disabled when addrs is empty.
type CacheConfig struct {
	Addrs               []string `yaml:"addrs"`
	Password            string   `yaml:"password"`
	TTLSec              int      `yaml:"ttl_sec"`
	ReadinessTimeoutSec int      `yaml:"readiness_timeout_sec"`
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
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Provider.EmbeddingModel == "" {
		c.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Provider.ChatModel == "" {
		c.Provider.ChatModel = "gpt-4o-mini"
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 60
	}
	if c.Provider.MaxRetries < 0 {
		c.Provider.MaxRetries = 0
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap <= 0 {
		c.RAG.ChunkOverlap = 200
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 4
	}
	if c.RAG.Temperature <= 0 {
		c.RAG.Temperature = 0.3
	}
	if c.Upload.MaxFileBytes <= 0 {
		c.Upload.MaxFileBytes = 10 << 20 // 10 MiB
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{".csv", ".xlsx", ".xls"}
	}
	if c.Sessions.MaxSessions <= 0 {
		c.Sessions.MaxSessions = 1000
	}
	if c.Sessions.TTLSec <= 0 {
		c.Sessions.TTLSec = 3600
	}
	if c.Sessions.JanitorIntervalSec <= 0 {
		c.Sessions.JanitorIntervalSec = 60
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 86400
	}
	if c.Cache.ReadinessTimeoutSec <= 0 {
		c.Cache.ReadinessTimeoutSec = 10
	}
}

// Validate checks the configuration for correctness.
// A missing provider API key fails here, at startup, rather than surfacing
// as a late runtime error on the first upload.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required (set OPENAI_API_KEY)")
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf(
			"rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)",
			c.RAG.ChunkOverlap, c.RAG.ChunkSize,
		)
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("upload.allowed_extensions entries must start with a dot, got %q", ext)
		}
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
