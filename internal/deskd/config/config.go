package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Completion CompletionConfig `yaml:"completion"`
	Generation GenerationConfig `yaml:"generation"`
	Stream     StreamConfig     `yaml:"stream"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	PublicURL       string        `yaml:"public_url"`
	APIKeys         []APIKey      `yaml:"api_keys"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// APIKey maps a bearer token to the owner it authenticates. Name is the
// owner id recorded on every app created with the key.
type APIKey struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" (cgo) or "sqlite" (pure Go)
	Path   string `yaml:"path"`
}

type StorageConfig struct {
	Type  string             `yaml:"type"` // "memory", "local", "s3", "git"
	Local LocalStorageConfig `yaml:"local"`
	S3    S3StorageConfig    `yaml:"s3"`
	Git   GitStorageConfig   `yaml:"git"`
}

type LocalStorageConfig struct {
	Path string `yaml:"path"`
}

type S3StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // MinIO and other S3-compatible stores
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type GitStorageConfig struct {
	RepositoryURL string `yaml:"repository_url"` // empty keeps a local-only repository
	Branch        string `yaml:"branch"`
	LocalPath     string `yaml:"local_path"`
	Username      string `yaml:"username"`
	Token         string `yaml:"token"`
	AuthorName    string `yaml:"author_name"`
	AuthorEmail   string `yaml:"author_email"`
}

type CompletionConfig struct {
	Provider      string        `yaml:"provider"` // "anthropic", "ollama"
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	DefaultModel  string        `yaml:"default_model"`
	AllowedModels []string      `yaml:"allowed_models"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int64         `yaml:"max_concurrent"`
}

type GenerationConfig struct {
	SystemPrompt        string  `yaml:"system_prompt"`
	MaxPromptLength     int     `yaml:"max_prompt_length"`
	MetadataTemperature float64 `yaml:"metadata_temperature"`
	CodeTemperature     float64 `yaml:"code_temperature"`
	MetadataMaxTokens   int     `yaml:"metadata_max_tokens"`
	CodeMaxTokens       int     `yaml:"code_max_tokens"`
}

type StreamConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const DefaultSystemPrompt = `You are an expert web developer. Build the requested application as ONE complete, self-contained HTML document.

Rules:
1. Output ONLY the HTML document, starting with <!DOCTYPE html> and ending with </html>
2. Inline all CSS in <style> and all JavaScript in <script>; no external scripts, stylesheets or fonts
3. Do not fetch anything from other origins
4. Persist user data with localStorage when the app needs state
5. Make it responsive; it will be shown inside a resizable desktop window
6. NEVER use placeholder comments - write all of the code`

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	dataStr := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(dataStr), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.Path == "" {
		c.Database.Path = "/data/gendesk.db"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.Local.Path == "" {
		c.Storage.Local.Path = "/data/content"
	}
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = "us-east-1"
	}
	if c.Storage.Git.Branch == "" {
		c.Storage.Git.Branch = "main"
	}
	if c.Storage.Git.LocalPath == "" {
		c.Storage.Git.LocalPath = "/data/content-repo"
	}
	if c.Storage.Git.AuthorName == "" {
		c.Storage.Git.AuthorName = "gendesk"
	}
	if c.Storage.Git.AuthorEmail == "" {
		c.Storage.Git.AuthorEmail = "gendesk@localhost"
	}

	if c.Completion.Provider == "" {
		c.Completion.Provider = "anthropic"
	}
	if c.Completion.DefaultModel == "" {
		switch c.Completion.Provider {
		case "ollama":
			c.Completion.DefaultModel = "llama3.2"
		default:
			c.Completion.DefaultModel = "claude-sonnet-4-5"
		}
	}
	if c.Completion.Timeout == 0 {
		c.Completion.Timeout = 5 * time.Minute
	}
	if c.Completion.MaxConcurrent == 0 {
		c.Completion.MaxConcurrent = 5
	}

	if c.Generation.SystemPrompt == "" {
		c.Generation.SystemPrompt = DefaultSystemPrompt
	}
	if c.Generation.MaxPromptLength == 0 {
		c.Generation.MaxPromptLength = 10000
	}
	if c.Generation.MetadataTemperature == 0 {
		c.Generation.MetadataTemperature = 0.7
	}
	if c.Generation.CodeTemperature == 0 {
		c.Generation.CodeTemperature = 0.7
	}
	if c.Generation.MetadataMaxTokens == 0 {
		c.Generation.MetadataMaxTokens = 200
	}
	if c.Generation.CodeMaxTokens == 0 {
		c.Generation.CodeMaxTokens = 16000
	}

	if c.Stream.PollInterval == 0 {
		c.Stream.PollInterval = 500 * time.Millisecond
	}
	if c.Stream.MaxAttempts == 0 {
		c.Stream.MaxAttempts = 120
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate reports configuration that would only fail later at runtime.
func (c *Config) Validate() error {
	if len(c.Server.APIKeys) == 0 {
		return fmt.Errorf("server.api_keys is required")
	}
	for i, k := range c.Server.APIKeys {
		if k.Name == "" || k.Key == "" {
			return fmt.Errorf("server.api_keys[%d]: name and key are required", i)
		}
	}

	switch c.Database.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Storage.Type {
	case "memory", "local", "git":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	switch c.Completion.Provider {
	case "anthropic":
		if c.Completion.APIKey == "" {
			return fmt.Errorf("completion.api_key is required for the anthropic provider")
		}
	case "ollama":
	default:
		return fmt.Errorf("unsupported completion provider: %s", c.Completion.Provider)
	}

	return nil
}

// OwnerForKey returns the owner authenticated by key, or "" if the key is unknown.
func (c *Config) OwnerForKey(key string) string {
	for _, ak := range c.Server.APIKeys {
		if ak.Key == key {
			return ak.Name
		}
	}
	return ""
}

// ModelAllowed reports whether model may be requested by clients. An empty
// allow list permits any model.
func (c *Config) ModelAllowed(model string) bool {
	if len(c.Completion.AllowedModels) == 0 {
		return true
	}
	for _, m := range c.Completion.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}
