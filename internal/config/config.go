package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "~/.clusterkit/config.yaml"

// Config is the top-level configuration.
type Config struct {
	Clustering ClusteringConfig `yaml:"clustering"`
	Features   string           `yaml:"features"`
	GitHub     GitHubConfig     `yaml:"github"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Notify     NotifyConfig     `yaml:"notify"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	Store      StoreConfig      `yaml:"store"`
}

// ClusteringConfig holds the clustering parameters.
type ClusteringConfig struct {
	Linkage   string   `yaml:"linkage"`
	Threshold *float64 `yaml:"threshold"`
	NGramSize int      `yaml:"ngram_size"`
	Padding   string   `yaml:"padding"`
	StopWords *bool    `yaml:"stop_words"`
	IDF       bool     `yaml:"idf"`
	Workers   int      `yaml:"workers"`
}

// DistanceThreshold returns the configured threshold or the default.
func (c ClusteringConfig) DistanceThreshold() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// RemoveStopWords reports whether stop words are dropped before tokenizing.
func (c ClusteringConfig) RemoveStopWords() bool {
	return c.StopWords == nil || *c.StopWords
}

// GitHubConfig holds GitHub authentication settings.
// Auth is "app", "token" or empty for anonymous access.
type GitHubConfig struct {
	Auth           string `yaml:"auth"`
	Token          string `yaml:"token"`
	AppID          string `yaml:"app_id"`
	InstallationID string `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	PrivateKey     string `yaml:"private_key"`
}

// ProviderConfig holds settings for a single provider (embedding or LLM).
type ProviderConfig struct {
	Type   string `yaml:"type"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
}

// ProvidersConfig groups embedding and LLM provider configs.
type ProvidersConfig struct {
	Embedding ProviderConfig `yaml:"embedding"`
	LLM       ProviderConfig `yaml:"llm"`
}

// NotifyConfig holds notification webhook URLs.
type NotifyConfig struct {
	SlackWebhook   string `yaml:"slack_webhook"`
	DiscordWebhook string `yaml:"discord_webhook"`
}

// DefaultsConfig holds default operational parameters.
type DefaultsConfig struct {
	RequestTimeoutRaw string `yaml:"request_timeout"`
	MaxAttempts       int    `yaml:"max_attempts"`
	MaxMembersShown   int    `yaml:"max_members_shown"`
}

// StoreConfig holds storage settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Defaults applied to unset fields.
const (
	DefaultLinkage   = "average"
	DefaultThreshold = 0.3
	DefaultNGramSize = 2
	DefaultPadding   = "both"
	DefaultFeatures  = "ngram"
	DefaultWorkers   = 4
)

// RequestTimeout returns the parsed request timeout duration.
func (d DefaultsConfig) RequestTimeout() (time.Duration, error) {
	if d.RequestTimeoutRaw == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(d.RequestTimeoutRaw)
}

// envVarPattern matches ${VAR} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} placeholders with environment variable values.
// Returns an error if any referenced variable is not set.
func expandEnvVars(data []byte) ([]byte, error) {
	var missing []string

	result := envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		val, ok := os.LookupEnv(string(varName))
		if !ok {
			missing = append(missing, string(varName))
			return match
		}
		return []byte(val)
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// expandTilde replaces a leading "~" with the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ExpandPath is expandTilde for callers outside the package.
func ExpandPath(path string) string {
	return expandTilde(path)
}

// Load reads and parses a config file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads the config at path. When path is the default location
// and no file exists there, the built-in defaults are returned instead.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if err != nil && path == DefaultPath && errors.Is(err, os.ErrNotExist) {
		return Parse(nil)
	}
	return cfg, err
}

// Parse parses config from raw YAML bytes, expanding env vars and validating.
func Parse(data []byte) (*Config, error) {
	expanded, err := expandEnvVars(data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Clustering.Linkage == "" {
		cfg.Clustering.Linkage = DefaultLinkage
	}
	if cfg.Clustering.NGramSize == 0 {
		cfg.Clustering.NGramSize = DefaultNGramSize
	}
	if cfg.Clustering.Padding == "" {
		cfg.Clustering.Padding = DefaultPadding
	}
	if cfg.Clustering.Workers == 0 {
		cfg.Clustering.Workers = DefaultWorkers
	}
	if cfg.Features == "" {
		cfg.Features = DefaultFeatures
	}
	if cfg.Defaults.RequestTimeoutRaw == "" {
		cfg.Defaults.RequestTimeoutRaw = "30s"
	}
	if cfg.Defaults.MaxAttempts == 0 {
		cfg.Defaults.MaxAttempts = 3
	}
	if cfg.Defaults.MaxMembersShown == 0 {
		cfg.Defaults.MaxMembersShown = 10
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.clusterkit/clusterkit.db"
	}
	cfg.Store.Path = expandTilde(cfg.Store.Path)
}

func validate(cfg *Config) error {
	c := cfg.Clustering
	switch strings.ToLower(c.Linkage) {
	case "single", "complete", "average", "upgma":
	default:
		return fmt.Errorf("unsupported linkage: %s", c.Linkage)
	}
	if t := c.DistanceThreshold(); math.IsNaN(t) || t < 0 || t > 2 {
		return fmt.Errorf("threshold must be between 0 and 2, got %f", t)
	}
	if c.NGramSize < 1 {
		return fmt.Errorf("ngram_size must be at least 1, got %d", c.NGramSize)
	}
	switch c.Padding {
	case "none", "start", "end", "both":
	default:
		return fmt.Errorf("unsupported padding: %s", c.Padding)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	switch cfg.Features {
	case "ngram":
	case "embedding":
		if cfg.Providers.Embedding.Type == "" {
			return fmt.Errorf("features: embedding requires providers.embedding")
		}
	default:
		return fmt.Errorf("unsupported features source: %s", cfg.Features)
	}

	if _, err := time.ParseDuration(cfg.Defaults.RequestTimeoutRaw); err != nil {
		return fmt.Errorf("invalid request_timeout %q: %w", cfg.Defaults.RequestTimeoutRaw, err)
	}
	if cfg.Defaults.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", cfg.Defaults.MaxAttempts)
	}

	switch cfg.GitHub.Auth {
	case "", "token", "app":
	default:
		return fmt.Errorf("unsupported github auth: %s", cfg.GitHub.Auth)
	}

	validEmbedTypes := map[string]bool{"openai": true, "ollama": true, "": true}
	if !validEmbedTypes[cfg.Providers.Embedding.Type] {
		return fmt.Errorf("unsupported embedding provider type: %s", cfg.Providers.Embedding.Type)
	}

	validLLMTypes := map[string]bool{"openai": true, "ollama": true, "anthropic": true, "": true}
	if !validLLMTypes[cfg.Providers.LLM.Type] {
		return fmt.Errorf("unsupported LLM provider type: %s", cfg.Providers.LLM.Type)
	}

	return nil
}
