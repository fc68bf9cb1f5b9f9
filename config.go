package nextline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	defaults "github.com/nextline-dev/nextline/default"
)

// Backend names accepted in the model.backend setting.
const (
	BackendHuggingFace = "huggingface"
	BackendOllama      = "ollama"
	BackendOpenAI      = "openai"
	BackendNone        = "none"
)

const (
	defaultHuggingFaceURL = "https://router.huggingface.co/hf-inference/models"
	defaultHubURL         = "https://huggingface.co"
)

// Config represents the nextline configuration.
type Config struct {
	Version int           `toml:"version" json:"version"`
	Server  ServerConfig  `toml:"server" json:"server"`
	Model   ModelConfig   `toml:"model" json:"model"`
	Cache   CacheConfig   `toml:"cache" json:"cache"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
	// GenerationTimeoutSeconds bounds a single generation call. 0 means no bound.
	GenerationTimeoutSeconds int `toml:"generation_timeout_seconds,omitempty" json:"generation_timeout_seconds,omitempty"`
}

// ModelConfig selects the inference backend and model.
type ModelConfig struct {
	Backend string `toml:"backend" json:"backend"`
	Name    string `toml:"name" json:"name"`
	BaseURL string `toml:"base_url,omitempty" json:"base_url,omitempty"`
	HubURL  string `toml:"hub_url,omitempty" json:"hub_url,omitempty"`
	APIKey  string `toml:"api_key,omitempty" json:"-"`
	Pull    *bool  `toml:"pull,omitempty" json:"pull,omitempty"`
}

// CacheConfig holds suggestion cache settings.
type CacheConfig struct {
	// TTLSeconds is how long a model suggestion is reused. 0 disables the cache.
	TTLSeconds int `toml:"ttl_seconds,omitempty" json:"ttl_seconds,omitempty"`
	MaxEntries int `toml:"max_entries,omitempty" json:"max_entries,omitempty"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file,omitempty" json:"file,omitempty"`
}

// ConfigDir returns the config directory path.
// Resolution order: $NEXTLINE_CONFIG_DIR > $XDG_CONFIG_HOME/nextline > ~/.config/nextline
func ConfigDir() string {
	if dir := os.Getenv("NEXTLINE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "nextline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "nextline-config")
	}
	return filepath.Join(home, ".config", "nextline")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("nextline: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile decodes the TOML file at path and fills missing fields from defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Model.Backend == "" {
		cfg.Model.Backend = defaults.Model.Backend
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = defaults.Model.Name
	}
	if cfg.Model.HubURL == "" {
		cfg.Model.HubURL = defaults.Model.HubURL
	}
	if cfg.Model.Pull == nil {
		cfg.Model.Pull = defaults.Model.Pull
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = defaults.Cache.MaxEntries
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	switch ResolveBackend(cfg) {
	case BackendOllama, BackendNone:
	case BackendHuggingFace:
		if ResolveAPIKey(cfg) == "" && ResolveBaseURL(cfg) == defaultHuggingFaceURL {
			warnings = append(warnings, "huggingface backend selected but no API key (HF_TOKEN) is configured; the hosted inference API will reject generation and the server will run in fallback mode")
		}
	case BackendOpenAI:
		if ResolveAPIKey(cfg) == "" {
			warnings = append(warnings, "openai backend selected but no API key is configured; model load will likely fail")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown backend %q; the server will run in fallback mode", ResolveBackend(cfg)))
	}
	if _, err := ResolvePort(cfg); err != nil {
		warnings = append(warnings, err.Error())
	}
	if cfg.Cache.TTLSeconds < 0 {
		warnings = append(warnings, "cache.ttl_seconds is negative; the suggestion cache is disabled")
	}
	if cfg.Cache.MaxEntries < 0 {
		warnings = append(warnings, "cache.max_entries is negative; the suggestion cache is unbounded")
	}
	return warnings
}

// ResolveModelName returns the model identifier.
// Priority: $MODEL_NAME env > config value.
func ResolveModelName(cfg *Config) string {
	if name := os.Getenv("MODEL_NAME"); name != "" {
		return name
	}
	if cfg != nil {
		return cfg.Model.Name
	}
	return ""
}

// ResolveBackend returns the lower-cased backend name.
// Priority: $NEXTLINE_BACKEND env > config value.
func ResolveBackend(cfg *Config) string {
	if backend := os.Getenv("NEXTLINE_BACKEND"); backend != "" {
		return strings.ToLower(backend)
	}
	if cfg != nil {
		return strings.ToLower(cfg.Model.Backend)
	}
	return ""
}

// ResolveBaseURL returns the backend API base URL, falling back to the backend's
// well-known default when neither env nor config sets one.
// Priority: $NEXTLINE_BASE_URL env > config value > backend default.
func ResolveBaseURL(cfg *Config) string {
	if url := os.Getenv("NEXTLINE_BASE_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	if cfg != nil && cfg.Model.BaseURL != "" {
		return strings.TrimRight(cfg.Model.BaseURL, "/")
	}
	switch ResolveBackend(cfg) {
	case BackendHuggingFace:
		return defaultHuggingFaceURL
	case BackendOllama:
		return "http://localhost:11434"
	case BackendOpenAI:
		return "https://api.openai.com/v1"
	}
	return ""
}

// ResolveHubURL returns the model hub URL used to verify Hugging Face model ids.
// Priority: $NEXTLINE_HUB_URL env > config value > huggingface.co.
func ResolveHubURL(cfg *Config) string {
	if url := os.Getenv("NEXTLINE_HUB_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	if cfg != nil && cfg.Model.HubURL != "" {
		return strings.TrimRight(cfg.Model.HubURL, "/")
	}
	return defaultHubURL
}

// ResolveAPIKey returns the backend API key.
// Priority: $NEXTLINE_API_KEY env > $HF_TOKEN env (huggingface only) > config value.
func ResolveAPIKey(cfg *Config) string {
	if key := os.Getenv("NEXTLINE_API_KEY"); key != "" {
		return key
	}
	if ResolveBackend(cfg) == BackendHuggingFace {
		if key := os.Getenv("HF_TOKEN"); key != "" {
			return key
		}
	}
	if cfg != nil {
		return cfg.Model.APIKey
	}
	return ""
}

// ResolvePort returns the listen port.
// Priority: $PORT env > config value.
func ResolvePort(cfg *Config) (int, error) {
	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || port < 0 || port > 65535 {
			return 0, fmt.Errorf("invalid port %q", raw)
		}
		return port, nil
	}
	if cfg == nil {
		return 0, fmt.Errorf("no port configured")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return 0, fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	return cfg.Server.Port, nil
}

// ListenAddr returns host:port for the HTTP listener.
func ListenAddr(cfg *Config) (string, error) {
	port, err := ResolvePort(cfg)
	if err != nil {
		return "", err
	}
	host := "0.0.0.0"
	if cfg != nil && cfg.Server.Host != "" {
		host = cfg.Server.Host
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}

// ResolveLogLevel returns the log level name.
// Priority: $LOG_LEVEL env > config value.
func ResolveLogLevel(cfg *Config) string {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		return strings.ToLower(level)
	}
	if cfg != nil {
		return strings.ToLower(cfg.Logging.Level)
	}
	return "info"
}

// ResolveLogFile returns the rotated log file path, or "" for stderr only.
// Priority: $LOG_FILE env > config value.
func ResolveLogFile(cfg *Config) string {
	if path := os.Getenv("LOG_FILE"); path != "" {
		return path
	}
	if cfg != nil {
		return cfg.Logging.File
	}
	return ""
}

// PullEnabled returns whether missing models may be downloaded at load time.
func PullEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Model.Pull == nil {
		return true // default true
	}
	return *cfg.Model.Pull
}

// CacheTTL returns the suggestion cache TTL; zero means disabled.
func CacheTTL(cfg *Config) time.Duration {
	if cfg == nil || cfg.Cache.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.Cache.TTLSeconds) * time.Second
}

// CacheMaxEntries returns the suggestion cache capacity; zero means unbounded.
func CacheMaxEntries(cfg *Config) uint64 {
	if cfg == nil || cfg.Cache.MaxEntries <= 0 {
		return 0
	}
	return uint64(cfg.Cache.MaxEntries)
}

// GenerationTimeout returns the per-call generation bound; zero means none.
func GenerationTimeout(cfg *Config) time.Duration {
	if cfg == nil || cfg.Server.GenerationTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.Server.GenerationTimeoutSeconds) * time.Second
}
