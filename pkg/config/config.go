package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	envConfigPath        = "SPECDEBATE_CONFIG"
	envProfilesDir       = "SPECDEBATE_PROFILES_DIR"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramChatID    = "TELEGRAM_CHAT_ID"
	envMetricsTextfile   = "SPECDEBATE_METRICS_FILE"
	defaultModel         = "gpt-4o"
	defaultDocType       = "tech"
	defaultTimeoutSecond = 600
	defaultOutputTokens  = 8000
	appDirName           = "adversarial-spec"
)

// Config is the root runtime configuration loaded from specdebate.json.
type Config struct {
	Debate    DebateConfig    `json:"debate"`
	Providers ProvidersConfig `json:"providers"`
	Pricing   PricingConfig   `json:"pricing,omitempty"`
	Profiles  ProfilesConfig  `json:"profiles,omitempty"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// DebateConfig holds defaults for critique rounds when flags are not given.
type DebateConfig struct {
	Models          []string `json:"models"`
	DocType         string   `json:"doc_type"`
	TimeoutSeconds  int      `json:"timeout_seconds"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	Temperature     float64  `json:"temperature"`
}

// ProvidersConfig stores per-provider connection settings.
type ProvidersConfig struct {
	OpenAI     OpenAIProviderConfig                `json:"openai"`
	OpenRouter OpenRouterProviderConfig            `json:"openrouter"`
	OpenCode   OpenCodeProviderConfig              `json:"opencode"`
	Compatible map[string]CompatibleProviderConfig `json:"compatible,omitempty"`
}

// OpenAIProviderConfig configures the OpenAI provider client.
type OpenAIProviderConfig struct {
	BaseURL      string `json:"base_url"`
	APIKeyEnv    string `json:"api_key_env"`
	Organization string `json:"organization"`
	Project      string `json:"project"`
}

// OpenRouterProviderConfig configures the OpenRouter HTTP client.
type OpenRouterProviderConfig struct {
	BaseURL   string `json:"base_url"`
	APIKeyEnv string `json:"api_key_env"`
}

// OpenCodeProviderConfig configures the opencode server client.
type OpenCodeProviderConfig struct {
	BaseURL     string `json:"base_url"`
	Username    string `json:"username"`
	PasswordEnv string `json:"password_env"`
}

// CompatibleProviderConfig overrides one OpenAI-compatible provider family.
type CompatibleProviderConfig struct {
	BaseURL   string `json:"base_url"`
	APIKeyEnv string `json:"api_key_env"`
}

// PricingConfig points at an optional YAML file of per-model rates.
type PricingConfig struct {
	Path string `json:"path,omitempty"`
}

// ProfilesConfig controls where named profiles are stored.
type ProfilesConfig struct {
	Dir string `json:"dir,omitempty"`
}

// NotifyConfig groups optional round-summary notification sinks.
type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures round summaries sent through a Telegram bot.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

// MetricsConfig configures the prometheus textfile written after a critique round.
type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig resolves specdebate.json, unmarshals it, and applies defaults and environment overrides.
//
// A missing config file is not an error; built-in defaults are used instead.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values that cannot drive a critique round.
func (c *Config) Validate() error {
	switch c.Debate.DocType {
	case "prd", "tech":
	default:
		return fmt.Errorf("debate.doc_type must be prd or tech, got %q", c.Debate.DocType)
	}
	if c.Debate.TimeoutSeconds < 0 {
		return errors.New("debate.timeout_seconds must not be negative")
	}
	if c.Debate.Temperature < 0 || c.Debate.Temperature > 2 {
		return fmt.Errorf("debate.temperature must be within [0, 2], got %v", c.Debate.Temperature)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	cfg.Debate.Models = compact(cfg.Debate.Models)
	if len(cfg.Debate.Models) == 0 {
		cfg.Debate.Models = []string{defaultModel}
	}
	cfg.Debate.DocType = strings.ToLower(strings.TrimSpace(cfg.Debate.DocType))
	if cfg.Debate.DocType == "" {
		cfg.Debate.DocType = defaultDocType
	}
	if cfg.Debate.TimeoutSeconds == 0 {
		cfg.Debate.TimeoutSeconds = defaultTimeoutSecond
	}
	if cfg.Debate.MaxOutputTokens <= 0 {
		cfg.Debate.MaxOutputTokens = defaultOutputTokens
	}
	if strings.TrimSpace(cfg.Profiles.Dir) == "" {
		cfg.Profiles.Dir = defaultProfilesDir()
	}
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if dir := strings.TrimSpace(os.Getenv(envProfilesDir)); dir != "" {
		cfg.Profiles.Dir = dir
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Notify.Telegram.Token = token
	}

	if rawChatID := strings.TrimSpace(os.Getenv(envTelegramChatID)); rawChatID != "" {
		var chatID int64
		if _, err := fmt.Sscan(rawChatID, &chatID); err == nil {
			cfg.Notify.Telegram.ChatID = chatID
		}
	}

	if textfile := strings.TrimSpace(os.Getenv(envMetricsTextfile)); textfile != "" {
		cfg.Metrics.Textfile = textfile
	}
}

// ParseCSV splits comma-separated values and returns a trimmed compact slice.
func ParseCSV(input string) []string {
	return compact(strings.Split(input, ","))
}

func compact(values []string) []string {
	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// AppDir returns the per-user configuration directory shared with profile storage.
func AppDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return filepath.Join(".", "."+appDirName)
		}
		base = filepath.Join(home, ".config")
	}

	return filepath.Join(base, appDirName)
}

func defaultProfilesDir() string {
	return filepath.Join(AppDir(), "profiles")
}

// findConfigPath resolves the active config file location.
//
// Precedence is SPECDEBATE_CONFIG first, then cwd-local fallback paths, then the user config dir.
// An empty path with a nil error means no config file exists.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "specdebate.json"),
		filepath.Join(cwd, "config", "specdebate.json"),
		filepath.Join(AppDir(), "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
