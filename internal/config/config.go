package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for wabot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Intake   IntakeConfig   `json:"intake"`
	Gateway  GatewayConfig  `json:"gateway"`
	Chat     ChatConfig     `json:"chat"`
	Resolver ResolverConfig `json:"resolver"`
	History  HistoryConfig  `json:"history"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	DataDir  string `json:"dataDir"`
	LogLevel string `json:"logLevel"`
	// Debug restricts the deployment to admin senders only; everyone
	// else is dropped by the validator while the bot is not yet public.
	Debug bool `json:"debug"`
}

// IntakeConfig configures the inbound webhook HTTP server.
type IntakeConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// WebhookSecret enables HMAC-SHA256 signature checks on intake
	// routes when non-empty.
	WebhookSecret string `json:"webhookSecret,omitempty"`
}

// GatewayConfig points at the chat gateway: BaseURL for outbound sends,
// StreamURL for the optional websocket event feed.
type GatewayConfig struct {
	BaseURL        string `json:"baseUrl"`
	StreamURL      string `json:"streamUrl,omitempty"`
	Token          string `json:"token,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type ChatConfig struct {
	// AdminIDs seeds the settings store's admin set on first open.
	AdminIDs FlexStringList `json:"adminIds"`
	// AdminMarker seeds the escalation token ("admin" by default).
	AdminMarker      string `json:"adminMarker"`
	ClassroomGroupID string `json:"classroomGroupId,omitempty"`
	// Timezone is the audience zone used when rendering due times from
	// classroom documents, which arrive in UTC.
	Timezone      string `json:"timezone"`
	MaxConcurrent int    `json:"maxConcurrent"`
}

// ResolverConfig configures the natural-language fallback resolver.
type ResolverConfig struct {
	Enabled         bool   `json:"enabled"`
	BaseURL         string `json:"baseUrl"`
	APIKey          string `json:"apiKey,omitempty"`
	Model           string `json:"model"`
	TimeoutSeconds  int    `json:"timeoutSeconds"`
	MaxHistoryPairs int    `json:"maxHistoryPairs"`
	PersonaDir      string `json:"personaDir,omitempty"`
	Persona         string `json:"persona,omitempty"`
}

type HistoryConfig struct {
	DBPath        string `json:"dbPath"`
	RetentionDays int    `json:"retentionDays"`
	// SweepSchedule is a cron expression for the retention sweep.
	SweepSchedule string `json:"sweepSchedule"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.wabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wabot"
	}
	return filepath.Join(home, ".wabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.History.DBPath = ExpandPath(cfg.History.DBPath)
	cfg.Resolver.PersonaDir = ExpandPath(cfg.Resolver.PersonaDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Intake.Port < 0 || cfg.Intake.Port > 65535 {
		errs = append(errs, "intake.port must be between 0 and 65535")
	}

	if cfg.Gateway.BaseURL == "" {
		errs = append(errs, "gateway.baseUrl is required")
	}
	if cfg.Gateway.TimeoutSeconds < 1 {
		errs = append(errs, "gateway.timeoutSeconds must be >= 1")
	}

	if cfg.Chat.MaxConcurrent < 1 || cfg.Chat.MaxConcurrent > 100 {
		errs = append(errs, "chat.maxConcurrent must be between 1 and 100")
	}
	if cfg.Chat.AdminMarker == "" {
		errs = append(errs, "chat.adminMarker must not be empty")
	}

	if cfg.Resolver.TimeoutSeconds < 1 {
		errs = append(errs, "resolver.timeoutSeconds must be >= 1")
	}
	if cfg.Resolver.MaxHistoryPairs < 1 || cfg.Resolver.MaxHistoryPairs > 50 {
		errs = append(errs, "resolver.maxHistoryPairs must be between 1 and 50")
	}
	if cfg.Resolver.Enabled && cfg.Resolver.BaseURL == "" {
		errs = append(errs, "resolver.baseUrl is required when the resolver is enabled")
	}

	if cfg.History.RetentionDays < 1 {
		errs = append(errs, "history.retentionDays must be >= 1")
	}
	if cfg.History.SweepSchedule == "" {
		errs = append(errs, "history.sweepSchedule must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
