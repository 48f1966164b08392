package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Provider  ProviderConfig
	Analysis  AnalysisConfig
	Sync      SyncConfig
	Languages LanguageConfig
	Mirror    MirrorConfig
	Debug     bool
}

// DatabaseConfig holds sqlite settings for the snapshot mirror.
type DatabaseConfig struct {
	Path string
}

// ProviderConfig selects and keys the analysis provider.
type ProviderConfig struct {
	Name      string // gemini | heuristic
	APIKeyEnv string `mapstructure:"api_key_env"`
	APIKey    string `mapstructure:"api_key"`
	Model     string
}

// AnalysisConfig tunes the request lifecycle.
type AnalysisConfig struct {
	DebounceMs   int      `mapstructure:"debounce_ms"`
	TimeoutSec   int      `mapstructure:"timeout_sec"`
	MaxAttempts  int      `mapstructure:"max_attempts"`
	RatePerMin   int      `mapstructure:"rate_per_min"`
	ContextTypes []string `mapstructure:"context_types"`
}

// SyncConfig tunes cross-surface reconciliation.
type SyncConfig struct {
	ResyncMinMs int `mapstructure:"resync_min_ms"`
	StalenessMs int `mapstructure:"staleness_ms"`
}

// LanguageConfig is the default language pair.
type LanguageConfig struct {
	Source string
	Target string
}

// MirrorConfig controls the optional snapshot mirror.
type MirrorConfig struct {
	Enabled bool
	TTLMin  int `mapstructure:"ttl_min"`
}

// DebounceWindow returns the Start debounce as a duration.
func (a AnalysisConfig) DebounceWindow() time.Duration {
	return time.Duration(a.DebounceMs) * time.Millisecond
}

// Timeout returns the provider round-trip timeout as a duration.
func (a AnalysisConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// ResyncMinInterval returns the resync throttle as a duration.
func (s SyncConfig) ResyncMinInterval() time.Duration {
	return time.Duration(s.ResyncMinMs) * time.Millisecond
}

// StalenessWindow returns the broadcast staleness guard as a duration.
func (s SyncConfig) StalenessWindow() time.Duration {
	return time.Duration(s.StalenessMs) * time.Millisecond
}

// TTL returns the mirror TTL as a duration.
func (m MirrorConfig) TTL() time.Duration {
	return time.Duration(m.TTLMin) * time.Minute
}

// Load reads configuration from file and env. Env var overrides use
// prefix SUBGLOSS_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "subgloss", "subgloss.db"))
	v.SetDefault("provider.name", "heuristic")
	v.SetDefault("provider.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.model", "gemini-2.0-flash")
	v.SetDefault("analysis.debounce_ms", 500)
	v.SetDefault("analysis.timeout_sec", 30)
	v.SetDefault("analysis.max_attempts", 3)
	v.SetDefault("analysis.rate_per_min", 60)
	v.SetDefault("analysis.context_types", []string{"cultural", "historical", "linguistic"})
	v.SetDefault("sync.resync_min_ms", 600)
	v.SetDefault("sync.staleness_ms", 50)
	v.SetDefault("languages.source", "es")
	v.SetDefault("languages.target", "en")
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.ttl_min", 60)
	v.SetDefault("debug", false)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SUBGLOSS_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "subgloss"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SUBGLOSS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// ResolveAPIKey prefers the environment variable, then the config value.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKeyEnv != "" {
		if key := os.Getenv(p.APIKeyEnv); key != "" {
			return key
		}
	}
	return p.APIKey
}
