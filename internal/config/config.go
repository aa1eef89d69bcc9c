// Package config handles configuration loading for rationale.
// It supports YAML config files with environment variable overrides,
// plus a .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	Narrative  NarrativeConfig  `mapstructure:"narrative"  yaml:"narrative"`
	Datasource DatasourceConfig `mapstructure:"datasource" yaml:"datasource"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Scan       ScanConfig       `mapstructure:"scan"       yaml:"scan"`
	Profile    ProfileConfig    `mapstructure:"profile"    yaml:"profile"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider      string  `mapstructure:"provider"       yaml:"provider"` // "groq" or "deepseek"
	GroqKey       string  `mapstructure:"groq_key"       yaml:"groq_key"`
	GroqModel     string  `mapstructure:"groq_model"     yaml:"groq_model"`
	DeepSeekKey   string  `mapstructure:"deepseek_key"   yaml:"deepseek_key"`
	DeepSeekModel string  `mapstructure:"deepseek_model" yaml:"deepseek_model"`
	Temperature   float64 `mapstructure:"temperature"    yaml:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"     yaml:"max_tokens"`
}

// NarrativeConfig holds debate generation settings.
type NarrativeConfig struct {
	Mode string `mapstructure:"mode" yaml:"mode"` // "sequential", "combined", "lite"
}

// DatasourceConfig holds market data fetching settings.
type DatasourceConfig struct {
	Order     []string `mapstructure:"order"      yaml:"order"` // "yahoo", "financego", "scrape"
	CacheTTL  int      `mapstructure:"cache_ttl"  yaml:"cache_ttl"` // seconds
	NewsLimit int      `mapstructure:"news_limit" yaml:"news_limit"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// ScanConfig holds the periodic watchlist scan settings.
type ScanConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Cron    string `mapstructure:"cron"    yaml:"cron"`
}

// ProfileConfig holds watchlist persistence settings.
type ProfileConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// A .env file in the working directory is loaded first if present.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.rationale/config.yaml (home directory)
//  3. /etc/rationale/config.yaml (system)
//
// Environment variables override config file values.
// Format: RATIONALE_<SECTION>_<KEY>, e.g., RATIONALE_LLM_GROQ_KEY.
// The bare GROQ_API_KEY / DEEPSEEK_API_KEY variables are honored too.
func Load() (*Config, error) {
	// Ignore a missing .env; only explicit env matters then.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".rationale"))
	v.AddConfigPath("/etc/rationale")

	v.SetEnvPrefix("RATIONALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	resolveProvider(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("RATIONALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	resolveProvider(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.groq_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.deepseek_model", "deepseek-chat")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)

	// Narrative defaults
	v.SetDefault("narrative.mode", "sequential")

	// Datasource defaults
	v.SetDefault("datasource.order", []string{"yahoo", "financego", "scrape"})
	v.SetDefault("datasource.cache_ttl", 900) // 15 minutes
	v.SetDefault("datasource.news_limit", 5)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Scan defaults
	v.SetDefault("scan.enabled", false)
	v.SetDefault("scan.cron", "@every 6h")

	// Profile defaults
	v.SetDefault("profile.db_path", filepath.Join(homeDir(), ".rationale", "profiles.db"))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment
// variables. The unprefixed names match the .env conventions most
// provider dashboards document.
func overrideFromEnv(cfg *Config) {
	for _, name := range []string{"RATIONALE_LLM_GROQ_KEY", "GROQ_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.LLM.GroqKey = key
			break
		}
	}
	for _, name := range []string{"RATIONALE_LLM_DEEPSEEK_KEY", "DEEPSEEK_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.LLM.DeepSeekKey = key
			break
		}
	}
	if m := os.Getenv("GROQ_MODEL"); m != "" {
		cfg.LLM.GroqModel = m
	}
	if m := os.Getenv("DEEPSEEK_MODEL"); m != "" {
		cfg.LLM.DeepSeekModel = m
	}
	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		cfg.LLM.Provider = p
	}
}

// resolveProvider normalizes the provider name and falls back to
// whichever provider has a key configured, preferring Groq.
func resolveProvider(cfg *Config) {
	p := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if p != "groq" && p != "deepseek" {
		if cfg.LLM.GroqKey != "" {
			p = "groq"
		} else {
			p = "deepseek"
		}
	}
	cfg.LLM.Provider = p
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
