package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, e := range []string{
		"RATIONALE_LLM_GROQ_KEY", "RATIONALE_LLM_DEEPSEEK_KEY",
		"GROQ_API_KEY", "DEEPSEEK_API_KEY",
		"GROQ_MODEL", "DEEPSEEK_MODEL", "LLM_PROVIDER",
	} {
		os.Unsetenv(e)
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// LLM defaults: no keys anywhere means deepseek is the fallback
	if cfg.LLM.Provider != "deepseek" {
		t.Errorf("LLM.Provider: got %q, want %q", cfg.LLM.Provider, "deepseek")
	}
	if cfg.LLM.GroqModel != "llama-3.3-70b-versatile" {
		t.Errorf("LLM.GroqModel: got %q", cfg.LLM.GroqModel)
	}
	if cfg.LLM.DeepSeekModel != "deepseek-chat" {
		t.Errorf("LLM.DeepSeekModel: got %q", cfg.LLM.DeepSeekModel)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("LLM.Temperature: got %f, want 0.2", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 2048 {
		t.Errorf("LLM.MaxTokens: got %d, want 2048", cfg.LLM.MaxTokens)
	}

	// Narrative defaults
	if cfg.Narrative.Mode != "sequential" {
		t.Errorf("Narrative.Mode: got %q, want %q", cfg.Narrative.Mode, "sequential")
	}

	// Datasource defaults
	wantOrder := []string{"yahoo", "financego", "scrape"}
	if len(cfg.Datasource.Order) != len(wantOrder) {
		t.Fatalf("Datasource.Order: got %v, want %v", cfg.Datasource.Order, wantOrder)
	}
	for i, name := range wantOrder {
		if cfg.Datasource.Order[i] != name {
			t.Errorf("Datasource.Order[%d]: got %q, want %q", i, cfg.Datasource.Order[i], name)
		}
	}
	if cfg.Datasource.CacheTTL != 900 {
		t.Errorf("Datasource.CacheTTL: got %d, want 900", cfg.Datasource.CacheTTL)
	}
	if cfg.Datasource.NewsLimit != 5 {
		t.Errorf("Datasource.NewsLimit: got %d, want 5", cfg.Datasource.NewsLimit)
	}

	// API defaults
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host: got %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}

	// Scan defaults
	if cfg.Scan.Enabled {
		t.Error("Scan.Enabled should be false by default")
	}
	if cfg.Scan.Cron != "@every 6h" {
		t.Errorf("Scan.Cron: got %q, want %q", cfg.Scan.Cron, "@every 6h")
	}

	// Profile defaults
	if cfg.Profile.DBPath == "" {
		t.Error("Profile.DBPath should not be empty")
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
llm:
  provider: "deepseek"
  deepseek_key: "sk-test-deepseek-key-12345"
  temperature: 0.5
  max_tokens: 4096
narrative:
  mode: "combined"
api:
  port: 9090
scan:
  enabled: true
  cron: "@every 1h"
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.LLM.Provider != "deepseek" {
		t.Errorf("LLM.Provider: got %q, want %q", cfg.LLM.Provider, "deepseek")
	}
	if cfg.LLM.DeepSeekKey != "sk-test-deepseek-key-12345" {
		t.Errorf("LLM.DeepSeekKey: got %q", cfg.LLM.DeepSeekKey)
	}
	if cfg.LLM.Temperature != 0.5 {
		t.Errorf("LLM.Temperature: got %f, want 0.5", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("LLM.MaxTokens: got %d, want 4096", cfg.LLM.MaxTokens)
	}
	if cfg.Narrative.Mode != "combined" {
		t.Errorf("Narrative.Mode: got %q, want %q", cfg.Narrative.Mode, "combined")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if !cfg.Scan.Enabled {
		t.Error("Scan.Enabled should be true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("GROQ_API_KEY", "gsk-test-groq-key-123456")
	os.Setenv("DEEPSEEK_API_KEY", "sk-test-deepseek-78901")
	os.Setenv("GROQ_MODEL", "llama-3.1-8b-instant")
	defer clearEnv(t)

	cfg := &Config{}
	overrideFromEnv(cfg)

	if cfg.LLM.GroqKey != "gsk-test-groq-key-123456" {
		t.Errorf("GroqKey: got %q", cfg.LLM.GroqKey)
	}
	if cfg.LLM.DeepSeekKey != "sk-test-deepseek-78901" {
		t.Errorf("DeepSeekKey: got %q", cfg.LLM.DeepSeekKey)
	}
	if cfg.LLM.GroqModel != "llama-3.1-8b-instant" {
		t.Errorf("GroqModel: got %q", cfg.LLM.GroqModel)
	}
}

func TestOverrideFromEnvPrefixedWins(t *testing.T) {
	clearEnv(t)
	os.Setenv("RATIONALE_LLM_GROQ_KEY", "gsk-prefixed-key-value")
	os.Setenv("GROQ_API_KEY", "gsk-bare-key-value")
	defer clearEnv(t)

	cfg := &Config{}
	overrideFromEnv(cfg)

	if cfg.LLM.GroqKey != "gsk-prefixed-key-value" {
		t.Errorf("GroqKey: got %q, want prefixed value", cfg.LLM.GroqKey)
	}
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	clearEnv(t)

	cfg := &Config{LLM: LLMConfig{GroqKey: "from-config"}}
	overrideFromEnv(cfg)

	if cfg.LLM.GroqKey != "from-config" {
		t.Errorf("GroqKey should stay as 'from-config' when env is unset, got %q", cfg.LLM.GroqKey)
	}
}

// ── resolveProvider ──

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		groqKey  string
		want     string
	}{
		{"explicit groq", "groq", "", "groq"},
		{"explicit deepseek", "deepseek", "gsk-key", "deepseek"},
		{"whitespace and case", "  GROQ ", "", "groq"},
		{"unknown with groq key", "openai", "gsk-key", "groq"},
		{"unknown without groq key", "openai", "", "deepseek"},
		{"empty with groq key", "", "gsk-key", "groq"},
		{"empty without keys", "", "", "deepseek"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{LLM: LLMConfig{Provider: tc.provider, GroqKey: tc.groqKey}}
			resolveProvider(cfg)
			if cfg.LLM.Provider != tc.want {
				t.Errorf("got %q, want %q", cfg.LLM.Provider, tc.want)
			}
		})
	}
}

// ── maskKey ──

func TestMaskKeyShort(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"a", "***"},
		{"abcd", "***"},
		{"12345678", "***"},
	}
	for _, tc := range tests {
		if got := maskKey(tc.input); got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMaskKeyLong(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"123456789", "123...789"},
		{"gsk-abcdef1234567890xyz", "gsk...xyz"},
		{"ABCDEFGHIJKLMNOP", "ABC...NOP"},
	}
	for _, tc := range tests {
		if got := maskKey(tc.input); got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ── CheckAPIKeys / checkKey ──

func TestCheckAPIKeysAllEmpty(t *testing.T) {
	clearEnv(t)

	cfg := &Config{}
	statuses := CheckAPIKeys(cfg)

	if len(statuses) != 2 {
		t.Fatalf("CheckAPIKeys: got %d statuses, want 2", len(statuses))
	}
	for _, s := range statuses {
		if s.IsSet {
			t.Errorf("Key %q should not be set", s.Name)
		}
		if s.Source != KeySourceNone {
			t.Errorf("Key %q source: got %q, want %q", s.Name, s.Source, KeySourceNone)
		}
	}
}

func TestCheckAPIKeysFromConfig(t *testing.T) {
	clearEnv(t)

	cfg := &Config{LLM: LLMConfig{GroqKey: "gsk-test-very-long-key-value"}}
	statuses := CheckAPIKeys(cfg)

	found := false
	for _, s := range statuses {
		if s.Name == "Groq API Key" {
			found = true
			if !s.IsSet {
				t.Error("Groq key should be set")
			}
			if s.Source != KeySourceConfig {
				t.Errorf("Source: got %q, want %q", s.Source, KeySourceConfig)
			}
			if s.Masked != "gsk...lue" {
				t.Errorf("Masked: got %q, want %q", s.Masked, "gsk...lue")
			}
		}
	}
	if !found {
		t.Error("Groq API Key status not found")
	}
}

func TestCheckAPIKeysFromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("GROQ_API_KEY", "gsk-env-key-for-testing")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg := &Config{LLM: LLMConfig{GroqKey: "gsk-env-key-for-testing"}}
	for _, s := range CheckAPIKeys(cfg) {
		if s.Name == "Groq API Key" && s.Source != KeySourceEnv {
			t.Errorf("Source: got %q, want %q", s.Source, KeySourceEnv)
		}
	}
}

// ── homeDir ──

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	if homeDir() == "" {
		t.Error("homeDir() should not return empty string")
	}
}
