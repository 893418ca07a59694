// Package config loads application configuration from a YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application. Values are read by
// viper from a config file or CALLFLOW_-prefixed environment variables.
type Config struct {
	Engine    EngineConfig     `mapstructure:"engine"`
	Store     StoreConfig      `mapstructure:"store"`
	Sandbox   SandboxConfig    `mapstructure:"sandbox"`
	Providers []ProviderConfig `mapstructure:"providers"`
	Prompt    PromptConfig     `mapstructure:"prompt"`
	MaxTurns  int              `mapstructure:"max_turns"`
}

// EngineConfig stores the inference endpoint details.
type EngineConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	// CrashMarker identifies recoverable engine failures by substring.
	CrashMarker string `mapstructure:"crash_marker"`
}

// StoreConfig stores database settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SandboxConfig stores code-evaluation limits.
type SandboxConfig struct {
	Safe      bool `mapstructure:"safe"`
	TimeoutMS int  `mapstructure:"timeout_ms"`
}

// ProviderConfig stores one MCP server entry.
type ProviderConfig struct {
	Name      string            `mapstructure:"name"`
	URL       string            `mapstructure:"url"`
	Transport string            `mapstructure:"transport"`
	Command   string            `mapstructure:"command"`
	Args      []string          `mapstructure:"args"`
	Enabled   bool              `mapstructure:"enabled"`
	Headers   map[string]string `mapstructure:"headers"`
}

// PromptConfig stores the system prompt template override.
type PromptConfig struct {
	System string `mapstructure:"system"`
}

// Load reads configuration from path, or from ./callflow.yaml when path is
// empty. Missing files are fine: defaults plus environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("callflow")
		v.SetConfigType("yaml")
	}

	v.SetDefault("engine.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("engine.model", "openai/gpt-4o-mini")
	v.SetDefault("engine.crash_marker", "")
	v.SetDefault("store.path", "callflow.db")
	v.SetDefault("sandbox.safe", true)
	v.SetDefault("sandbox.timeout_ms", 1000)
	v.SetDefault("max_turns", 10)

	v.SetEnvPrefix("CALLFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
