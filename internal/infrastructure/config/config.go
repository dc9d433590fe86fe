// Package config loads the runtime's layered configuration: a viper
// base config (file + env overrides), plus the JSON registry files for
// permissions, MCP servers, and providers.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration tree.
type Config struct {
	Workspace string         `mapstructure:"workspace"`
	Log       LogConfig      `mapstructure:"log"`
	Database  DatabaseConfig `mapstructure:"database"`
	Agent     AgentConfig    `mapstructure:"agent"`
	Events    EventsConfig   `mapstructure:"events"`
	Paths     PathsConfig    `mapstructure:"paths"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// AgentConfig carries the loop and orchestrator knobs.
type AgentConfig struct {
	DefaultModel     string        `mapstructure:"default_model"`
	MaxIterations    int           `mapstructure:"max_iterations"`
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokenBudget   int64         `mapstructure:"max_token_budget"`
	ContextMaxTokens int           `mapstructure:"context_max_tokens"`
	ToolTimeout      time.Duration `mapstructure:"tool_timeout"`
	MaxConcurrent    int           `mapstructure:"max_concurrent_tasks"`
	SpawnMaxDepth    int           `mapstructure:"spawn_max_depth"`
}

// EventsConfig controls the websocket event stream surface.
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// PathsConfig points at the JSON registry files. Each has a global
// location under the config root. Only the permission file also has a
// per-project file (<workspace>/.agentcore/permissions.json), merged
// with the global one by MergePermissionFiles.
type PathsConfig struct {
	ConfigRoot     string `mapstructure:"config_root"` // default ~/.agentcore
	PermissionFile string `mapstructure:"permission_file"`
	McpFile        string `mapstructure:"mcp_file"`
	ProviderFile   string `mapstructure:"provider_file"`
}

// Load reads config.yaml from configDir (falling back to defaults when
// the file is absent), applies AGENTCORE_-prefixed env overrides, and
// resolves the registry file paths.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetEnvPrefix("AGENTCORE")
	v.AutomaticEnv()

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	root := cfg.Paths.ConfigRoot
	if cfg.Paths.PermissionFile == "" {
		cfg.Paths.PermissionFile = filepath.Join(root, "permissions.json")
	}
	if cfg.Paths.McpFile == "" {
		cfg.Paths.McpFile = filepath.Join(root, "mcp.json")
	}
	if cfg.Paths.ProviderFile == "" {
		cfg.Paths.ProviderFile = filepath.Join(root, "providers.json")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("workspace", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", filepath.Join(configDir, "agentcore.db"))
	v.SetDefault("agent.max_iterations", 25)
	v.SetDefault("agent.temperature", 0.7)
	v.SetDefault("agent.context_max_tokens", 128000)
	v.SetDefault("agent.tool_timeout", 2*time.Minute)
	v.SetDefault("agent.max_concurrent_tasks", 4)
	v.SetDefault("agent.spawn_max_depth", 3)
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.addr", "127.0.0.1:8799")
	v.SetDefault("paths.config_root", configDir)
}
