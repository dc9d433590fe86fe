package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// McpRegistry is the MCP server registry file shape:
// {"mcpServers": {name: {...}}}. Env values expand ${VAR} and
// ${VAR:-default} from the process environment at load time.
type McpRegistry struct {
	McpServers map[string]McpServerConfig `json:"mcpServers"`
}

// McpServerConfig describes one server. Type selects the transport:
// "stdio" spawns Command with Args in Cwd; "sse" connects to URL.
type McpServerConfig struct {
	Type        string            `json:"type"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	URL         string            `json:"url,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	TimeoutSecs int               `json:"timeoutSecs,omitempty"`
	Enabled     bool              `json:"enabled"`
}

// LoadMcpRegistry reads and env-expands the registry. A missing file
// yields an empty registry.
func LoadMcpRegistry(path string) (*McpRegistry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &McpRegistry{McpServers: map[string]McpServerConfig{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mcp registry %s: %w", path, err)
	}

	var reg McpRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse mcp registry %s: %w", path, err)
	}
	if reg.McpServers == nil {
		reg.McpServers = map[string]McpServerConfig{}
	}

	for name, server := range reg.McpServers {
		server.Command = ExpandEnv(server.Command)
		server.URL = ExpandEnv(server.URL)
		server.Cwd = ExpandEnv(server.Cwd)
		for i, a := range server.Args {
			server.Args[i] = ExpandEnv(a)
		}
		server.Env = ExpandEnvMap(server.Env)
		reg.McpServers[name] = server
	}
	return &reg, nil
}
