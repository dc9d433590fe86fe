package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GROQ_API_KEY"} {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestProviderRegistry_EnvAutoRegistration(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	reg, err := LoadProviderRegistry(filepath.Join(t.TempDir(), "providers.json"))
	if err != nil {
		t.Fatal(err)
	}

	p, ok := reg.Providers["anthropic"]
	if !ok {
		t.Fatal("ANTHROPIC_API_KEY should auto-register the anthropic provider")
	}
	if p.APIKey != "sk-test" || !p.Enabled {
		t.Fatalf("unexpected auto-registered entry: %+v", p)
	}
	if reg.Default != "anthropic" {
		t.Fatalf("sole provider becomes the default, got %q", reg.Default)
	}
}

func TestProviderRegistry_ConfiguredWinsOverEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "providers.json")
	raw := `{
		"default": "openai",
		"providers": {
			"openai": {"type": "http", "apiKey": "file-key", "baseUrl": "https://proxy.internal/v1", "model": "gpt-4o", "enabled": true}
		}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadProviderRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Providers["openai"].APIKey != "file-key" {
		t.Fatal("configured provider must not be overwritten by the env auto-registration")
	}
	if reg.DefaultModel() != "gpt-4o" {
		t.Fatalf("expected default model gpt-4o, got %q", reg.DefaultModel())
	}
}

func TestProviderRegistry_ApiKeyEnvExpansion(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("MY_PROXY_KEY", "expanded")

	path := filepath.Join(t.TempDir(), "providers.json")
	raw := `{"providers": {"proxy": {"type": "http", "apiKey": "${MY_PROXY_KEY}", "enabled": true}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadProviderRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Providers["proxy"].APIKey != "expanded" {
		t.Fatalf("apiKey should env-expand, got %q", reg.Providers["proxy"].APIKey)
	}
}

func TestMcpRegistry_EnvExpansion(t *testing.T) {
	t.Setenv("MCP_TOKEN", "tok")

	path := filepath.Join(t.TempDir(), "mcp.json")
	raw := `{
		"mcpServers": {
			"files": {
				"type": "stdio",
				"command": "mcp-files",
				"args": ["--root", "${AGENTCORE_TEST_ROOT:-/srv}"],
				"env": {"TOKEN": "${MCP_TOKEN}"},
				"timeoutSecs": 30,
				"enabled": true
			}
		}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadMcpRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	server := reg.McpServers["files"]
	if server.Env["TOKEN"] != "tok" {
		t.Fatalf("env map should expand, got %+v", server.Env)
	}
	if server.Args[1] != "/srv" {
		t.Fatalf("args should expand with default, got %v", server.Args)
	}
}

func TestMcpRegistry_MissingFile(t *testing.T) {
	reg, err := LoadMcpRegistry(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.McpServers) != 0 {
		t.Fatal("missing registry loads empty")
	}
}
