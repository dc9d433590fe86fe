// Package mcp connects to Model Context Protocol servers and bridges
// their tools into the runtime's dynamic tool registry. Discovered
// tool lists are cached per server so reconnects within the TTL skip
// the list round-trip.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/cache"
	"github.com/agentcore/agentcore/internal/domain/tool"
	"github.com/agentcore/agentcore/internal/infrastructure/config"
)

type serverState struct {
	name      string
	client    *client.Client
	toolNames []string
	timeout   time.Duration
}

// Manager owns the MCP server connections for one process: connect,
// discover, register bridge tools, and tear down.
type Manager struct {
	mu       sync.Mutex
	servers  map[string]*serverState
	registry *tool.DynamicToolRegistry
	cache    *cache.McpCache
	logger   *zap.Logger
}

func NewManager(registry *tool.DynamicToolRegistry, toolCache *cache.McpCache, logger *zap.Logger) *Manager {
	return &Manager{
		servers:  make(map[string]*serverState),
		registry: registry,
		cache:    toolCache,
		logger:   logger.With(zap.String("component", "mcp")),
	}
}

// ConnectAll connects every enabled server in the registry file. A
// server that fails to connect is logged and skipped; the rest of the
// runtime keeps working without it.
func (m *Manager) ConnectAll(ctx context.Context, reg *config.McpRegistry) {
	for name, server := range reg.McpServers {
		if !server.Enabled {
			continue
		}
		if err := m.Connect(ctx, name, server); err != nil {
			m.logger.Warn("mcp server connection failed",
				zap.String("server", name),
				zap.Error(err),
			)
		}
	}
}

// Connect establishes one server connection, discovers its tools
// (cache first), and registers a bridge tool for each.
func (m *Manager) Connect(ctx context.Context, name string, cfg config.McpServerConfig) error {
	c, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("start transport: %w", err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "agentcore", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	defs, err := m.discoverTools(ctx, name, c)
	if err != nil {
		_ = c.Close()
		return err
	}

	ss := &serverState{name: name, client: c, timeout: timeout}
	for _, def := range defs {
		bridged := &bridgeTool{server: name, def: def, client: c, timeout: timeout}
		if err := m.registry.Register(bridged); err != nil {
			m.logger.Warn("mcp tool registration failed",
				zap.String("server", name),
				zap.String("tool", def.Name),
				zap.Error(err),
			)
			continue
		}
		ss.toolNames = append(ss.toolNames, bridged.Def().Name)
	}

	m.mu.Lock()
	m.servers[name] = ss
	m.mu.Unlock()

	m.logger.Info("mcp server connected",
		zap.String("server", name),
		zap.Int("tools", len(ss.toolNames)),
	)
	return nil
}

// discoverTools returns the server's tool definitions, consulting the
// MCP cache before asking the server.
func (m *Manager) discoverTools(ctx context.Context, name string, c *client.Client) ([]cache.McpToolDef, error) {
	if cached, ok := m.cache.Get(name); ok {
		return cached, nil
	}

	listResp, err := c.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	defs := make([]cache.McpToolDef, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = nil
		}
		defs = append(defs, cache.McpToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	m.cache.Put(name, defs)
	return defs, nil
}

// Disconnect closes one server and unregisters its tools.
func (m *Manager) Disconnect(name string) {
	m.mu.Lock()
	ss, ok := m.servers[name]
	if ok {
		delete(m.servers, name)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	for _, toolName := range ss.toolNames {
		m.registry.Unregister(toolName)
	}
	_ = ss.client.Close()
	m.logger.Info("mcp server disconnected", zap.String("server", name))
}

// Close tears down every connection.
func (m *Manager) Close() {
	m.mu.Lock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	m.mu.Unlock()
	for _, name := range names {
		m.Disconnect(name)
	}
}

func newClient(cfg config.McpServerConfig) (*client.Client, error) {
	switch cfg.Type {
	case "stdio", "":
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		return client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case "sse":
		return client.NewSSEMCPClient(cfg.URL)
	default:
		return nil, fmt.Errorf("unknown mcp transport %q", cfg.Type)
	}
}

// bridgeTool adapts one remote MCP tool to the registry's Tool
// contract. Registered names are prefixed with the server name so two
// servers exposing the same tool cannot collide.
type bridgeTool struct {
	server  string
	def     cache.McpToolDef
	client  *client.Client
	timeout time.Duration
}

func (b *bridgeTool) Def() tool.Def {
	var schema map[string]any
	if len(b.def.InputSchema) > 0 {
		_ = json.Unmarshal(b.def.InputSchema, &schema)
	}
	return tool.Def{
		Name:        b.server + "__" + b.def.Name,
		Description: fmt.Sprintf("[%s] %s", b.server, b.def.Description),
		Schema:      schema,
	}
}

func (b *bridgeTool) Execute(ctx context.Context, rawArgs json.RawMessage) (tool.Result, error) {
	var args map[string]any
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return tool.Result{}, fmt.Errorf("mcp %s: invalid arguments: %w", b.def.Name, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = b.def.Name
	req.Params.Arguments = args

	resp, err := b.client.CallTool(callCtx, req)
	if err != nil {
		return tool.Result{Output: err.Error(), IsError: true}, nil
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcpgo.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return tool.Result{Output: strings.Join(texts, "\n"), IsError: resp.IsError}, nil
}
