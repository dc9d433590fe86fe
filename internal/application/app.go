// Package application wires the runtime together: configuration in,
// a ready-to-run agent loop plus its supporting services out.
package application

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/agent"
	"github.com/agentcore/agentcore/internal/domain/cache"
	ctxmgr "github.com/agentcore/agentcore/internal/domain/context"
	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/gateway"
	"github.com/agentcore/agentcore/internal/domain/memory"
	"github.com/agentcore/agentcore/internal/domain/orchestrator"
	"github.com/agentcore/agentcore/internal/domain/permission"
	"github.com/agentcore/agentcore/internal/domain/risk"
	"github.com/agentcore/agentcore/internal/domain/service"
	"github.com/agentcore/agentcore/internal/domain/tool"
	"github.com/agentcore/agentcore/internal/infrastructure/config"
	"github.com/agentcore/agentcore/internal/infrastructure/eventstream"
	"github.com/agentcore/agentcore/internal/infrastructure/mcp"
	"github.com/agentcore/agentcore/internal/infrastructure/persistence"
)

// App holds every wired component for one runtime process.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Router       *gateway.Router
	Registry     *tool.DynamicToolRegistry
	Permissions  *permission.Engine
	Risk         *risk.Analyzer
	Compactor    *ctxmgr.Compactor
	Orchestrator *orchestrator.Orchestrator
	Spawner      *agent.InMemorySpawner
	Loop         *service.AgentLoop
	Events       *eventstream.Server
	McpManager   *mcp.Manager
	TaskRepo     *persistence.GormTaskRepository
	Memory       *memory.Writer

	permStore    *persistence.PermissionStore
	stopWatchers []func() error
	model        string
}

// New wires the application from cfg. Components that need external
// resources (database, MCP servers) degrade gracefully: their absence
// logs a warning and disables the feature rather than failing startup,
// except for the provider registry, without which the runtime cannot
// do anything.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	// Providers.
	providerReg, err := config.LoadProviderRegistry(cfg.Paths.ProviderFile)
	if err != nil {
		return nil, fmt.Errorf("provider registry: %w", err)
	}
	app.Router = gateway.NewRouter(logger)
	if err := providerReg.BuildRouter(app.Router); err != nil {
		return nil, fmt.Errorf("provider registry: %w", err)
	}
	app.model = cfg.Agent.DefaultModel
	if app.model == "" {
		app.model = providerReg.DefaultModel()
	}

	// Permissions: global file merged with per-project overrides, plus
	// the persisted-grant store with hot reload.
	globalPerms, err := config.LoadPermissionFile(cfg.Paths.PermissionFile)
	if err != nil {
		return nil, fmt.Errorf("permission file: %w", err)
	}
	projectPerms, err := config.LoadPermissionFile(filepath.Join(cfg.Workspace, ".agentcore", "permissions.json"))
	if err != nil {
		return nil, fmt.Errorf("project permission file: %w", err)
	}
	app.Permissions = permission.NewEngine(config.BuildRuleSet(config.MergePermissionFiles(globalPerms, projectPerms)))

	app.permStore = persistence.NewPermissionStore(
		filepath.Join(cfg.Paths.ConfigRoot, "grants.json"), logger)
	if err := app.permStore.Load(app.Permissions); err != nil {
		logger.Warn("loading persisted grants failed", zap.Error(err))
	}
	app.Permissions.SetPersistHook(app.permStore.Persist)
	if stop, err := app.permStore.Watch(app.Permissions); err != nil {
		logger.Warn("grant file watch failed", zap.Error(err))
	} else {
		app.stopWatchers = append(app.stopWatchers, stop)
	}

	// Persistence.
	db, err := persistence.NewDBConnection(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		logger.Warn("database unavailable, task history disabled", zap.Error(err))
	} else {
		app.TaskRepo = persistence.NewGormTaskRepository(db)
	}

	// Orchestrator and executors.
	app.Orchestrator = orchestrator.New(cfg.Agent.MaxConcurrent, logger)
	app.Orchestrator.RegisterExecutor(orchestrator.NewLocalExecutor(cfg.Workspace, logger))
	app.Orchestrator.RegisterExecutor(orchestrator.NewPtyExecutor(cfg.Workspace, logger))
	app.Orchestrator.RegisterExecutor(orchestrator.NewContainerExecutor(logger))
	if app.TaskRepo != nil {
		app.Orchestrator.SetStore(app.TaskRepo)
	}

	// Tools.
	app.Risk = risk.NewAnalyzer()
	app.Compactor = ctxmgr.NewCompactor(4096, 200)
	app.Registry = tool.NewDynamicToolRegistry()
	app.Spawner = agent.NewInMemorySpawner(cfg.Agent.SpawnMaxDepth, logger)

	builtins := []tool.Tool{
		tool.NewBashTool(app.Permissions, app.Risk, cfg.Workspace, cfg.Agent.ToolTimeout),
		tool.NewReadFileTool(app.Compactor),
		tool.NewGlobTool(cfg.Workspace),
		tool.NewTaskTool(app.Orchestrator, "default"),
	}
	for _, t := range builtins {
		if err := app.Registry.Register(t); err != nil {
			return nil, fmt.Errorf("register builtin tool: %w", err)
		}
	}

	// MCP servers.
	mcpReg, err := config.LoadMcpRegistry(cfg.Paths.McpFile)
	if err != nil {
		logger.Warn("mcp registry unreadable, skipping", zap.Error(err))
	} else {
		app.McpManager = mcp.NewManager(app.Registry, cache.NewMcpCache(10*time.Minute, 16), logger)
		app.McpManager.ConnectAll(ctx, mcpReg)
	}

	// The loop itself.
	loopCfg := service.DefaultAgentLoopConfig()
	loopCfg.Model = app.model
	loopCfg.Temperature = cfg.Agent.Temperature
	loopCfg.MaxIterations = cfg.Agent.MaxIterations
	loopCfg.ToolTimeout = cfg.Agent.ToolTimeout
	loopCfg.ContextMaxTokens = cfg.Agent.ContextMaxTokens
	loopCfg.MaxTokenBudget = cfg.Agent.MaxTokenBudget

	client := &service.RouterClient{Router: app.Router}
	app.Loop = service.NewAgentLoop(client, app.Registry, loopCfg, logger)
	app.Loop.SetCompactor(app.Compactor)

	app.Memory = memory.NewWriter(filepath.Join(cfg.Paths.ConfigRoot, "memory"), logger)
	app.Loop.SetSummarizer(ctxmgr.NewSummarizer(func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Complete(ctx, gateway.CompleteRequest{
			Model:    app.model,
			Messages: []entity.Message{{Role: entity.RoleUser, Content: prompt}},
		})
		if err != nil {
			return "", err
		}
		// Condensed-away conversation state outlives the context window
		// in the daily log.
		app.Memory.Append(memory.KindSummary, "default", resp.Text)
		return resp.Text, nil
	}, 6))
	app.Loop.SetHooks(service.NewHookChain(&memoryHook{writer: app.Memory}))

	// Event stream.
	if cfg.Events.Enabled {
		app.Events = eventstream.NewServer(logger)
		if err := app.Events.Start(cfg.Events.Addr); err != nil {
			logger.Warn("event stream failed to start", zap.Error(err))
			app.Events = nil
		}
	}

	return app, nil
}

// memoryHook records each finished run's outcome in the write-behind
// session log.
type memoryHook struct {
	service.NoOpHook
	writer *memory.Writer
}

func (h *memoryHook) OnComplete(_ context.Context, result *service.RunResult) {
	h.writer.Append(memory.KindRunOutcome, "default", result.FinalContent)
}

// Model returns the resolved default model id.
func (a *App) Model() string { return a.model }

// Close releases watchers, MCP connections, and the event stream.
func (a *App) Close() {
	for _, stop := range a.stopWatchers {
		_ = stop()
	}
	if a.McpManager != nil {
		a.McpManager.Close()
	}
	if a.Events != nil {
		a.Events.Stop()
	}
}
