// agentd is the long-running daemon: it wires the full runtime, serves
// the websocket event stream, and keeps MCP connections and the task
// orchestrator alive until a termination signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/application"
	"github.com/agentcore/agentcore/internal/infrastructure/config"
	"github.com/agentcore/agentcore/internal/infrastructure/logger"
)

const (
	appName    = "agentd"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("%s v%s\n", appName, appVersion)
		return
	}

	configDir := defaultConfigDir()
	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("name", appName),
		zap.String("version", appVersion),
		zap.String("config_dir", configDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The daemon always serves events; that is its reason to exist.
	cfg.Events.Enabled = true

	app, err := application.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	log.Info("ready",
		zap.String("model", app.Model()),
		zap.String("events_addr", cfg.Events.Addr),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", zap.String("signal", sig.String()))
	cancel()
}

func defaultConfigDir() string {
	if dir := os.Getenv("AGENTCORE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentcore"
	}
	return filepath.Join(home, ".agentcore")
}
