// agentctl is the one-shot CLI: run a single agent request, inspect
// tasks and providers, and manage permission grants.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentcore/agentcore/internal/application"
	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/permission"
	"github.com/agentcore/agentcore/internal/infrastructure/config"
	"github.com/agentcore/agentcore/internal/infrastructure/logger"
)

const cliVersion = "0.1.0"

func main() {
	var modelFlag string
	var workspaceFlag string

	rootCmd := &cobra.Command{
		Use:   "agentctl [message]",
		Short: "agentcore CLI — run an agent request from the terminal",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return withApp(modelFlag, workspaceFlag, func(ctx context.Context, app *application.App) error {
				return runOnce(ctx, app, joinArgs(args))
			})
		},
	}
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "model id override")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "working directory")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentctl v%s\n", cliVersion)
		},
	})

	taskCmd := &cobra.Command{Use: "task", Short: "inspect tasks"}
	taskCmd.AddCommand(&cobra.Command{
		Use:   "list [session]",
		Short: "list recent tasks for a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := "default"
			if len(args) > 0 {
				session = args[0]
			}
			return withApp(modelFlag, workspaceFlag, func(ctx context.Context, app *application.App) error {
				if app.TaskRepo == nil {
					return fmt.Errorf("task history requires a database")
				}
				tasks, err := app.TaskRepo.FindBySession(session, 50)
				if err != nil {
					return err
				}
				for _, t := range tasks {
					fmt.Printf("%s  %-10s %-9s %s\n", t.ID[:8], t.Mode, t.State, t.Command)
				}
				return nil
			})
		},
	})
	rootCmd.AddCommand(taskCmd)

	providerCmd := &cobra.Command{Use: "provider", Short: "inspect providers"}
	providerCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list configured providers and their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(modelFlag, workspaceFlag, func(ctx context.Context, app *application.App) error {
				for _, p := range app.Router.ListProviders(ctx) {
					fmt.Printf("%-12s available=%-5v circuit=%-9s calls=%d failures=%d\n",
						p.Name, p.Available, p.CircuitState, p.TotalCalls, p.FailureCount)
				}
				return nil
			})
		},
	})
	rootCmd.AddCommand(providerCmd)

	permissionCmd := &cobra.Command{Use: "permission", Short: "manage permission grants"}
	permissionCmd.AddCommand(&cobra.Command{
		Use:   "grant <tool> [arg-pattern]",
		Short: "permanently grant a tool (optionally scoped to an argument pattern)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 1 {
				arg = args[1]
			}
			return withApp(modelFlag, workspaceFlag, func(ctx context.Context, app *application.App) error {
				if err := app.Permissions.Grant(args[0], arg, permission.ScopePermanent); err != nil {
					return err
				}
				fmt.Printf("granted %s %s\n", args[0], arg)
				return nil
			})
		},
	})
	rootCmd.AddCommand(permissionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

// withApp loads config, builds the app, runs fn, and tears down.
func withApp(model, workspace string, fn func(context.Context, *application.App) error) error {
	configDir := defaultConfigDir()
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if workspace != "" {
		cfg.Workspace = workspace
	}
	if model != "" {
		cfg.Agent.DefaultModel = model
	}

	log, err := logger.New(logger.Config{Level: "warn", Format: "console"})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	app, err := application.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

// runOnce drives a single agent request, printing streamed text as it
// arrives.
func runOnce(ctx context.Context, app *application.App, message string) error {
	history := entity.NewMessageHistory(nil)
	history.SetSystemPrompt("You are a coding assistant working in " + app.Config.Workspace + ".")

	result, events := app.Loop.Run(ctx, history, message)
	for ev := range events {
		switch ev.Type {
		case entity.EventText:
			fmt.Print(ev.Text)
		case entity.EventToolStart:
			if ev.ToolCall != nil {
				fmt.Fprintf(os.Stderr, "\n[tool] %s\n", ev.ToolCall.Name)
			}
		case entity.EventError:
			if ev.Err != nil {
				fmt.Fprintf(os.Stderr, "\nerror: %v\n", ev.Err)
			}
		}
	}
	fmt.Println()

	if result.FinalContent == "" {
		return fmt.Errorf("run produced no output")
	}
	return nil
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
