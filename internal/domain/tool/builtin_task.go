package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/orchestrator"
)

// TaskTool is the single meta-tool fronting the orchestrator: one
// action-tagged input covers start, input, output, stop, kill, and
// list, and every reply is a JSON payload the model can parse back.
type TaskTool struct {
	orch      *orchestrator.Orchestrator
	sessionID string
	// defaultTimeout applies to started tasks that do not ask for one.
	defaultTimeout time.Duration
}

func NewTaskTool(orch *orchestrator.Orchestrator, sessionID string) *TaskTool {
	return &TaskTool{orch: orch, sessionID: sessionID, defaultTimeout: 10 * time.Minute}
}

type taskArgs struct {
	Action    string            `json:"action"`
	Command   string            `json:"command,omitempty"`
	Cwd       string            `json:"cwd,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Mode      string            `json:"mode,omitempty"`  // local, pty, container
	Image     string            `json:"image,omitempty"` // container mode
	TimeoutMs int               `json:"timeout_ms,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	Input     string            `json:"input,omitempty"`
	Lines     int               `json:"lines,omitempty"`
}

func (t *TaskTool) Def() Def {
	return Def{
		Name: "task",
		Description: "Manage long-running background tasks: start a command (optionally in a PTY " +
			"or container), send input, read recent output, stop, kill, or list tasks.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": []any{"start", "input", "output", "stop", "kill", "list"},
				},
				"command":    map[string]any{"type": "string"},
				"cwd":        map[string]any{"type": "string"},
				"env":        map[string]any{"type": "object"},
				"mode":       map[string]any{"type": "string", "enum": []any{"local", "pty", "container"}},
				"image":      map[string]any{"type": "string"},
				"timeout_ms": map[string]any{"type": "integer"},
				"task_id":    map[string]any{"type": "string"},
				"input":      map[string]any{"type": "string"},
				"lines":      map[string]any{"type": "integer"},
			},
			"required":             []any{"action"},
			"additionalProperties": false,
		},
	}
}

func (t *TaskTool) Execute(ctx context.Context, rawArgs json.RawMessage) (Result, error) {
	var args taskArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, fmt.Errorf("task: invalid arguments: %w", err)
	}

	switch args.Action {
	case "start":
		return t.start(ctx, args)
	case "input":
		if err := t.orch.SendInput(args.TaskID, args.Input); err != nil {
			return errorReply(err)
		}
		return jsonReply(map[string]any{"task_id": args.TaskID, "sent": true})
	case "output":
		lines, err := t.orch.ReadRecentOutput(args.TaskID, args.Lines)
		if err != nil {
			return errorReply(err)
		}
		return jsonReply(map[string]any{"task_id": args.TaskID, "output": strings.Join(lines, "\n")})
	case "stop", "kill":
		// stop asks the executor's cancel hook; kill is the same hook
		// today since every executor's cancellation is already SIGKILL
		// strength.
		if err := t.orch.Cancel(args.TaskID); err != nil {
			return errorReply(err)
		}
		return jsonReply(map[string]any{"task_id": args.TaskID, "cancelled": true})
	case "list":
		tasks := t.orch.List()
		summaries := make([]map[string]any, 0, len(tasks))
		for _, task := range tasks {
			summaries = append(summaries, map[string]any{
				"task_id": task.ID,
				"command": task.Command,
				"mode":    string(task.Mode),
				"state":   string(task.State),
			})
		}
		return jsonReply(map[string]any{"tasks": summaries})
	default:
		return Result{Output: fmt.Sprintf("unknown action %q", args.Action), IsError: true}, nil
	}
}

func (t *TaskTool) start(ctx context.Context, args taskArgs) (Result, error) {
	if strings.TrimSpace(args.Command) == "" {
		return Result{Output: "start requires a command", IsError: true}, nil
	}

	mode := entity.ModeLocal
	var container *entity.ContainerSpec
	switch args.Mode {
	case "", "local":
	case "pty":
		mode = entity.ModePty
	case "container":
		mode = entity.ModeContainer
		container = &entity.ContainerSpec{Image: args.Image, Workdir: args.Cwd, Env: args.Env}
	default:
		return Result{Output: fmt.Sprintf("unknown mode %q", args.Mode), IsError: true}, nil
	}

	timeout := t.defaultTimeout
	if args.TimeoutMs > 0 {
		timeout = time.Duration(args.TimeoutMs) * time.Millisecond
	}

	id, err := t.orch.Submit(ctx, orchestrator.SubmitSpec{
		SessionID: t.sessionID,
		ToolName:  "task",
		Command:   args.Command,
		Mode:      mode,
		Container: container,
		Timeout:   timeout,
	})
	if err != nil {
		return errorReply(err)
	}
	return jsonReply(map[string]any{"task_id": id, "state": "pending"})
}

func jsonReply(payload map[string]any) (Result, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: string(b)}, nil
}

func errorReply(err error) (Result, error) {
	b, _ := json.Marshal(map[string]any{"error": err.Error()})
	return Result{Output: string(b), IsError: true}, nil
}
