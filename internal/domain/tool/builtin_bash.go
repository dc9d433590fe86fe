package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/agentcore/agentcore/internal/domain/permission"
	"github.com/agentcore/agentcore/internal/domain/risk"
	"github.com/agentcore/agentcore/internal/domain/shell"
)

const (
	maxBashOutput      = 30_000
	defaultBashTimeout = 120 * time.Second
	maxBashTimeout     = 600 * time.Second
)

// BashTool runs a shell command with a deadline, truncates combined
// output, and kills the whole process group on timeout. Killing only
// the shell would leave grandchildren (a backgrounded child of the
// shell) running after the parent is gone, hence the Setpgid +
// negative-pid kill.
type BashTool struct {
	permissions *permission.Engine
	risk        *risk.Analyzer
	env         shell.Environment
	workdir     string
	timeout     time.Duration
}

func NewBashTool(permissions *permission.Engine, analyzer *risk.Analyzer, workdir string, timeout time.Duration) *BashTool {
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	if timeout > maxBashTimeout {
		timeout = maxBashTimeout
	}
	return &BashTool{
		permissions: permissions,
		risk:        analyzer,
		env:         shell.Detect(),
		workdir:     workdir,
		timeout:     timeout,
	}
}

type bashArgs struct {
	Command   string `json:"command"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

func (t *BashTool) Def() Def {
	return Def{
		Name:        "bash",
		Description: "Run a shell command and return its combined stdout/stderr.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command":    map[string]any{"type": "string"},
				"timeout_ms": map[string]any{"type": "integer"},
			},
			"required":             []any{"command"},
			"additionalProperties": false,
		},
	}
}

// Execute classifies command's risk, consults the permission engine
// (forbidden commands are refused outright regardless of any grant),
// then runs it under a deadline with process-group teardown.
func (t *BashTool) Execute(ctx context.Context, rawArgs json.RawMessage) (Result, error) {
	var args bashArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, fmt.Errorf("bash: invalid arguments: %w", err)
	}

	riskShell := risk.ShellPOSIX
	if t.env.Shell == shell.PowerShell {
		riskShell = risk.ShellPowerShell
	}
	level, reason := t.risk.Classify(args.Command, riskShell)
	if level == risk.LevelForbidden {
		return Result{Output: fmt.Sprintf("refused: %s", reason), IsError: true}, nil
	}
	if level == risk.LevelInteractive {
		return Result{
			Output: fmt.Sprintf(
				"refused: %s. Use a non-interactive equivalent (cat instead of less, "+
					"a file edit instead of an editor, a one-shot query instead of a REPL), "+
					"or run it as a pty task via the task tool.", reason),
			IsError: true,
		}, nil
	}

	if !level.CanAutoApprove() {
		decision := t.permissions.Evaluate("bash", args.Command)
		if decision == permission.DecisionDeny {
			return Result{Output: "denied by permission rules", IsError: true}, nil
		}
		if decision == permission.DecisionAsk {
			return Result{Output: fmt.Sprintf("requires approval (%s risk: %s)", level, reason), IsError: true}, nil
		}
	}

	timeout := t.timeout
	if args.TimeoutMs > 0 {
		timeout = time.Duration(args.TimeoutMs) * time.Millisecond
		if timeout > maxBashTimeout {
			timeout = maxBashTimeout
		}
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := shell.Normalize(args.Command, t.env)
	spawnArgs := append(append([]string{}, t.env.ExecArgs...), command)
	cmd := exec.CommandContext(runCtx, t.env.Exe, spawnArgs...)
	cmd.Dir = t.workdir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("bash: start: %w", err)
	}
	go func() { done <- cmd.Wait() }()

	select {
	case <-runCtx.Done():
		if cmd.Process != nil {
			if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
				syscall.Kill(-pgid, syscall.SIGKILL)
			} else {
				cmd.Process.Kill()
			}
		}
		<-done
		return Result{Output: truncate(out.String()), IsError: true}, fmt.Errorf("bash: %w", runCtx.Err())
	case err := <-done:
		text := truncate(out.String())
		if err != nil {
			return Result{Output: text, IsError: true}, nil
		}
		return Result{Output: text}, nil
	}
}

func truncate(s string) string {
	if len(s) <= maxBashOutput {
		return s
	}
	return s[:maxBashOutput] + fmt.Sprintf("\n... [truncated, %d bytes total]", len(s))
}
