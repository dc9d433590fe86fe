package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/shell"
	"github.com/agentcore/agentcore/pkg/safego"
)

// Handle is a started task the orchestrator can wait on, feed input to,
// and cancel. Executors return one from Start; the orchestrator owns
// its lifecycle from there.
type Handle interface {
	// Wait blocks until the child exits and returns its result text.
	// A non-zero exit is an error carrying the captured output.
	Wait() (string, error)
	// SendInput writes to the child's stdin (PTY mode) or fails for
	// executors without an input channel.
	SendInput(input string) error
	// Cancel kills the child and releases its resources, best-effort.
	Cancel() error
}

// Executor starts a task in its execution mode. Implementations stream
// output lines into log as they arrive.
type Executor interface {
	Mode() entity.TaskMode
	Start(ctx context.Context, task *entity.Task, log *RingLog) (Handle, error)
}

// LocalExecutor runs the command as a direct child process under the
// detected shell, in its own process group so cancellation reaches
// grandchildren.
type LocalExecutor struct {
	env     shell.Environment
	workdir string
	logger  *zap.Logger
}

func NewLocalExecutor(workdir string, logger *zap.Logger) *LocalExecutor {
	return &LocalExecutor{env: shell.Detect(), workdir: workdir, logger: logger}
}

func (e *LocalExecutor) Mode() entity.TaskMode { return entity.ModeLocal }

func (e *LocalExecutor) Start(ctx context.Context, task *entity.Task, log *RingLog) (Handle, error) {
	command := shell.Normalize(task.Command, e.env)
	args := append(append([]string{}, e.env.ExecArgs...), command)

	cmd := exec.Command(e.env.Exe, args...)
	cmd.Dir = e.workdir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("local executor: stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("local executor: start: %w", err)
	}

	h := &localHandle{cmd: cmd, done: make(chan struct{})}

	safego.Go(e.logger, "local-task-"+task.ID, func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var out bytes.Buffer
		for scanner.Scan() {
			line := scanner.Text()
			log.Append(line)
			out.WriteString(line)
			out.WriteByte('\n')
		}
		h.err = cmd.Wait()
		h.output = out.String()
		close(h.done)
	})

	return h, nil
}

type localHandle struct {
	cmd    *exec.Cmd
	done   chan struct{}
	output string
	err    error
}

func (h *localHandle) Wait() (string, error) {
	<-h.done
	if h.err != nil {
		return h.output, fmt.Errorf("process exited: %w", h.err)
	}
	return h.output, nil
}

func (h *localHandle) SendInput(string) error {
	return fmt.Errorf("local tasks have no input channel; use pty mode")
}

func (h *localHandle) Cancel() error {
	if h.cmd.Process == nil {
		return nil
	}
	if pgid, err := syscall.Getpgid(h.cmd.Process.Pid); err == nil {
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}
	return h.cmd.Process.Kill()
}

// splitLines yields complete lines from a byte chunk stream, retaining
// any trailing partial line in the returned remainder.
func splitLines(chunk string, remainder string) (lines []string, rest string) {
	data := remainder + chunk
	for {
		i := strings.IndexByte(data, '\n')
		if i < 0 {
			return lines, data
		}
		lines = append(lines, strings.TrimRight(data[:i], "\r"))
		data = data[i+1:]
	}
}
