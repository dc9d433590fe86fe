package orchestrator

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"context"

	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/shell"
	"github.com/agentcore/agentcore/pkg/safego"
)

// PtyExecutor runs the command attached to a pseudo-terminal, for
// programs that refuse to run (or buffer their output differently)
// without a TTY. Output streams line by line into the task's ring log
// and input can be written to the terminal while the task runs.
type PtyExecutor struct {
	env     shell.Environment
	workdir string
	rows    uint16
	cols    uint16
	logger  *zap.Logger
}

func NewPtyExecutor(workdir string, logger *zap.Logger) *PtyExecutor {
	return &PtyExecutor{
		env:     shell.Detect(),
		workdir: workdir,
		rows:    40,
		cols:    120,
		logger:  logger,
	}
}

func (e *PtyExecutor) Mode() entity.TaskMode { return entity.ModePty }

func (e *PtyExecutor) Start(_ context.Context, task *entity.Task, log *RingLog) (Handle, error) {
	command := shell.Normalize(task.Command, e.env)
	args := append(append([]string{}, e.env.ExecArgs...), command)

	cmd := exec.Command(e.env.Exe, args...)
	cmd.Dir = e.workdir
	cmd.Env = os.Environ()

	tty, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: e.rows, Cols: e.cols})
	if err != nil {
		return nil, fmt.Errorf("pty executor: start: %w", err)
	}

	h := &ptyHandle{cmd: cmd, tty: tty, done: make(chan struct{})}

	safego.Go(e.logger, "pty-task-"+task.ID, func() {
		var out bytes.Buffer
		var pending string
		buf := make([]byte, 4096)
		for {
			n, readErr := tty.Read(buf)
			if n > 0 {
				chunk := string(buf[:n])
				out.WriteString(chunk)
				var lines []string
				lines, pending = splitLines(chunk, pending)
				for _, line := range lines {
					log.Append(line)
				}
			}
			if readErr != nil {
				// A closed PTY surfaces as EIO on Linux once the child
				// exits; both that and EOF mean the stream is done.
				break
			}
		}
		if pending != "" {
			log.Append(pending)
		}
		h.err = cmd.Wait()
		h.output = out.String()
		h.closeTTY()
		close(h.done)
	})

	return h, nil
}

type ptyHandle struct {
	cmd      *exec.Cmd
	tty      *os.File
	done     chan struct{}
	output   string
	err      error
	closeMu  sync.Mutex
	ttyClosed bool
}

func (h *ptyHandle) closeTTY() {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	if !h.ttyClosed {
		h.tty.Close()
		h.ttyClosed = true
	}
}

func (h *ptyHandle) Wait() (string, error) {
	<-h.done
	if h.err != nil {
		return h.output, fmt.Errorf("process exited: %w", h.err)
	}
	return h.output, nil
}

// SendInput writes input to the terminal, appending a newline so a
// waiting prompt sees a completed answer.
func (h *ptyHandle) SendInput(input string) error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	if h.ttyClosed {
		return fmt.Errorf("task already finished")
	}
	_, err := io.WriteString(h.tty, input+"\n")
	return err
}

func (h *ptyHandle) Cancel() error {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	h.closeTTY()
	return nil
}
