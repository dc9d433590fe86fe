package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/pkg/safego"
)

// ContainerExecutor runs task commands inside a Docker container: a
// long-lived container is created with a keep-alive command, the task
// command runs via `docker exec`, and the container is removed
// unconditionally on every exit path. Docker is driven through its CLI
// rather than the SDK — the daemon API surface this needs is four
// subcommands, and the CLI keeps the dependency boundary at the
// process edge the same way the rest of the executors work.
type ContainerExecutor struct {
	dockerBin string
	logger    *zap.Logger
}

func NewContainerExecutor(logger *zap.Logger) *ContainerExecutor {
	return &ContainerExecutor{dockerBin: "docker", logger: logger}
}

func (e *ContainerExecutor) Mode() entity.TaskMode { return entity.ModeContainer }

// Available probes the Docker daemon. Callers fall back to the local
// executor when this is false.
func (e *ContainerExecutor) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return exec.CommandContext(probeCtx, e.dockerBin, "info", "--format", "{{.ServerVersion}}").Run() == nil
}

func (e *ContainerExecutor) Start(ctx context.Context, task *entity.Task, log *RingLog) (Handle, error) {
	spec := task.Container
	if spec == nil {
		return nil, fmt.Errorf("container executor: task %s has no container spec", task.ID)
	}
	image := spec.Image
	if image == "" {
		return nil, fmt.Errorf("container executor: empty image")
	}

	containerName := "agentcore-task-" + uuid.NewString()[:8]

	createArgs := []string{"run", "-d", "--name", containerName}
	if spec.Workdir != "" {
		createArgs = append(createArgs, "-w", spec.Workdir)
	}
	for k, v := range spec.Env {
		createArgs = append(createArgs, "-e", k+"="+v)
	}
	for host, cont := range spec.Volumes {
		createArgs = append(createArgs, "-v", host+":"+cont)
	}
	// Keep-alive command holds the container open so exec has a target.
	createArgs = append(createArgs, image, "sleep", "infinity")

	if out, err := exec.CommandContext(ctx, e.dockerBin, createArgs...).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("container executor: create: %v: %s", err, strings.TrimSpace(string(out)))
	}

	execCmd := exec.Command(e.dockerBin, "exec", containerName, "sh", "-c", task.Command)
	stdout, err := execCmd.StdoutPipe()
	if err != nil {
		e.remove(containerName)
		return nil, fmt.Errorf("container executor: stdout pipe: %w", err)
	}
	execCmd.Stderr = execCmd.Stdout

	if err := execCmd.Start(); err != nil {
		e.remove(containerName)
		return nil, fmt.Errorf("container executor: exec: %w", err)
	}

	h := &containerHandle{
		executor:      e,
		cmd:           execCmd,
		containerName: containerName,
		done:          make(chan struct{}),
	}

	safego.Go(e.logger, "container-task-"+task.ID, func() {
		defer e.remove(containerName)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var out bytes.Buffer
		for scanner.Scan() {
			line := scanner.Text()
			log.Append(line)
			out.WriteString(line)
			out.WriteByte('\n')
		}
		h.err = execCmd.Wait()
		h.output = out.String()
		close(h.done)
	})

	return h, nil
}

// remove tears the container down; forced so a still-running keep-alive
// does not block removal.
func (e *ContainerExecutor) remove(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(ctx, e.dockerBin, "rm", "-f", name).CombinedOutput(); err != nil {
		e.logger.Warn("container removal failed",
			zap.String("container", name),
			zap.Error(err),
			zap.String("output", strings.TrimSpace(string(out))),
		)
	}
}

type containerHandle struct {
	executor      *ContainerExecutor
	cmd           *exec.Cmd
	containerName string
	done          chan struct{}
	output        string
	err           error
}

func (h *containerHandle) Wait() (string, error) {
	<-h.done
	if h.err != nil {
		return h.output, fmt.Errorf("container exec exited: %w", h.err)
	}
	return h.output, nil
}

func (h *containerHandle) SendInput(string) error {
	return fmt.Errorf("container tasks have no input channel; use pty mode")
}

func (h *containerHandle) Cancel() error {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	h.executor.remove(h.containerName)
	return nil
}
