package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
	agenterrors "github.com/agentcore/agentcore/pkg/errors"
	"github.com/agentcore/agentcore/pkg/safego"
)

// validTaskTransitions is the lifecycle table. Completed, Failed,
// Timeout, and Cancelled are terminal.
var validTaskTransitions = map[entity.TaskState]map[entity.TaskState]bool{
	entity.TaskPending: {
		entity.TaskRunning:   true,
		entity.TaskCancelled: true,
	},
	entity.TaskRunning: {
		entity.TaskCompleted: true,
		entity.TaskFailed:    true,
		entity.TaskTimeout:   true,
		entity.TaskCancelled: true,
	},
	entity.TaskCompleted: {},
	entity.TaskFailed:    {},
	entity.TaskTimeout:   {},
	entity.TaskCancelled: {},
}

// WaitConditionKind selects what WaitFor blocks on.
type WaitConditionKind int

const (
	WaitComplete WaitConditionKind = iota
	WaitOutputContains
	WaitPredicate
)

// WaitCondition is a tagged condition: Substring for
// WaitOutputContains, Predicate for WaitPredicate.
type WaitCondition struct {
	Kind      WaitConditionKind
	Substring string
	Predicate func(task entity.Task, log *RingLog) bool
}

// WaitOutcome classifies how a WaitFor call ended.
type WaitOutcome int

const (
	WaitSatisfied WaitOutcome = iota
	WaitTimedOut
	WaitCancelled
	WaitError
)

// WaitResult carries the outcome plus, when satisfied, the condition
// that fired and a data payload (the task result for WaitComplete, the
// matching log tail for WaitOutputContains).
type WaitResult struct {
	Outcome   WaitOutcome
	Condition WaitCondition
	Data      string
	Err       error
}

// SubmitSpec is what callers hand to Submit.
type SubmitSpec struct {
	SessionID string
	ToolName  string
	Command   string
	Mode      entity.TaskMode
	Container *entity.ContainerSpec
	Timeout   time.Duration
}

type taskRecord struct {
	mu       sync.Mutex
	task     entity.Task
	log      *RingLog
	handle   Handle
	done     chan struct{} // closed when the task reaches a terminal state
	doneOnce sync.Once
	cancel   chan struct{} // closed by Cancel on a running task
}

func (r *taskRecord) closeDone() {
	r.doneOnce.Do(func() { close(r.done) })
}

// snapshot returns a copy of the task under the record's lock.
func (r *taskRecord) snapshot() entity.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task
}

// transition applies a state change if the table allows it.
func (r *taskRecord) transition(to entity.TaskState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	from := r.task.State
	if !validTaskTransitions[from][to] {
		return fmt.Errorf("invalid task transition: %s -> %s", from, to)
	}
	r.task.State = to
	now := time.Now()
	switch to {
	case entity.TaskRunning:
		r.task.StartedAt = &now
	case entity.TaskCompleted, entity.TaskFailed, entity.TaskTimeout, entity.TaskCancelled:
		r.task.CompletedAt = &now
	}
	return nil
}

// Store persists finished tasks for session history; the gorm-backed
// implementation lives in infrastructure/persistence. A nil store
// disables persistence.
type Store interface {
	SaveTask(task entity.Task) error
}

// Orchestrator owns all Task records and their child handles. A FIFO
// queue feeds a worker pool bounded by maxConcurrent; the queue
// advances iteratively after every task finishes. Lock order is tasks
// -> queue -> running count; no path takes them in another order.
type Orchestrator struct {
	tasksMu sync.Mutex
	tasks   map[string]*taskRecord

	queueMu sync.Mutex
	queue   []string

	runningMu    sync.Mutex
	runningCount int

	maxConcurrent int
	logCapacity   int
	executors     map[entity.TaskMode]Executor
	containerExec *ContainerExecutor
	store         Store
	logger        *zap.Logger
}

func New(maxConcurrent int, logger *zap.Logger) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Orchestrator{
		tasks:         make(map[string]*taskRecord),
		maxConcurrent: maxConcurrent,
		logCapacity:   1000,
		executors:     make(map[entity.TaskMode]Executor),
		logger:        logger.With(zap.String("component", "orchestrator")),
	}
}

// RegisterExecutor installs the executor for its mode. The container
// executor is remembered separately so Submit can probe availability
// and fall back to local.
func (o *Orchestrator) RegisterExecutor(e Executor) {
	o.executors[e.Mode()] = e
	if ce, ok := e.(*ContainerExecutor); ok {
		o.containerExec = ce
	}
}

// SetStore installs the finished-task persistence hook.
func (o *Orchestrator) SetStore(s Store) { o.store = s }

// Submit enqueues a new task and kicks the queue. The returned id is
// valid immediately for Status/WaitFor calls.
func (o *Orchestrator) Submit(ctx context.Context, spec SubmitSpec) (string, error) {
	mode := spec.Mode
	if mode == "" {
		mode = entity.ModeLocal
	}
	if mode == entity.ModeContainer && (o.containerExec == nil || !o.containerExec.Available(ctx)) {
		o.logger.Warn("container runtime unavailable, falling back to local execution")
		mode = entity.ModeLocal
	}
	if _, ok := o.executors[mode]; !ok {
		return "", agenterrors.NewNotFound(fmt.Sprintf("no executor registered for mode %s", mode))
	}

	rec := &taskRecord{
		task: entity.Task{
			ID:        uuid.NewString(),
			SessionID: spec.SessionID,
			ToolName:  spec.ToolName,
			Command:   spec.Command,
			Mode:      mode,
			Container: spec.Container,
			Timeout:   spec.Timeout,
			State:     entity.TaskPending,
			CreatedAt: time.Now(),
		},
		log:    NewRingLog(o.logCapacity),
		done:   make(chan struct{}),
		cancel: make(chan struct{}),
	}

	o.tasksMu.Lock()
	o.tasks[rec.task.ID] = rec
	o.tasksMu.Unlock()

	o.queueMu.Lock()
	o.queue = append(o.queue, rec.task.ID)
	o.queueMu.Unlock()

	o.processQueue()
	return rec.task.ID, nil
}

// processQueue starts as many queued tasks as the concurrency bound
// allows. It loops rather than recursing; workers call it again when
// they finish.
func (o *Orchestrator) processQueue() {
	for {
		// Bound check, dequeue and slot reservation happen under both
		// locks (queue -> running count) so concurrent callers cannot
		// each pass the check and overshoot maxConcurrent.
		o.queueMu.Lock()
		o.runningMu.Lock()
		if o.runningCount >= o.maxConcurrent || len(o.queue) == 0 {
			o.runningMu.Unlock()
			o.queueMu.Unlock()
			return
		}
		id := o.queue[0]
		o.queue = o.queue[1:]
		o.runningCount++
		o.runningMu.Unlock()
		o.queueMu.Unlock()

		rec := o.record(id)
		// A task cancelled while queued was already transitioned; skip.
		if rec == nil || rec.snapshot().State != entity.TaskPending {
			o.runningMu.Lock()
			o.runningCount--
			o.runningMu.Unlock()
			continue
		}

		safego.Go(o.logger, "task-worker-"+id, func() {
			o.runTask(rec)

			o.runningMu.Lock()
			o.runningCount--
			o.runningMu.Unlock()

			o.processQueue()
		})
	}
}

// runTask drives one task from Running to a terminal state.
func (o *Orchestrator) runTask(rec *taskRecord) {
	defer rec.closeDone()

	if err := rec.transition(entity.TaskRunning); err != nil {
		// Lost the race with Cancel; nothing to run.
		return
	}
	task := rec.snapshot()
	executor := o.executors[task.Mode]

	o.logger.Info("task started",
		zap.String("task_id", task.ID),
		zap.String("mode", string(task.Mode)),
		zap.String("command", task.Command),
	)

	handle, err := executor.Start(context.Background(), &task, rec.log)
	if err != nil {
		o.finish(rec, entity.TaskFailed, "", err.Error())
		return
	}
	rec.mu.Lock()
	rec.handle = handle
	rec.mu.Unlock()

	waitCh := make(chan struct{})
	var output string
	var waitErr error
	safego.Go(o.logger, "task-wait-"+task.ID, func() {
		output, waitErr = handle.Wait()
		close(waitCh)
	})

	var deadline <-chan time.Time
	if task.Timeout > 0 {
		timer := time.NewTimer(task.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-waitCh:
		if waitErr != nil {
			o.finish(rec, entity.TaskFailed, output, waitErr.Error())
		} else {
			o.finish(rec, entity.TaskCompleted, output, "")
		}
	case <-deadline:
		_ = handle.Cancel()
		<-waitCh
		o.finish(rec, entity.TaskTimeout, output, fmt.Sprintf("deadline of %s elapsed", task.Timeout))
	case <-rec.cancel:
		_ = handle.Cancel()
		<-waitCh
		o.finish(rec, entity.TaskCancelled, output, "cancelled")
	}
}

func (o *Orchestrator) finish(rec *taskRecord, state entity.TaskState, result, reason string) {
	if err := rec.transition(state); err != nil {
		o.logger.Warn("task finish transition rejected", zap.Error(err))
		return
	}
	rec.mu.Lock()
	rec.task.Result = result
	rec.task.FailReason = reason
	task := rec.task
	rec.mu.Unlock()

	o.logger.Info("task finished",
		zap.String("task_id", task.ID),
		zap.String("state", string(task.State)),
		zap.String("reason", reason),
	)
	if o.store != nil {
		if err := o.store.SaveTask(task); err != nil {
			o.logger.Warn("task persistence failed", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) record(id string) *taskRecord {
	o.tasksMu.Lock()
	defer o.tasksMu.Unlock()
	return o.tasks[id]
}

// Status returns a snapshot of the task.
func (o *Orchestrator) Status(id string) (entity.Task, error) {
	rec := o.record(id)
	if rec == nil {
		return entity.Task{}, agenterrors.NewNotFound("task " + id)
	}
	return rec.snapshot(), nil
}

// List snapshots every known task, newest first.
func (o *Orchestrator) List() []entity.Task {
	o.tasksMu.Lock()
	records := make([]*taskRecord, 0, len(o.tasks))
	for _, rec := range o.tasks {
		records = append(records, rec)
	}
	o.tasksMu.Unlock()

	out := make([]entity.Task, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.snapshot())
	}
	return out
}

// Cancel stops a task. Pending tasks leave the queue without spawning;
// running tasks get their executor's cancellation hook.
func (o *Orchestrator) Cancel(id string) error {
	rec := o.record(id)
	if rec == nil {
		return agenterrors.NewNotFound("task " + id)
	}

	rec.mu.Lock()
	state := rec.task.State
	rec.mu.Unlock()

	switch state {
	case entity.TaskPending:
		if err := rec.transition(entity.TaskCancelled); err != nil {
			return err
		}
		o.queueMu.Lock()
		for i, qid := range o.queue {
			if qid == id {
				o.queue = append(o.queue[:i], o.queue[i+1:]...)
				break
			}
		}
		o.queueMu.Unlock()
		rec.closeDone()
		return nil
	case entity.TaskRunning:
		select {
		case <-rec.cancel:
			// already requested
		default:
			close(rec.cancel)
		}
		return nil
	default:
		return agenterrors.New(agenterrors.CodeTask, fmt.Sprintf("task %s already %s", id, state))
	}
}

// SendInput forwards input to a running PTY task.
func (o *Orchestrator) SendInput(id, input string) error {
	rec := o.record(id)
	if rec == nil {
		return agenterrors.NewNotFound("task " + id)
	}
	rec.mu.Lock()
	handle := rec.handle
	state := rec.task.State
	rec.mu.Unlock()

	if state != entity.TaskRunning || handle == nil {
		return agenterrors.New(agenterrors.CodeTask, "task is not running")
	}
	return handle.SendInput(input)
}

// ReadRecentOutput returns up to n of the most recent log lines.
func (o *Orchestrator) ReadRecentOutput(id string, n int) ([]string, error) {
	rec := o.record(id)
	if rec == nil {
		return nil, agenterrors.NewNotFound("task " + id)
	}
	return rec.log.Recent(n), nil
}

// WaitFor blocks until cond is satisfied, the task terminates without
// satisfying it, the deadline elapses, or ctx is cancelled. Output
// conditions are checked against the lines still held in the task's
// bounded ring log at each wake-up; a line evicted before a check runs
// is not matched.
func (o *Orchestrator) WaitFor(ctx context.Context, id string, cond WaitCondition, timeout time.Duration) WaitResult {
	rec := o.record(id)
	if rec == nil {
		return WaitResult{Outcome: WaitError, Err: agenterrors.NewNotFound("task " + id)}
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	check := func() (WaitResult, bool) {
		task := rec.snapshot()
		switch cond.Kind {
		case WaitComplete:
			if task.State == entity.TaskCompleted {
				return WaitResult{Outcome: WaitSatisfied, Condition: cond, Data: task.Result}, true
			}
			if task.State == entity.TaskCancelled {
				return WaitResult{Outcome: WaitCancelled, Condition: cond}, true
			}
			// A task that hit its own deadline surfaces as the Timeout
			// outcome: the caller was waiting for completion and the
			// task ran out of time, whichever clock expired first.
			if task.State == entity.TaskTimeout {
				return WaitResult{Outcome: WaitTimedOut, Condition: cond}, true
			}
			if task.State.IsTerminal() {
				return WaitResult{
					Outcome: WaitError,
					Err:     fmt.Errorf("task ended %s: %s", task.State, task.FailReason),
				}, true
			}
		case WaitOutputContains:
			if rec.log.Contains(cond.Substring) {
				tail := rec.log.Recent(5)
				data := ""
				if len(tail) > 0 {
					data = tail[len(tail)-1]
				}
				return WaitResult{Outcome: WaitSatisfied, Condition: cond, Data: data}, true
			}
			if task.State == entity.TaskCancelled {
				return WaitResult{Outcome: WaitCancelled, Condition: cond}, true
			}
			if task.State.IsTerminal() {
				return WaitResult{
					Outcome: WaitError,
					Err:     fmt.Errorf("task ended %s before output matched", task.State),
				}, true
			}
		case WaitPredicate:
			if cond.Predicate != nil && cond.Predicate(task, rec.log) {
				return WaitResult{Outcome: WaitSatisfied, Condition: cond}, true
			}
			if task.State == entity.TaskCancelled {
				return WaitResult{Outcome: WaitCancelled, Condition: cond}, true
			}
			if task.State.IsTerminal() {
				return WaitResult{
					Outcome: WaitError,
					Err:     fmt.Errorf("task ended %s before predicate held", task.State),
				}, true
			}
		}
		return WaitResult{}, false
	}

	for {
		if res, done := check(); done {
			return res
		}

		logWake := rec.log.Wait()
		select {
		case <-rec.done:
			// Terminal; loop once more so check classifies the end state.
			if res, done := check(); done {
				return res
			}
			return WaitResult{Outcome: WaitError, Err: fmt.Errorf("task ended without satisfying condition")}
		case <-logWake:
		case <-deadline:
			return WaitResult{Outcome: WaitTimedOut, Condition: cond}
		case <-ctx.Done():
			return WaitResult{Outcome: WaitCancelled, Condition: cond, Err: ctx.Err()}
		}
	}
}
