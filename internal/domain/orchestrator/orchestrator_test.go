package orchestrator

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

func newTestOrchestrator(t *testing.T, maxConcurrent int) *Orchestrator {
	t.Helper()
	o := New(maxConcurrent, zap.NewNop())
	o.RegisterExecutor(NewLocalExecutor(t.TempDir(), zap.NewNop()))
	return o
}

func waitState(t *testing.T, o *Orchestrator, id string, want entity.TaskState, deadline time.Duration) entity.Task {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		task, err := o.Status(id)
		if err != nil {
			t.Fatal(err)
		}
		if task.State == want {
			return task
		}
		if task.State.IsTerminal() {
			t.Fatalf("task reached %s while waiting for %s (%s)", task.State, want, task.FailReason)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task never reached %s", want)
	return entity.Task{}
}

func TestOrchestrator_CompleteLifecycle(t *testing.T) {
	o := newTestOrchestrator(t, 2)

	id, err := o.Submit(context.Background(), SubmitSpec{
		SessionID: "s1",
		Command:   "echo done",
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	res := o.WaitFor(context.Background(), id, WaitCondition{Kind: WaitComplete}, 5*time.Second)
	if res.Outcome != WaitSatisfied {
		t.Fatalf("expected satisfied wait, got %v (%v)", res.Outcome, res.Err)
	}
	task, _ := o.Status(id)
	if task.State != entity.TaskCompleted {
		t.Fatalf("expected completed, got %s", task.State)
	}
	if task.StartedAt == nil || task.CompletedAt == nil {
		t.Fatal("timestamps must be set")
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	o := newTestOrchestrator(t, 2)

	id, err := o.Submit(context.Background(), SubmitSpec{
		Command: "sleep 5",
		Timeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	res := o.WaitFor(context.Background(), id, WaitCondition{Kind: WaitComplete}, 3*time.Second)
	if res.Outcome != WaitTimedOut {
		t.Fatalf("a timed-out task surfaces as the Timeout wait outcome, got %v", res.Outcome)
	}
	task, _ := o.Status(id)
	if task.State != entity.TaskTimeout {
		t.Fatalf("expected timeout state, got %s", task.State)
	}
}

func TestOrchestrator_CancelPending(t *testing.T) {
	// One slot, occupied by a slow task: the second stays pending.
	o := newTestOrchestrator(t, 1)

	blocker, err := o.Submit(context.Background(), SubmitSpec{Command: "sleep 3", Timeout: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	waitState(t, o, blocker, entity.TaskRunning, 2*time.Second)

	pending, err := o.Submit(context.Background(), SubmitSpec{Command: "echo never", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	if err := o.Cancel(pending); err != nil {
		t.Fatal(err)
	}
	task, _ := o.Status(pending)
	if task.State != entity.TaskCancelled {
		t.Fatalf("expected cancelled, got %s", task.State)
	}
	_ = o.Cancel(blocker)
}

func TestOrchestrator_CancelRunning(t *testing.T) {
	o := newTestOrchestrator(t, 2)

	id, err := o.Submit(context.Background(), SubmitSpec{Command: "sleep 5", Timeout: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	waitState(t, o, id, entity.TaskRunning, 2*time.Second)

	if err := o.Cancel(id); err != nil {
		t.Fatal(err)
	}

	res := o.WaitFor(context.Background(), id, WaitCondition{Kind: WaitComplete}, 3*time.Second)
	if res.Outcome != WaitCancelled {
		t.Fatalf("expected cancelled outcome, got %v", res.Outcome)
	}
}

func TestOrchestrator_WaitOutputContains(t *testing.T) {
	o := newTestOrchestrator(t, 2)

	id, err := o.Submit(context.Background(), SubmitSpec{
		Command: "echo ready; sleep 2",
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	res := o.WaitFor(context.Background(), id,
		WaitCondition{Kind: WaitOutputContains, Substring: "ready"}, 3*time.Second)
	if res.Outcome != WaitSatisfied {
		t.Fatalf("expected output match, got %v (%v)", res.Outcome, res.Err)
	}
	_ = o.Cancel(id)
}

func TestOrchestrator_WaitDeadline(t *testing.T) {
	o := newTestOrchestrator(t, 2)

	id, err := o.Submit(context.Background(), SubmitSpec{Command: "sleep 3", Timeout: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	res := o.WaitFor(context.Background(), id, WaitCondition{Kind: WaitComplete}, 100*time.Millisecond)
	if res.Outcome != WaitTimedOut {
		t.Fatalf("expected wait deadline, got %v", res.Outcome)
	}
	_ = o.Cancel(id)
}

func TestOrchestrator_ConcurrencyBound(t *testing.T) {
	o := newTestOrchestrator(t, 1)

	first, _ := o.Submit(context.Background(), SubmitSpec{Command: "sleep 1", Timeout: 10 * time.Second})
	second, _ := o.Submit(context.Background(), SubmitSpec{Command: "echo hi", Timeout: 10 * time.Second})

	waitState(t, o, first, entity.TaskRunning, 2*time.Second)
	task, _ := o.Status(second)
	if task.State != entity.TaskPending {
		t.Fatalf("second task should queue behind the first, got %s", task.State)
	}

	_ = o.Cancel(first)
	res := o.WaitFor(context.Background(), second, WaitCondition{Kind: WaitComplete}, 5*time.Second)
	if res.Outcome != WaitSatisfied {
		t.Fatalf("queued task should run after the slot frees, got %v (%v)", res.Outcome, res.Err)
	}
}

func TestRingLog_Bounds(t *testing.T) {
	l := NewRingLog(3)
	for _, s := range []string{"a", "b", "c", "d"} {
		l.Append(s)
	}

	recent := l.Recent(0)
	if len(recent) != 3 || recent[0] != "b" || recent[2] != "d" {
		t.Fatalf("expected [b c d], got %v", recent)
	}
	if l.Contains("a") {
		t.Fatal("evicted line must not match")
	}
	if !l.Contains("d") {
		t.Fatal("recent line must match")
	}
}

func TestTaskTransitionsTerminal(t *testing.T) {
	rec := &taskRecord{task: entity.Task{State: entity.TaskPending}}
	if err := rec.transition(entity.TaskRunning); err != nil {
		t.Fatal(err)
	}
	if err := rec.transition(entity.TaskCompleted); err != nil {
		t.Fatal(err)
	}
	if err := rec.transition(entity.TaskRunning); err == nil {
		t.Fatal("terminal states must reject transitions")
	}
}
