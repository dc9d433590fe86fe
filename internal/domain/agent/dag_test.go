package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

func newTestDAG(t *testing.T, runFn RunFunc) *DAGExecutor {
	t.Helper()
	s := NewInMemorySpawner(5, zap.NewNop())
	return NewDAGExecutor(s, runFn, DAGConfig{MaxParallel: 4}, zap.NewNop())
}

func TestDAG_RespectsDependencyOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	run := func(_ context.Context, sub *entity.SubAgent, _ string) (string, error) {
		mu.Lock()
		order = append(order, sub.Name)
		mu.Unlock()
		return sub.Name + "-result", nil
	}

	d := newTestDAG(t, run)
	nodes := []*DAGNode{
		{ID: "c", AgentConfig: DefaultSpawnConfig("c"), Dependencies: []string{"a", "b"}},
		{ID: "a", AgentConfig: DefaultSpawnConfig("a")},
		{ID: "b", AgentConfig: DefaultSpawnConfig("b"), Dependencies: []string{"a"}},
	}

	results, err := d.Execute(context.Background(), nodes)
	if err != nil {
		t.Fatal(err)
	}
	if results["c"] != "c-result" {
		t.Fatalf("expected c to run, got %v", results)
	}

	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Fatalf("dependency order violated: %v", order)
	}
}

func TestDAG_FailureSkipsDependents(t *testing.T) {
	run := func(_ context.Context, sub *entity.SubAgent, _ string) (string, error) {
		if sub.Name == "a" {
			return "", fmt.Errorf("boom")
		}
		return "ok", nil
	}

	d := newTestDAG(t, run)
	nodes := []*DAGNode{
		{ID: "a", AgentConfig: DefaultSpawnConfig("a")},
		{ID: "b", AgentConfig: DefaultSpawnConfig("b"), Dependencies: []string{"a"}},
		{ID: "solo", AgentConfig: DefaultSpawnConfig("solo")},
	}

	results, err := d.Execute(context.Background(), nodes)
	if err != nil {
		t.Fatal(err)
	}
	if nodes[1].Status != DAGNodeSkipped {
		t.Fatalf("dependent of failed node should be skipped, got %v", nodes[1].Status)
	}
	if results["solo"] != "ok" {
		t.Fatal("independent branch must still run")
	}
}

func TestDAG_RejectsCycle(t *testing.T) {
	d := newTestDAG(t, func(context.Context, *entity.SubAgent, string) (string, error) {
		return "", nil
	})
	nodes := []*DAGNode{
		{ID: "a", AgentConfig: DefaultSpawnConfig("a"), Dependencies: []string{"b"}},
		{ID: "b", AgentConfig: DefaultSpawnConfig("b"), Dependencies: []string{"a"}},
	}
	if _, err := d.Execute(context.Background(), nodes); err == nil {
		t.Fatal("cycles must be rejected before execution")
	}
}

func TestDAG_RejectsMissingDependency(t *testing.T) {
	d := newTestDAG(t, func(context.Context, *entity.SubAgent, string) (string, error) {
		return "", nil
	})
	nodes := []*DAGNode{
		{ID: "a", AgentConfig: DefaultSpawnConfig("a"), Dependencies: []string{"ghost"}},
	}
	if _, err := d.Execute(context.Background(), nodes); err == nil {
		t.Fatal("missing dependencies must be rejected")
	}
}
