package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

// DAGNode is one unit of work in a multi-agent execution graph.
type DAGNode struct {
	ID           string
	AgentConfig  SpawnConfig
	Dependencies []string
	Input        string
	Result       string
	Error        error
	Status       DAGNodeStatus
	mu           sync.RWMutex
}

// DAGNodeStatus is a node's execution state.
type DAGNodeStatus int

const (
	DAGNodePending DAGNodeStatus = iota
	DAGNodeRunning
	DAGNodeCompleted
	DAGNodeFailed
	DAGNodeSkipped
)

func (s DAGNodeStatus) String() string {
	switch s {
	case DAGNodePending:
		return "pending"
	case DAGNodeRunning:
		return "running"
	case DAGNodeCompleted:
		return "completed"
	case DAGNodeFailed:
		return "failed"
	case DAGNodeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// RunFunc runs one sub-agent to completion and returns its output.
// Injected so the executor stays decoupled from the loop's internals.
type RunFunc func(ctx context.Context, sub *entity.SubAgent, input string) (string, error)

// DAGExecutor runs a directed acyclic graph of sub-agent tasks,
// executing independent nodes in parallel while respecting dependency
// order. A failed node skips its dependents rather than aborting the
// whole graph.
type DAGExecutor struct {
	spawner     Spawner
	runFn       RunFunc
	parentID    string
	maxParallel int
	logger      *zap.Logger
}

// DAGConfig configures a graph execution.
type DAGConfig struct {
	ParentID    string
	MaxParallel int
}

func NewDAGExecutor(spawner Spawner, runFn RunFunc, config DAGConfig, logger *zap.Logger) *DAGExecutor {
	if config.MaxParallel <= 0 {
		config.MaxParallel = 4
	}
	return &DAGExecutor{
		spawner:     spawner,
		runFn:       runFn,
		parentID:    config.ParentID,
		maxParallel: config.MaxParallel,
		logger:      logger.With(zap.String("component", "dag-executor")),
	}
}

// Execute runs every node, returning node ID to result. Validation
// rejects duplicate ids, missing dependencies, and cycles before
// anything spawns.
func (d *DAGExecutor) Execute(ctx context.Context, nodes []*DAGNode) (map[string]string, error) {
	if err := d.validate(nodes); err != nil {
		return nil, fmt.Errorf("dag validation failed: %w", err)
	}

	nodeMap := make(map[string]*DAGNode, len(nodes))
	remaining := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for _, n := range nodes {
		nodeMap[n.ID] = n
		remaining[n.ID] = len(n.Dependencies)
		for _, depID := range n.Dependencies {
			dependents[depID] = append(dependents[depID], n.ID)
		}
	}

	readyCh := make(chan *DAGNode, len(nodes))
	doneCh := make(chan *DAGNode, len(nodes))
	for _, n := range nodes {
		if remaining[n.ID] == 0 {
			readyCh <- n
		}
	}

	sem := make(chan struct{}, d.maxParallel)
	results := make(map[string]string, len(nodes))

	// skipSubtree marks a failed node's transitive dependents skipped
	// and reports each as done.
	var skipSubtree func(id string, completed *int)
	skipSubtree = func(id string, completed *int) {
		for _, depID := range dependents[id] {
			dep := nodeMap[depID]
			dep.mu.Lock()
			already := dep.Status == DAGNodeSkipped
			if !already {
				dep.Status = DAGNodeSkipped
			}
			dep.mu.Unlock()
			if !already {
				*completed++
				results[depID] = ""
				skipSubtree(depID, completed)
			}
		}
	}

	completed := 0
	total := len(nodes)
	for completed < total {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case node := <-readyCh:
			go func(n *DAGNode) {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					n.mu.Lock()
					n.Status = DAGNodeSkipped
					n.mu.Unlock()
					doneCh <- n
					return
				}
				d.executeNode(ctx, n)
				doneCh <- n
			}(node)
		case done := <-doneCh:
			completed++
			done.mu.RLock()
			status := done.Status
			result := done.Result
			done.mu.RUnlock()
			results[done.ID] = result

			if status == DAGNodeFailed || status == DAGNodeSkipped {
				skipSubtree(done.ID, &completed)
				continue
			}
			for _, depID := range dependents[done.ID] {
				remaining[depID]--
				if remaining[depID] == 0 {
					readyCh <- nodeMap[depID]
				}
			}
		}
	}
	return results, nil
}

func (d *DAGExecutor) executeNode(ctx context.Context, node *DAGNode) {
	node.mu.Lock()
	node.Status = DAGNodeRunning
	node.mu.Unlock()

	start := time.Now()

	sub, err := d.spawner.Spawn(ctx, d.parentID, node.AgentConfig)
	if err != nil {
		node.mu.Lock()
		node.Status = DAGNodeFailed
		node.Error = fmt.Errorf("spawn failed: %w", err)
		node.mu.Unlock()
		d.logger.Error("dag node spawn failed", zap.String("node", node.ID), zap.Error(err))
		return
	}

	result, err := d.runFn(ctx, sub, node.Input)
	duration := time.Since(start)

	node.mu.Lock()
	if err != nil {
		node.Status = DAGNodeFailed
		node.Error = err
		node.Result = fmt.Sprintf("Error: %v", err)
		_ = d.spawner.SetState(sub.ID, entity.SubAgentState{
			Phase: entity.PhaseFailed, Error: err.Error(), At: time.Now(),
		})
	} else {
		node.Status = DAGNodeCompleted
		node.Result = result
		_ = d.spawner.SetState(sub.ID, entity.SubAgentState{
			Phase: entity.PhaseCompleted, Summary: result,
		})
	}
	node.mu.Unlock()

	d.logger.Info("dag node finished",
		zap.String("node", node.ID),
		zap.String("status", node.Status.String()),
		zap.Duration("duration", duration),
	)
}

// validate rejects duplicate ids, missing dependencies, and cycles
// (Kahn's algorithm).
func (d *DAGExecutor) validate(nodes []*DAGNode) error {
	nodeSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if nodeSet[n.ID] {
			return fmt.Errorf("duplicate node id: %s", n.ID)
		}
		nodeSet[n.ID] = true
	}
	for _, n := range nodes {
		for _, depID := range n.Dependencies {
			if !nodeSet[depID] {
				return fmt.Errorf("node %s depends on missing node %s", n.ID, depID)
			}
		}
	}

	inDegree := make(map[string]int, len(nodes))
	adj := make(map[string][]string)
	for _, n := range nodes {
		inDegree[n.ID] = len(n.Dependencies)
		for _, dep := range n.Dependencies {
			adj[dep] = append(adj[dep], n.ID)
		}
	}

	queue := make([]string, 0)
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[curr] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(nodes) {
		return fmt.Errorf("graph contains a cycle (visited %d of %d nodes)", visited, len(nodes))
	}
	return nil
}
