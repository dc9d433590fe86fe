// Package agent manages nested agent instances: spawning bounded
// sub-agents and executing dependency graphs of them.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

// SpawnConfig describes the sub-agent a parent wants.
type SpawnConfig struct {
	Name         string
	SystemPrompt string
	AllowedTools []string
	DeniedTools  []string
	CanSpawn     bool
	MaxTurns     int
	Timeout      time.Duration
}

func DefaultSpawnConfig(name string) SpawnConfig {
	return SpawnConfig{
		Name:     name,
		CanSpawn: false,
		MaxTurns: 10,
		Timeout:  5 * time.Minute,
	}
}

// Spawner creates and tracks sub-agents.
type Spawner interface {
	Spawn(ctx context.Context, parentID string, config SpawnConfig) (*entity.SubAgent, error)
	Get(agentID string) (*entity.SubAgent, bool)
	ListChildren(parentID string) []*entity.SubAgent
	// SetState applies a state change, enforcing that terminal states
	// are final.
	SetState(agentID string, state entity.SubAgentState) error
	Cancel(agentID string, reason string) error
	CancelAll(parentID string) error
	Depth(agentID string) int
}

// InMemorySpawner tracks sub-agents in process memory with a
// parent-to-children index. Depth is enforced at spawn time so a
// runaway agent cannot recurse indefinitely.
type InMemorySpawner struct {
	mu       sync.RWMutex
	agents   map[string]*entity.SubAgent
	children map[string][]string
	maxDepth int
	logger   *zap.Logger
}

func NewInMemorySpawner(maxDepth int, logger *zap.Logger) *InMemorySpawner {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &InMemorySpawner{
		agents:   make(map[string]*entity.SubAgent),
		children: make(map[string][]string),
		maxDepth: maxDepth,
		logger:   logger.With(zap.String("component", "spawner")),
	}
}

// Spawn registers a new sub-agent under parentID. An empty parentID
// means the root agent is spawning. The parent must itself be allowed
// to spawn, and the new agent's depth must stay under the ceiling.
func (s *InMemorySpawner) Spawn(_ context.Context, parentID string, config SpawnConfig) (*entity.SubAgent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := 1
	if parentID != "" {
		parent, ok := s.agents[parentID]
		if !ok {
			return nil, fmt.Errorf("parent agent %s not found", parentID)
		}
		if !parent.CanSpawn {
			return nil, fmt.Errorf("agent %s is not permitted to spawn children", parentID)
		}
		if parent.State.IsTerminal() {
			return nil, fmt.Errorf("agent %s has already finished", parentID)
		}
		depth = parent.Depth + 1
	}
	if depth > s.maxDepth {
		return nil, fmt.Errorf("spawn depth %d exceeds maximum %d", depth, s.maxDepth)
	}

	sub := &entity.SubAgent{
		ID:           uuid.NewString(),
		ParentID:     parentID,
		Name:         config.Name,
		SystemPrompt: config.SystemPrompt,
		Depth:        depth,
		AllowedTools: config.AllowedTools,
		DeniedTools:  config.DeniedTools,
		CanSpawn:     config.CanSpawn,
		CreatedAt:    time.Now(),
		State:        entity.SubAgentState{Phase: entity.PhaseCreated},
	}
	s.agents[sub.ID] = sub
	if parentID != "" {
		s.children[parentID] = append(s.children[parentID], sub.ID)
	}

	s.logger.Info("sub-agent spawned",
		zap.String("agent_id", sub.ID),
		zap.String("parent_id", parentID),
		zap.String("name", config.Name),
		zap.Int("depth", depth),
	)
	return sub, nil
}

func (s *InMemorySpawner) Get(agentID string) (*entity.SubAgent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	return a, ok
}

func (s *InMemorySpawner) ListChildren(parentID string) []*entity.SubAgent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.children[parentID]
	out := make([]*entity.SubAgent, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.agents[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// SetState applies a state change. Terminal states are final: a
// Completed, Failed, or Cancelled agent rejects further changes.
func (s *InMemorySpawner) SetState(agentID string, state entity.SubAgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s not found", agentID)
	}
	if a.State.IsTerminal() {
		return fmt.Errorf("agent %s is already %s", agentID, a.State.Phase)
	}
	a.State = state
	return nil
}

// Cancel marks the agent cancelled. Cancelling an already-terminal
// agent is a no-op rather than an error, since cancellation races with
// completion by design.
func (s *InMemorySpawner) Cancel(agentID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s not found", agentID)
	}
	if a.State.IsTerminal() {
		return nil
	}
	a.State = entity.SubAgentState{Phase: entity.PhaseCancelled, Reason: reason, At: time.Now()}
	return nil
}

// CancelAll cancels every live descendant of parentID, depth first.
func (s *InMemorySpawner) CancelAll(parentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelSubtreeLocked(parentID, "parent cancelled")
	return nil
}

func (s *InMemorySpawner) cancelSubtreeLocked(parentID, reason string) {
	for _, id := range s.children[parentID] {
		s.cancelSubtreeLocked(id, reason)
		if a, ok := s.agents[id]; ok && !a.State.IsTerminal() {
			a.State = entity.SubAgentState{Phase: entity.PhaseCancelled, Reason: reason, At: time.Now()}
		}
	}
}

func (s *InMemorySpawner) Depth(agentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.agents[agentID]; ok {
		return a.Depth
	}
	return 0
}
