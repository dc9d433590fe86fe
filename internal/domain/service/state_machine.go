package service

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AgentState is one discrete phase of a single agent loop run.
type AgentState string

const (
	StateIdle       AgentState = "idle"
	StateStreaming  AgentState = "streaming"
	StateToolExec   AgentState = "tool_exec"
	StateCompacting AgentState = "compacting"
	StateRetrying   AgentState = "retrying"
	StateComplete   AgentState = "complete"
	StateError      AgentState = "error"
	StateAborted    AgentState = "aborted"
)

var validTransitions = map[AgentState]map[AgentState]bool{
	StateIdle: {
		StateStreaming: true,
	},
	StateStreaming: {
		StateToolExec:   true,
		StateCompacting: true,
		StateRetrying:   true,
		StateComplete:   true,
		StateError:      true,
		StateAborted:    true,
	},
	StateToolExec: {
		StateStreaming:  true,
		StateCompacting: true,
		StateError:      true,
		StateAborted:    true,
	},
	StateCompacting: {
		StateStreaming: true,
		StateError:     true,
		StateAborted:   true,
	},
	StateRetrying: {
		StateStreaming: true,
		StateError:     true,
		StateAborted:   true,
	},
	StateComplete: {},
	StateError:    {},
	StateAborted:  {},
}

// StateSnapshot is a point-in-time copy of a run's progress.
type StateSnapshot struct {
	State         AgentState
	Step          int
	TokensUsed    int
	ToolsExecuted int
	RetryCount    int
	ErrorCount    int
	Elapsed       time.Duration
	ModelUsed     string
	LastTool      string
}

// StateMachine enforces the agent loop's legal phase transitions and
// accumulates per-run counters. Listeners are notified outside the
// lock so a slow observer cannot stall a transition.
type StateMachine struct {
	mu            sync.RWMutex
	state         AgentState
	step          int
	tokensUsed    int
	toolsExecuted int
	retryCount    int
	errorCount    int
	startTime     time.Time
	modelUsed     string
	lastTool      string
	logger        *zap.Logger
	listeners     []func(from, to AgentState, snap StateSnapshot)
}

func NewStateMachine(logger *zap.Logger) *StateMachine {
	return &StateMachine{state: StateIdle, startTime: time.Now(), logger: logger}
}

func (sm *StateMachine) State() AgentState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

func (sm *StateMachine) Snapshot() StateSnapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.snapshotLocked()
}

func (sm *StateMachine) snapshotLocked() StateSnapshot {
	return StateSnapshot{
		State:         sm.state,
		Step:          sm.step,
		TokensUsed:    sm.tokensUsed,
		ToolsExecuted: sm.toolsExecuted,
		RetryCount:    sm.retryCount,
		ErrorCount:    sm.errorCount,
		Elapsed:       time.Since(sm.startTime),
		ModelUsed:     sm.modelUsed,
		LastTool:      sm.lastTool,
	}
}

func (sm *StateMachine) Transition(to AgentState) error {
	sm.mu.Lock()
	from := sm.state
	allowed, ok := validTransitions[from]
	if !ok || !allowed[to] {
		sm.mu.Unlock()
		return fmt.Errorf("invalid state transition: %s -> %s", from, to)
	}
	sm.state = to
	snap := sm.snapshotLocked()
	listeners := make([]func(from, to AgentState, snap StateSnapshot), len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	if sm.logger != nil {
		sm.logger.Debug("agent state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	}
	for _, fn := range listeners {
		fn(from, to, snap)
	}
	return nil
}

func (sm *StateMachine) OnTransition(fn func(from, to AgentState, snap StateSnapshot)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

func (sm *StateMachine) SetStep(step int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.step = step
}

func (sm *StateMachine) AddTokens(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.tokensUsed += n
}

func (sm *StateMachine) RecordToolExec(name string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.toolsExecuted++
	sm.lastTool = name
}

func (sm *StateMachine) RecordRetry() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.retryCount++
}

func (sm *StateMachine) RecordError() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.errorCount++
}

func (sm *StateMachine) SetModel(model string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.modelUsed = model
}

func (sm *StateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	switch sm.state {
	case StateComplete, StateError, StateAborted:
		return true
	}
	return false
}
