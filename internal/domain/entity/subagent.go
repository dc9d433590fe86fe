package entity

import "time"

// SubAgentPhase names the tagged-union variant of SubAgentState.
type SubAgentPhase string

const (
	PhaseCreated   SubAgentPhase = "created"
	PhaseRunning   SubAgentPhase = "running"
	PhaseCompleted SubAgentPhase = "completed"
	PhaseFailed    SubAgentPhase = "failed"
	PhaseCancelled SubAgentPhase = "cancelled"
	PhasePaused    SubAgentPhase = "paused"
)

// SubAgentState is a tagged union over a nested agent's lifecycle. Only
// the fields relevant to Phase are populated.
type SubAgentState struct {
	Phase SubAgentPhase

	// Running
	Turn    int
	MaxTurn int

	// Completed
	Summary string
	Turns   int

	// Failed
	Error string
	At    time.Time

	// Cancelled / Paused
	Reason string
}

func (s SubAgentState) IsTerminal() bool {
	switch s.Phase {
	case PhaseCompleted, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// SubAgent is a child agent instance with its own bounded context,
// spawned by a parent agent.
type SubAgent struct {
	ID           string
	ParentID     string
	Name         string
	SystemPrompt string
	Depth        int
	AllowedTools []string
	DeniedTools  []string
	CanSpawn     bool
	CreatedAt    time.Time
	State        SubAgentState
}

// CanUseTool reports whether name is permitted for this sub-agent: denied
// takes priority, then an empty allow-list means "everything not
// denied", otherwise the tool must be explicitly listed.
func (s *SubAgent) CanUseTool(name string) bool {
	for _, d := range s.DeniedTools {
		if d == name {
			return false
		}
	}
	if len(s.AllowedTools) == 0 {
		return true
	}
	for _, a := range s.AllowedTools {
		if a == name {
			return true
		}
	}
	return false
}
