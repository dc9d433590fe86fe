package entity

// TodoPriority is ordered Critical < High < Medium < Low for sorting
// purposes (lower numeric value sorts first / is more urgent).
type TodoPriority int

const (
	PriorityCritical TodoPriority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

func (p TodoPriority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// TodoStatus tracks whether a TodoItem is still open.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoDone       TodoStatus = "done"
)

// TodoItem is one session-persistent plan entry.
type TodoItem struct {
	ID       string
	Text     string
	Priority TodoPriority
	Status   TodoStatus
}

// ProgressEntry snapshots the current TODO state for reminder injection:
// the active item, a bounded preview of what remains, and completion
// percentage.
type ProgressEntry struct {
	Current          *TodoItem
	UpcomingPreview  []TodoItem // capped by the caller, e.g. top 5
	TotalCount       int
	CompletedCount   int
	PercentComplete  float64
}
