package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

// TodoStore holds a session's plan items and produces the bounded
// reminder text the loop injects every few tool calls.
type TodoStore struct {
	mu    sync.Mutex
	items []entity.TodoItem
}

func NewTodoStore() *TodoStore {
	return &TodoStore{}
}

// Add appends a new item and returns its id.
func (s *TodoStore) Add(text string, priority entity.TodoPriority) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.items = append(s.items, entity.TodoItem{
		ID:       id,
		Text:     text,
		Priority: priority,
		Status:   entity.TodoPending,
	})
	return id
}

// SetStatus updates an item's status, returning false if id is unknown.
func (s *TodoStore) SetStatus(id string, status entity.TodoStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Status = status
			return true
		}
	}
	return false
}

// Items returns a copy of all items, sorted most-urgent-first within
// their original order.
func (s *TodoStore) Items() []entity.TodoItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.TodoItem, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Progress snapshots the current state for reminder injection: the
// active item, up to five upcoming items, and completion percentage.
func (s *TodoStore) Progress() entity.ProgressEntry {
	items := s.Items()

	entry := entity.ProgressEntry{TotalCount: len(items)}
	for i := range items {
		switch items[i].Status {
		case entity.TodoDone:
			entry.CompletedCount++
		case entity.TodoInProgress:
			if entry.Current == nil {
				entry.Current = &items[i]
			}
		case entity.TodoPending:
			if len(entry.UpcomingPreview) < 5 {
				entry.UpcomingPreview = append(entry.UpcomingPreview, items[i])
			}
		}
	}
	if entry.TotalCount > 0 {
		entry.PercentComplete = 100 * float64(entry.CompletedCount) / float64(entry.TotalCount)
	}
	return entry
}

// TodoReminder formats the reminder message the loop appends after
// every K tool calls. Returns empty when there is nothing to remind
// about, so an empty plan never injects noise.
func (s *TodoStore) TodoReminder() string {
	entry := s.Progress()
	if entry.TotalCount == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[PLAN] ")
	if entry.Current != nil {
		fmt.Fprintf(&b, "Current: %s. ", entry.Current.Text)
	}
	if len(entry.UpcomingPreview) > 0 {
		b.WriteString("Remaining: ")
		for i, item := range entry.UpcomingPreview {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(item.Text)
		}
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "Progress: %d/%d (%.0f%%).", entry.CompletedCount, entry.TotalCount, entry.PercentComplete)
	return b.String()
}
