package service

import (
	"strings"
	"testing"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

func TestTodoStore_ProgressSnapshot(t *testing.T) {
	s := NewTodoStore()
	doneID := s.Add("read the code", entity.PriorityHigh)
	currentID := s.Add("write the fix", entity.PriorityCritical)
	s.Add("run the tests", entity.PriorityMedium)

	s.SetStatus(doneID, entity.TodoDone)
	s.SetStatus(currentID, entity.TodoInProgress)

	p := s.Progress()
	if p.TotalCount != 3 || p.CompletedCount != 1 {
		t.Fatalf("unexpected counts: %+v", p)
	}
	if p.Current == nil || p.Current.Text != "write the fix" {
		t.Fatalf("expected the in-progress item as current: %+v", p.Current)
	}
	if len(p.UpcomingPreview) != 1 || p.UpcomingPreview[0].Text != "run the tests" {
		t.Fatalf("unexpected upcoming preview: %+v", p.UpcomingPreview)
	}
	if p.PercentComplete < 33 || p.PercentComplete > 34 {
		t.Fatalf("expected ~33%%, got %v", p.PercentComplete)
	}
}

func TestTodoStore_ReminderBoundedAndEmpty(t *testing.T) {
	s := NewTodoStore()
	if s.TodoReminder() != "" {
		t.Fatal("an empty plan must produce no reminder")
	}

	for i := 0; i < 10; i++ {
		s.Add("step", entity.PriorityLow)
	}
	reminder := s.TodoReminder()
	if !strings.HasPrefix(reminder, "[PLAN]") {
		t.Fatalf("reminder should be tagged: %q", reminder)
	}
	// Preview is capped at five entries.
	if got := strings.Count(reminder, "step"); got > 5 {
		t.Fatalf("preview must be bounded, found %d entries", got)
	}
}

func TestTodoStore_PriorityOrdering(t *testing.T) {
	s := NewTodoStore()
	s.Add("later", entity.PriorityLow)
	s.Add("urgent", entity.PriorityCritical)

	items := s.Items()
	if items[0].Text != "urgent" {
		t.Fatalf("critical items sort first, got %v", items[0].Text)
	}
	if entity.PriorityCritical >= entity.PriorityLow {
		t.Fatal("priority ordering constant check")
	}
}

func TestTodoStore_SetStatusUnknown(t *testing.T) {
	s := NewTodoStore()
	if s.SetStatus("missing", entity.TodoDone) {
		t.Fatal("unknown id must report false")
	}
}
