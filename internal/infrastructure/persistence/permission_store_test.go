package persistence

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/permission"
)

func TestPermissionStore_PersistAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	store := NewPermissionStore(path, zap.NewNop())

	if err := store.Persist("bash", "git status"); err != nil {
		t.Fatal(err)
	}
	// Re-persisting the same grant is a no-op, not a duplicate.
	if err := store.Persist("bash", "git status"); err != nil {
		t.Fatal(err)
	}
	if err := store.Persist("read_file", "/etc/hosts"); err != nil {
		t.Fatal(err)
	}

	engine := permission.NewEngine(permission.RuleSet{})
	fresh := NewPermissionStore(path, zap.NewNop())
	if err := fresh.Load(engine); err != nil {
		t.Fatal(err)
	}

	if got := engine.Evaluate("bash", "git status"); got != permission.DecisionAllow {
		t.Fatalf("persisted grant must load back, got %v", got)
	}
	if got := engine.Evaluate("read_file", "/etc/hosts"); got != permission.DecisionAllow {
		t.Fatalf("second grant must load back, got %v", got)
	}
	if got := engine.Evaluate("bash", "git push"); got != permission.DecisionAsk {
		t.Fatalf("unpersisted call should still ask, got %v", got)
	}
}

func TestPermissionStore_MissingFileLoadsEmpty(t *testing.T) {
	store := NewPermissionStore(filepath.Join(t.TempDir(), "none.json"), zap.NewNop())
	engine := permission.NewEngine(permission.RuleSet{})
	if err := store.Load(engine); err != nil {
		t.Fatalf("missing grant file is not an error: %v", err)
	}
}
