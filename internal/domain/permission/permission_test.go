package permission

import "testing"

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"**", "anything/at/all", true},
		{"*", "segment", true},
		{"*", "two/segments", false},
		{"A/**", "A/x/y", true},
		{"A/**", "B/x", false},
		{"A/*", "A/x", true},
		{"A/*", "A/x/y", false},
		{"exact", "exact", true},
		{"exact", "other", false},
		{"src/*.go", "src/main.go", true},
		{"src/*.go", "src/sub/main.go", false},
	}
	for _, tc := range cases {
		if got := globMatch(tc.pattern, tc.value); got != tc.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}
}

func TestEngine_DenyDominates(t *testing.T) {
	e := NewEngine(RuleSet{
		Deny:  []Rule{{ToolName: "bash", ArgPattern: "rm **"}},
		Allow: []Rule{{ToolName: "bash"}},
	})

	if got := e.Evaluate("bash", "rm -rf build"); got != DecisionDeny {
		t.Fatalf("deny must dominate allow, got %v", got)
	}
	if got := e.Evaluate("bash", "ls"); got != DecisionAllow {
		t.Fatalf("non-denied call should hit the allow rule, got %v", got)
	}
}

func TestEngine_PrecedenceChain(t *testing.T) {
	e := NewEngine(RuleSet{})

	if got := e.Evaluate("bash", "ls"); got != DecisionAsk {
		t.Fatalf("unknown call must ask, got %v", got)
	}

	if err := e.Grant("bash", "ls", ScopeSession); err != nil {
		t.Fatal(err)
	}
	if got := e.Evaluate("bash", "ls"); got != DecisionAllow {
		t.Fatalf("session grant must allow, got %v", got)
	}

	e.LoadPersistentGrant("bash", "pwd")
	if got := e.Evaluate("bash", "pwd"); got != DecisionAllow {
		t.Fatalf("persistent grant must allow, got %v", got)
	}
}

func TestEngine_OnceIsNotStored(t *testing.T) {
	e := NewEngine(RuleSet{})
	if err := e.Grant("bash", "ls", ScopeOnce); err != nil {
		t.Fatal(err)
	}
	if got := e.Evaluate("bash", "ls"); got != DecisionAsk {
		t.Fatalf("once grants must not persist, got %v", got)
	}
}

func TestEngine_PermanentGrantTriggersPersistHook(t *testing.T) {
	e := NewEngine(RuleSet{})

	var persisted []string
	e.SetPersistHook(func(toolName, arg string) error {
		persisted = append(persisted, toolName+"|"+arg)
		return nil
	})

	if err := e.Grant("bash", "git status", ScopePermanent); err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 1 || persisted[0] != "bash|git status" {
		t.Fatalf("expected one persisted grant, got %v", persisted)
	}

	// Session grants never hit the hook.
	if err := e.Grant("bash", "ls", ScopeSession); err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 1 {
		t.Fatal("session grant must not persist")
	}
}

func TestEngine_Revoke(t *testing.T) {
	e := NewEngine(RuleSet{})
	_ = e.Grant("bash", "ls", ScopeSession)
	e.LoadPersistentGrant("bash", "ls")

	e.Revoke("bash", "ls")
	if got := e.Evaluate("bash", "ls"); got != DecisionAsk {
		t.Fatalf("revoked grant must ask again, got %v", got)
	}
}

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath("a//b/../c"); got != "a/c" {
		t.Fatalf("expected a/c, got %q", got)
	}
}
