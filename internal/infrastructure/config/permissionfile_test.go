package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/agentcore/agentcore/internal/domain/permission"
)

func TestPermissionFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	original := &PermissionFile{
		Grants: []GrantEntry{{Tool: "bash", ActionType: "execute", Pattern: "git *"}},
		Denies: []DenyEntry{{Tool: "bash", Pattern: "rm **", Reason: "destructive"}},
		AutoApproveTools: []string{"read_file"},
	}

	if err := SavePermissionFile(path, original); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadPermissionFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(original, loaded) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", original, loaded)
	}
}

func TestPermissionFile_MissingIsEmpty(t *testing.T) {
	pf, err := LoadPermissionFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pf.Grants) != 0 || len(pf.Denies) != 0 || pf.AutoApprove {
		t.Fatalf("missing file should load empty, got %+v", pf)
	}
}

func TestPermissionFile_CamelCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	raw := `{
		"grants": [{"tool": "bash", "actionType": "execute", "pattern": "ls*"}],
		"denies": [],
		"autoApprove": true,
		"autoApproveTools": ["glob"]
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	pf, err := LoadPermissionFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !pf.AutoApprove || len(pf.AutoApproveTools) != 1 || pf.Grants[0].ActionType != "execute" {
		t.Fatalf("camelCase keys misparsed: %+v", pf)
	}
}

func TestMergePermissionFiles_ProjectWins(t *testing.T) {
	global := &PermissionFile{
		Denies: []DenyEntry{{Tool: "bash", Pattern: "curl **"}},
	}
	project := &PermissionFile{
		Grants:      []GrantEntry{{Tool: "bash", Pattern: "make *"}},
		AutoApprove: true,
	}

	merged := MergePermissionFiles(global, project)
	if !merged.AutoApprove {
		t.Fatal("project scalar settings win")
	}
	if len(merged.Denies) != 1 || len(merged.Grants) != 1 {
		t.Fatalf("lists should concatenate: %+v", merged)
	}
}

func TestBuildRuleSet(t *testing.T) {
	pf := &PermissionFile{
		Grants:           []GrantEntry{{Tool: "bash", Pattern: "git *"}},
		Denies:           []DenyEntry{{Tool: "bash", Pattern: "rm **"}},
		AutoApproveTools: []string{"read_file"},
	}
	engine := permission.NewEngine(BuildRuleSet(pf))

	if got := engine.Evaluate("bash", "rm -rf build"); got != permission.DecisionDeny {
		t.Fatalf("deny entry should deny, got %v", got)
	}
	if got := engine.Evaluate("bash", "git status"); got != permission.DecisionAllow {
		t.Fatalf("grant entry should allow, got %v", got)
	}
	if got := engine.Evaluate("read_file", "anything"); got != permission.DecisionAllow {
		t.Fatalf("auto-approve tool should allow, got %v", got)
	}
	if got := engine.Evaluate("bash", "shutdown now"); got != permission.DecisionAsk {
		t.Fatalf("unmatched call should ask, got %v", got)
	}
}
