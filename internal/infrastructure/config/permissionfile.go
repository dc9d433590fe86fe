package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/agentcore/agentcore/internal/domain/permission"
)

// PermissionFile is the on-disk permission settings shape. Keys are
// camelCase. A global file under the config root is merged with an
// optional per-project file (see MergePermissionFiles). JSON is
// the canonical format; a .yaml/.yml path parses as YAML with the same
// keys.
type PermissionFile struct {
	Grants           []GrantEntry `json:"grants" yaml:"grants"`
	Denies           []DenyEntry  `json:"denies" yaml:"denies"`
	AutoApprove      bool         `json:"autoApprove" yaml:"autoApprove"`
	AutoApproveTools []string     `json:"autoApproveTools" yaml:"autoApproveTools"`
}

// GrantEntry is one standing allow. ActionType is one of execute,
// fileWrite, fileDelete, fileRead, network, or custom:<name>; Pattern
// is a glob over the action's argument (command line, path, or URL) and
// defaults to match-anything.
type GrantEntry struct {
	Tool       string `json:"tool" yaml:"tool"`
	ActionType string `json:"actionType" yaml:"actionType"`
	Pattern    string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// DenyEntry is one standing deny; deny wins over every grant.
type DenyEntry struct {
	Tool    string `json:"tool" yaml:"tool"`
	Pattern string `json:"pattern" yaml:"pattern"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// LoadPermissionFile reads one settings file. A missing file yields an
// empty settings object, not an error.
func LoadPermissionFile(path string) (*PermissionFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &PermissionFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read permission file %s: %w", path, err)
	}
	var pf PermissionFile
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("parse permission file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("parse permission file %s: %w", path, err)
		}
	}
	return &pf, nil
}

// SavePermissionFile writes settings back in the same shape Load reads.
func SavePermissionFile(path string, pf *PermissionFile) error {
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// MergePermissionFiles layers project over global: list entries
// concatenate (project entries first so they match first), and
// autoApprove is on when either file turns it on; a project file cannot
// switch off a global autoApprove.
func MergePermissionFiles(global, project *PermissionFile) *PermissionFile {
	if project == nil {
		return global
	}
	if global == nil {
		return project
	}
	merged := &PermissionFile{
		Grants:           append(append([]GrantEntry{}, project.Grants...), global.Grants...),
		Denies:           append(append([]DenyEntry{}, project.Denies...), global.Denies...),
		AutoApprove:      global.AutoApprove || project.AutoApprove,
		AutoApproveTools: append(append([]string{}, project.AutoApproveTools...), global.AutoApproveTools...),
	}
	return merged
}

// BuildRuleSet lowers a merged settings file into the permission
// engine's rule form: denies become deny rules, grants and
// auto-approve entries become allow rules. The global autoApprove flag
// becomes a match-everything allow, which the precedence order keeps
// below any deny.
func BuildRuleSet(pf *PermissionFile) permission.RuleSet {
	var rs permission.RuleSet
	for _, d := range pf.Denies {
		rs.Deny = append(rs.Deny, permission.Rule{ToolName: d.Tool, ArgPattern: d.Pattern})
	}
	for _, g := range pf.Grants {
		rs.Allow = append(rs.Allow, permission.Rule{ToolName: g.Tool, ArgPattern: g.Pattern})
	}
	for _, t := range pf.AutoApproveTools {
		rs.Allow = append(rs.Allow, permission.Rule{ToolName: t})
	}
	if pf.AutoApprove {
		rs.Allow = append(rs.Allow, permission.Rule{ToolName: "**"})
	}
	return rs
}
