package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// GlobTool lists files matching a shell-style glob pattern, rooted at
// an optional base directory.
type GlobTool struct {
	baseDir string
}

func NewGlobTool(baseDir string) *GlobTool {
	return &GlobTool{baseDir: baseDir}
}

type globArgs struct {
	Pattern string `json:"pattern"`
}

func (t *GlobTool) Def() Def {
	return Def{
		Name:        "glob",
		Description: "List files matching a glob pattern relative to the working directory.",
		Schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"pattern": map[string]any{"type": "string"}},
			"required":             []any{"pattern"},
			"additionalProperties": false,
		},
	}
}

func (t *GlobTool) Execute(_ context.Context, rawArgs json.RawMessage) (Result, error) {
	var args globArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, fmt.Errorf("glob: invalid arguments: %w", err)
	}

	pattern := args.Pattern
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(t.baseDir, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return Result{Output: err.Error(), IsError: true}, nil
	}
	sort.Strings(matches)
	return Result{Output: strings.Join(matches, "\n"), InvolvedPaths: matches}, nil
}
