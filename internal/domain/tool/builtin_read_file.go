package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	ctxmgr "github.com/agentcore/agentcore/internal/domain/context"
)

// ReadFileTool reads a file, compacting its content when it exceeds the
// context manager's threshold, so a single large file read can't blow
// the conversation's token budget on its own.
type ReadFileTool struct {
	compactor *ctxmgr.Compactor
}

func NewReadFileTool(compactor *ctxmgr.Compactor) *ReadFileTool {
	return &ReadFileTool{compactor: compactor}
}

type readFileArgs struct {
	Path string `json:"path"`
}

func (t *ReadFileTool) Def() Def {
	return Def{
		Name:        "read_file",
		Description: "Read the contents of a file at the given path.",
		Schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"path": map[string]any{"type": "string"}},
			"required":             []any{"path"},
			"additionalProperties": false,
		},
	}
}

func (t *ReadFileTool) Execute(_ context.Context, rawArgs json.RawMessage) (Result, error) {
	var args readFileArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{}, fmt.Errorf("read_file: invalid arguments: %w", err)
	}

	data, err := os.ReadFile(args.Path)
	if err != nil {
		return Result{Output: err.Error(), IsError: true}, nil
	}

	text, _ := t.compactor.CompactFile(args.Path, string(data))
	return Result{Output: text, InvolvedPaths: []string{args.Path}}, nil
}
