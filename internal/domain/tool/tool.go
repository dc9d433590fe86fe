// Package tool defines the tool contract, the concurrent-safe dynamic
// registry, and the built-in tools (bash, read_file, glob, task).
// Whether a tool may run is the permission package's concern; this
// package only knows what a tool is and how to dispatch it.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Def describes a tool to the LLM: its name, description, and the JSON
// Schema its arguments must satisfy.
type Def struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Result is what a tool returns to the agent loop.
type Result struct {
	Output  string
	IsError bool
	// InvolvedPaths lists filesystem paths this call read or wrote, so
	// the tool result cache can invalidate entries that depended on a
	// path some later write touches.
	InvolvedPaths []string
}

// Tool is the executable behind a Def.
type Tool interface {
	Def() Def
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// Registry is the read side other components depend on: list tool
// definitions, look one up, validate arguments against its schema.
type Registry interface {
	List() []Def
	Get(name string) (Tool, bool)
	Validate(name string, args json.RawMessage) error
}

// DynamicToolRegistry is a concurrent-safe Registry that additionally
// supports runtime registration and removal, for MCP-discovered tools
// whose availability changes as servers connect and disconnect.
type DynamicToolRegistry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	compiled map[string]*jsonschema.Schema
}

func NewDynamicToolRegistry() *DynamicToolRegistry {
	return &DynamicToolRegistry{
		tools:    make(map[string]Tool),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register adds or replaces a tool, compiling its schema eagerly so a
// malformed schema fails at registration time rather than on first use.
func (r *DynamicToolRegistry) Register(t Tool) error {
	def := t.Def()
	if def.Name == "" {
		return fmt.Errorf("tool definition has empty name")
	}

	var compiled *jsonschema.Schema
	if def.Schema != nil {
		raw, err := json.Marshal(def.Schema)
		if err != nil {
			return fmt.Errorf("marshal schema for %s: %w", def.Name, err)
		}
		compiled, err = jsonschema.CompileString(def.Name+".schema.json", string(raw))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", def.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = t
	if compiled != nil {
		r.compiled[def.Name] = compiled
	} else {
		delete(r.compiled, def.Name)
	}
	return nil
}

// Unregister removes a tool (used when an MCP server disconnects).
func (r *DynamicToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.compiled, name)
}

func (r *DynamicToolRegistry) List() []Def {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Def, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Def())
	}
	return defs
}

func (r *DynamicToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Validate checks args against the tool's compiled schema, if any.
// Tools with no schema accept any arguments.
func (r *DynamicToolRegistry) Validate(name string, args json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.compiled[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("tool %s: arguments are not valid JSON: %w", name, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("tool %s: arguments do not satisfy schema: %w", name, err)
	}
	return nil
}
