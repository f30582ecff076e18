// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// maxSuggestions bounds the "did you mean" list on unknown tools.
const maxSuggestions = 3

// Registry maps tool names to tools. It is safe for concurrent use and is
// typically shared read-only by every session of a process.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]*Tool
}

// NewRegistry creates a registry and registers the given tools in order.
func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. It fails with [ErrDuplicateTool] when the name is
// already taken.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.fn == nil {
		return fmt.Errorf("%w: tool is nil or unbuilt", ErrInvalidTool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tools == nil {
		r.tools = make(map[string]*Tool)
	}
	if _, exists := r.tools[t.name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, t.name)
	}
	r.tools[t.name] = t
	r.order = append(r.order, t.name)
	return nil
}

// Resolve looks up a tool by name. It fails with [ErrUnknownTool], naming
// close matches when there are any.
func (r *Registry) Resolve(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tools[name]; ok {
		return t, nil
	}
	if hints := r.suggest(name); len(hints) > 0 {
		return nil, fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownTool, name, strings.Join(hints, ", "))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

func (r *Registry) suggest(name string) []string {
	if name == "" {
		return nil
	}
	matches := fuzzy.Find(name, r.order)
	var out []string
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// Snapshot returns value copies of every tool spec in registration order.
// Changing the result never affects the registry.
func (r *Registry) Snapshot() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec())
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
