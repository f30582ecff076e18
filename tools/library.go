// Copyright (c) Microsoft. All rights reserved.

// Package tools is the built-in tool catalogue: math, text, data, code,
// security, sandboxed file access and mock web lookups.
//
// Tools are grouped into a [Library]; a profile selects the subset it needs
// with [Library.Registry].
package tools

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// Library holds one instance of every built-in tool.
type Library struct {
	root  string
	now   func() time.Time
	order []string
	tools map[string]*ak.Tool
}

// Option configures a [Library].
type Option func(*Library)

// WithFileRoot confines the file tools to dir. The default is the working
// directory.
func WithFileRoot(dir string) Option {
	return func(l *Library) { l.root = dir }
}

// WithClock overrides the time source used by current_time.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// New builds the catalogue.
func New(opts ...Option) (*Library, error) {
	l := &Library{root: ".", now: time.Now, tools: make(map[string]*ak.Tool)}
	for _, o := range opts {
		o(l)
	}
	root, err := filepath.Abs(l.root)
	if err != nil {
		return nil, fmt.Errorf("tools: file root: %w", err)
	}
	l.root = root

	builders := []func() (*ak.Tool, error){
		calculatorTool,
		advancedMathTool,
		wordCountTool,
		analyzeTextTool,
		extractKeywordsTool,
		analyzeSentimentTool,
		summaryStatsTool,
		processCSVTool,
		formatDataTool,
		analyzeCodeTool,
		generateHashesTool,
		generatePasswordTool,
		l.listFilesTool,
		l.readFileTool,
		l.fileInfoTool,
		l.searchFilesTool,
		weatherTool,
		webSearchTool,
		l.currentTimeTool,
	}
	for _, build := range builders {
		t, err := build()
		if err != nil {
			return nil, err
		}
		l.order = append(l.order, t.Name())
		l.tools[t.Name()] = t
	}
	return l, nil
}

// Root returns the absolute directory the file tools are confined to.
func (l *Library) Root() string { return l.root }

// Get returns the named tool.
func (l *Library) Get(name string) (*ak.Tool, bool) {
	t, ok := l.tools[name]
	return t, ok
}

// All returns every tool in catalogue order.
func (l *Library) All() []*ak.Tool {
	out := make([]*ak.Tool, len(l.order))
	for i, name := range l.order {
		out[i] = l.tools[name]
	}
	return out
}

// Names returns the tool names, sorted.
func (l *Library) Names() []string {
	names := append([]string(nil), l.order...)
	sort.Strings(names)
	return names
}

// Registry builds a registry holding the named tools, in the order given.
// With no names it holds the whole catalogue.
func (l *Library) Registry(names ...string) (*ak.Registry, error) {
	if len(names) == 0 {
		return ak.NewRegistry(l.All()...)
	}
	selected := make([]*ak.Tool, 0, len(names))
	for _, name := range names {
		t, ok := l.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not in the catalogue", ak.ErrUnknownTool, name)
		}
		selected = append(selected, t)
	}
	return ak.NewRegistry(selected...)
}

// fail reports a tool failure in words meant for the model.
func fail(format string, args ...any) error {
	return &ak.ToolError{Message: fmt.Sprintf(format, args...), Err: ak.ErrToolExecution}
}
