// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

func (t ParamType) valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return true
	}
	return false
}

// Param declares one named input of a tool.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	// Items is the element type when Type is TypeArray.
	Items ParamType `json:"items,omitempty"`
}

func (p Param) clone() Param {
	if p.Enum != nil {
		p.Enum = append([]string(nil), p.Enum...)
	}
	return p
}

// Args is a validated argument bundle passed to a [ToolFunc].
type Args map[string]any

// String returns the named argument as a string, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the named argument as an int, or def when absent.
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// Float returns the named argument as a float64, or def when absent.
func (a Args) Float(name string, def float64) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the named argument as a bool.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Has reports whether the argument was supplied.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// ToolFunc is the callable bound to a tool. It receives arguments that have
// already been validated against the declared params.
type ToolFunc func(ctx context.Context, args Args) (any, error)

// Tool is a named, schema-described callable the model may request.
// Tools are immutable once built; construct them with [NewToolBuilder] or
// [NewTypedTool].
type Tool struct {
	name        string
	description string
	params      []Param
	fn          ToolFunc
	schema      json.RawMessage
}

// Name returns the function name as exposed to the model.
func (t *Tool) Name() string { return t.name }

// Description returns the natural-language description used for tool selection.
func (t *Tool) Description() string { return t.description }

// Params returns a copy of the declared parameters in declaration order.
func (t *Tool) Params() []Param {
	out := make([]Param, len(t.params))
	for i, p := range t.params {
		out[i] = p.clone()
	}
	return out
}

// Schema returns the JSON Schema object describing the tool's input.
func (t *Tool) Schema() json.RawMessage {
	return append(json.RawMessage(nil), t.schema...)
}

// Call runs the bound function directly, skipping validation. Most callers
// want [Invoker.Invoke] instead.
func (t *Tool) Call(ctx context.Context, args Args) (any, error) {
	return t.fn(ctx, args)
}

// Spec returns a detached value copy suitable for a backend request.
func (t *Tool) Spec() ToolSpec {
	return ToolSpec{
		Name:        t.name,
		Description: t.description,
		Params:      t.Params(),
		Schema:      t.Schema(),
	}
}

func (t *Tool) param(name string) (Param, bool) {
	for _, p := range t.params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ToolSpec is the read-only view of a tool sent to a model backend.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Params      []Param         `json:"params"`
	Schema      json.RawMessage `json:"schema"`
}

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ToolBuilder assembles a [Tool] step by step.
//
//	tool, err := agentkit.NewToolBuilder("word_count").
//	    Describe("Count the words in a text").
//	    Param(agentkit.Param{Name: "text", Type: agentkit.TypeString, Required: true}).
//	    Func(countWords).
//	    Build()
type ToolBuilder struct {
	t    Tool
	errs []error
}

// NewToolBuilder starts a builder for a tool with the given name.
func NewToolBuilder(name string) *ToolBuilder {
	return &ToolBuilder{t: Tool{name: name}}
}

// Describe sets the description.
func (b *ToolBuilder) Describe(description string) *ToolBuilder {
	b.t.description = description
	return b
}

// Param declares a parameter. Declaration order is preserved.
func (b *ToolBuilder) Param(p Param) *ToolBuilder {
	if p.Type == "" {
		p.Type = TypeString
	}
	b.t.params = append(b.t.params, p.clone())
	return b
}

// Func binds the callable.
func (b *ToolBuilder) Func(fn ToolFunc) *ToolBuilder {
	b.t.fn = fn
	return b
}

// Build validates the descriptor and returns the tool.
func (b *ToolBuilder) Build() (*Tool, error) {
	errs := append([]error(nil), b.errs...)
	if !toolNamePattern.MatchString(b.t.name) {
		errs = append(errs, fmt.Errorf("name %q must match %s", b.t.name, toolNamePattern))
	}
	if b.t.fn == nil {
		errs = append(errs, errors.New("no function bound"))
	}
	seen := make(map[string]bool, len(b.t.params))
	for _, p := range b.t.params {
		switch {
		case p.Name == "":
			errs = append(errs, errors.New("parameter with empty name"))
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("parameter %q declared twice", p.Name))
		case !p.Type.valid():
			errs = append(errs, fmt.Errorf("parameter %q has unknown type %q", p.Name, p.Type))
		}
		seen[p.Name] = true
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTool, b.t.name, errors.Join(errs...))
	}

	t := b.t
	t.params = append([]Param(nil), b.t.params...)
	t.schema = schemaForParams(t.params)
	return &t, nil
}

// MustBuild is like Build but panics on error. Use it for static tool tables.
func (b *ToolBuilder) MustBuild() *Tool {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

// NewTypedTool builds a tool whose params are derived from the struct type
// Args and whose validated arguments are decoded into it.
//
// The Args type should be a struct with json tags. Use the `jsonschema` struct
// tag for additional metadata:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" jsonschema:"description=City name,required"`
//	    Unit     string `json:"unit"     jsonschema:"description=Temperature unit,enum=celsius|fahrenheit"`
//	}
func NewTypedTool[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) (*Tool, error) {
	var zero T
	params, err := paramsFromStruct(zero)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTool, name, err)
	}

	b := NewToolBuilder(name).Describe(description)
	for _, p := range params {
		b.Param(p)
	}
	b.Func(func(ctx context.Context, args Args) (any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
		}
		var typed T
		if err := json.Unmarshal(raw, &typed); err != nil {
			return nil, &ToolError{
				ToolName: name,
				Message:  "invalid arguments: " + err.Error(),
				Err:      ErrInvalidArguments,
			}
		}
		return fn(ctx, typed)
	})
	return b.Build()
}

// MustTypedTool is like NewTypedTool but panics on error.
func MustTypedTool[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) *Tool {
	t, err := NewTypedTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}
