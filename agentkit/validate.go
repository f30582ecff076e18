// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
)

// decodeArgs parses a raw argument bundle. An empty bundle is an empty object.
func decodeArgs(raw json.RawMessage) (Args, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Args{}, nil
	}
	// Some backends double-encode the arguments as a JSON string.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("malformed arguments: %w", err)
		}
		return decodeArgs(json.RawMessage(inner))
	}
	var args Args
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// validateArgs checks args against the tool's params: required fields,
// primitive types, enums, and no undeclared names. Explicit nulls on optional
// params are dropped.
func validateArgs(t *Tool, args Args) error {
	var undeclared []string
	for name := range args {
		if _, ok := t.param(name); !ok {
			undeclared = append(undeclared, name)
		}
	}
	if len(undeclared) > 0 {
		sort.Strings(undeclared)
		return fmt.Errorf("undeclared parameter(s): %v", undeclared)
	}

	for _, p := range t.params {
		value, present := args[p.Name]
		if present && value == nil {
			delete(args, p.Name)
			present = false
		}
		if !present {
			if p.Required {
				return fmt.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}
		if err := validateType(value, p.Type); err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		if p.Type == TypeArray && p.Items != "" {
			for i, item := range value.([]any) {
				if err := validateType(item, p.Items); err != nil {
					return fmt.Errorf("parameter %q[%d]: %w", p.Name, i, err)
				}
			}
		}
		if len(p.Enum) > 0 {
			s, _ := value.(string)
			if !slices.Contains(p.Enum, s) {
				return fmt.Errorf("parameter %q: %v is not one of %v", p.Name, value, p.Enum)
			}
		}
	}
	return nil
}

func validateType(value any, expected ParamType) error {
	switch expected {
	case TypeString:
		if _, ok := value.(string); ok {
			return nil
		}
	case TypeNumber:
		if isNumber(value) {
			return nil
		}
	case TypeInteger:
		if isInteger(value) {
			return nil
		}
	case TypeBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	case TypeObject:
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case TypeArray:
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported type %q", expected)
	}
	return fmt.Errorf("expected %s but got %s", expected, jsonKind(value))
}

func jsonKind(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", value)
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64, int, int64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int64:
		return true
	case float64:
		return math.Trunc(v) == v && !math.IsInf(v, 0)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
