// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// schemaForParams renders declared params as a JSON Schema object.
func schemaForParams(params []Param) json.RawMessage {
	properties := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Type == TypeArray {
			items := p.Items
			if items == "" {
				items = TypeString
			}
			prop["items"] = map[string]any{"type": string(items)}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
	b, _ := json.Marshal(schema)
	return b
}

// paramsFromStruct uses reflection to derive params from a struct's fields.
func paramsFromStruct(v any) ([]Param, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("argument type must be a struct")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("argument type %s must be a struct", t)
	}

	var params []Param
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := field.Name
		if jsonTag != "" {
			parts := strings.SplitN(jsonTag, ",", 2)
			if parts[0] != "" {
				name = parts[0]
			}
		}

		p := Param{Name: name, Type: typeOf(field.Type)}
		if p.Type == TypeArray {
			p.Items = typeOf(elem(field.Type))
		}

		for _, part := range strings.Split(field.Tag.Get("jsonschema"), ",") {
			kv := strings.SplitN(part, "=", 2)
			key := strings.TrimSpace(kv[0])
			val := ""
			if len(kv) == 2 {
				val = strings.TrimSpace(kv[1])
			}
			switch key {
			case "description":
				p.Description = val
			case "required":
				p.Required = true
			case "enum":
				for _, ev := range strings.Split(val, "|") {
					p.Enum = append(p.Enum, strings.TrimSpace(ev))
				}
			}
		}
		params = append(params, p)
	}
	return params, nil
}

func elem(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		return t.Elem()
	}
	return t
}

func typeOf(t reflect.Type) ParamType {
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Ptr:
		return typeOf(t.Elem())
	case reflect.Struct, reflect.Map, reflect.Interface:
		return TypeObject
	default:
		return TypeString
	}
}
