// Copyright (c) Microsoft. All rights reserved.

package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	ak "github.com/agentplayground/agentkit/agentkit"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// configure applies instructions, tools and sampling options to model.
func configure(model *genai.GenerativeModel, req *ak.ModelRequest) error {
	if req.Instructions != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Instructions)}}
	}

	choice := ak.ToolChoiceAuto
	if opts := req.Options; opts != nil {
		if opts.Temperature != nil {
			model.SetTemperature(float32(*opts.Temperature))
		}
		if opts.TopP != nil {
			model.SetTopP(float32(*opts.TopP))
		}
		if opts.MaxTokens != nil {
			model.SetMaxOutputTokens(int32(*opts.MaxTokens))
		}
		model.StopSequences = opts.Stop
		if opts.ToolChoice != "" {
			choice = opts.ToolChoice
		}
	}

	if len(req.Tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
	for _, spec := range req.Tools {
		schema, err := convertSchema(spec.Schema)
		if err != nil {
			return fmt.Errorf("%w: schema for %q: %v", ak.ErrInvalidRequest, spec.Name, err)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schema,
		})
	}
	model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

	fc := &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAuto}
	switch choice {
	case ak.ToolChoiceAuto:
	case ak.ToolChoiceNone:
		fc.Mode = genai.FunctionCallingNone
	case ak.ToolChoiceRequired:
		fc.Mode = genai.FunctionCallingAny
	default:
		fc.Mode = genai.FunctionCallingAny
		fc.AllowedFunctionNames = []string{string(choice)}
	}
	model.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: fc}
	return nil
}

// jsonSchema is the subset of JSON Schema that Gemini declarations accept.
type jsonSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Enum        []any                  `json:"enum"`
	Items       *jsonSchema            `json:"items"`
	Properties  map[string]*jsonSchema `json:"properties"`
	Required    []string               `json:"required"`
}

func convertSchema(raw json.RawMessage) (*genai.Schema, error) {
	if len(raw) == 0 {
		return &genai.Schema{Type: genai.TypeObject}, nil
	}
	var js jsonSchema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, err
	}
	return js.toGenai(), nil
}

func (js *jsonSchema) toGenai() *genai.Schema {
	s := &genai.Schema{
		Type:        schemaType(js.Type),
		Description: js.Description,
		Required:    js.Required,
	}
	for _, v := range js.Enum {
		s.Enum = append(s.Enum, fmt.Sprint(v))
	}
	if js.Items != nil {
		s.Items = js.Items.toGenai()
	}
	if len(js.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(js.Properties))
		for name, p := range js.Properties {
			s.Properties[name] = p.toGenai()
		}
	}
	return s
}

func schemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

// convertTurns maps the transcript onto Gemini contents. Adjacent parts of
// the same role share one content, and function responses travel as user
// content.
func convertTurns(turns []ak.Turn) []*genai.Content {
	var contents []*genai.Content
	add := func(role string, part genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{part}})
	}

	for _, t := range ak.UserAnchored(turns) {
		switch t.Kind {
		case ak.TurnUser:
			add(roleUser, genai.Text(t.Text))
		case ak.TurnAgent:
			if strings.TrimSpace(t.Text) != "" {
				add(roleModel, genai.Text(t.Text))
			}
		case ak.TurnToolCall:
			var args map[string]any
			if len(t.Call.Arguments) > 0 {
				_ = json.Unmarshal(t.Call.Arguments, &args)
			}
			add(roleModel, genai.FunctionCall{Name: t.Call.Name, Args: args})
		case ak.TurnToolResult:
			add(roleUser, genai.FunctionResponse{Name: t.Result.Name, Response: responseMap(t.Result)})
		}
	}
	return contents
}

func responseMap(r *ak.ToolResult) map[string]any {
	if !r.Success {
		return map[string]any{"error": r.Content()}
	}
	var v any
	if err := json.Unmarshal(r.Payload, &v); err != nil {
		v = string(r.Payload)
	}
	return map[string]any{"result": v}
}

func parseResponse(resp *genai.GenerateContentResponse) *ak.ModelResponse {
	out := &ak.ModelResponse{}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = ak.UsageDetails{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out
	}

	cand := resp.Candidates[0]
	out.FinishReason = cand.FinishReason.String()
	if cand.Content == nil {
		return out
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, functionCall(p))
		case *genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, functionCall(*p))
		}
	}
	out.Content = text.String()
	return out
}

// functionCall mints an ID for the call, as Gemini does not identify them.
func functionCall(fc genai.FunctionCall) ak.ToolCall {
	args, err := json.Marshal(fc.Args)
	if err != nil || fc.Args == nil {
		args = []byte("{}")
	}
	return ak.ToolCall{ID: ak.NewCallID(), Name: fc.Name, Arguments: args}
}
