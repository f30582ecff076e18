// Copyright (c) Microsoft. All rights reserved.

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	ak "github.com/agentplayground/agentkit/agentkit"
)

type fakeGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    *genai.GenerativeModel
	contents []*genai.Content
}

func (f *fakeGenerator) generate(_ context.Context, model *genai.GenerativeModel, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	return f.resp, f.err
}

func newTestClient(t *testing.T, gen generator) *Client {
	t.Helper()
	sdk, err := genai.NewClient(context.Background(), option.WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { sdk.Close() })
	return &Client{sdk: sdk, model: "gemini-test", gen: gen}
}

func TestComplete_Text(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: roleModel, Parts: []genai.Part{genai.Text("Hello"), genai.Text(" there")}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 4, CandidatesTokenCount: 2, TotalTokenCount: 6},
	}}
	c := newTestClient(t, gen)

	resp, err := c.Complete(context.Background(), &ak.ModelRequest{
		Instructions: "Be brief.",
		Conversation: []ak.Turn{ak.UserTurn("hi")},
		Options:      &ak.ModelOptions{Temperature: ak.Float(0.25), MaxTokens: ak.Int(32)},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Hello there" || !resp.Final() || resp.ModelID != "gemini-test" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage.TotalTokens != 6 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if gen.model.SystemInstruction == nil {
		t.Error("system instruction not set")
	}
	if gen.model.Temperature == nil || *gen.model.Temperature != 0.25 {
		t.Errorf("temperature = %v", gen.model.Temperature)
	}
	if gen.model.MaxOutputTokens == nil || *gen.model.MaxOutputTokens != 32 {
		t.Errorf("max output tokens = %v", gen.model.MaxOutputTokens)
	}
}

func TestComplete_FunctionCalls(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: roleModel, Parts: []genai.Part{
				genai.FunctionCall{Name: "get_weather", Args: map[string]any{"location": "Rome"}},
				genai.FunctionCall{Name: "current_time"},
			}},
		}},
	}}
	c := newTestClient(t, gen)

	resp, err := c.Complete(context.Background(), &ak.ModelRequest{
		Conversation: []ak.Turn{ak.UserTurn("weather?")},
		Tools: []ak.ToolSpec{{
			Name:        "get_weather",
			Description: "Weather lookup",
			Schema:      json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"},"units":{"type":"string","enum":["c","f"]},"days":{"type":"array","items":{"type":"integer"}}},"required":["location"]}`),
		}},
		Options: &ak.ModelOptions{ToolChoice: ak.ToolChoiceRequired},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("calls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].ID == "" || resp.ToolCalls[0].ID == resp.ToolCalls[1].ID {
		t.Errorf("call IDs not unique: %+v", resp.ToolCalls)
	}
	if string(resp.ToolCalls[1].Arguments) != "{}" {
		t.Errorf("nil args = %s", resp.ToolCalls[1].Arguments)
	}

	decl := gen.model.Tools[0].FunctionDeclarations[0]
	params := decl.Parameters
	if params.Type != genai.TypeObject || params.Properties["location"].Type != genai.TypeString {
		t.Errorf("parameters = %+v", params)
	}
	if got := params.Properties["units"].Enum; len(got) != 2 {
		t.Errorf("enum = %v", got)
	}
	if params.Properties["days"].Items.Type != genai.TypeInteger {
		t.Errorf("items = %+v", params.Properties["days"].Items)
	}
	if gen.model.ToolConfig.FunctionCallingConfig.Mode != genai.FunctionCallingAny {
		t.Errorf("mode = %v", gen.model.ToolConfig.FunctionCallingConfig.Mode)
	}
}

func TestConvertTurns(t *testing.T) {
	contents := convertTurns([]ak.Turn{
		ak.AgentTurn("dangling reply"),
		ak.UserTurn("two tools"),
		ak.CallTurn(ak.ToolCall{ID: "1", Name: "a", Arguments: json.RawMessage(`{"n":1}`)}),
		ak.CallTurn(ak.ToolCall{ID: "2", Name: "b"}),
		ak.ResultTurn(ak.ToolResult{CallID: "1", Name: "a", Success: true, Payload: json.RawMessage(`{"v":2}`)}),
		ak.ResultTurn(ak.ToolResult{CallID: "2", Name: "b", Error: ak.KindUnknownTool, Message: "no such tool"}),
	})

	if len(contents) != 3 {
		t.Fatalf("contents = %d", len(contents))
	}
	roles := []string{roleUser, roleModel, roleUser}
	for i, c := range contents {
		if c.Role != roles[i] {
			t.Errorf("content %d role = %q", i, c.Role)
		}
	}
	if len(contents[1].Parts) != 2 || len(contents[2].Parts) != 2 {
		t.Fatalf("parts = %d, %d", len(contents[1].Parts), len(contents[2].Parts))
	}
	ok := contents[2].Parts[0].(genai.FunctionResponse)
	if ok.Name != "a" || ok.Response["result"].(map[string]any)["v"] != float64(2) {
		t.Errorf("success response = %+v", ok)
	}
	failed := contents[2].Parts[1].(genai.FunctionResponse)
	if failed.Response["error"] != "error: UnknownToolError: no such tool" {
		t.Errorf("failed response = %+v", failed)
	}
}

func TestConvertTurns_WindowStartsOnToolCall(t *testing.T) {
	s := ak.NewSession(ak.WithWindow(4))
	for _, turn := range []ak.Turn{
		ak.UserTurn("count a b"),
		ak.CallTurn(ak.ToolCall{ID: "c1", Name: "word_count", Arguments: json.RawMessage(`{"text":"a b"}`)}),
		ak.ResultTurn(ak.ToolResult{CallID: "c1", Name: "word_count", Success: true, Payload: json.RawMessage(`2`)}),
		ak.AgentTurn("2 words"),
		ak.UserTurn("and now?"),
	} {
		if _, err := s.Append(turn); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	contents := convertTurns(s.ActiveContext())
	if len(contents) != 1 || contents[0].Role != roleUser {
		t.Fatalf("contents = %+v", contents)
	}
	if text, ok := contents[0].Parts[0].(genai.Text); !ok || text != "and now?" {
		t.Errorf("first part = %#v", contents[0].Parts[0])
	}

	// Inside a tool loop the surviving call keeps its response.
	contents = convertTurns(s.FullTranscript()[1:3])
	if len(contents) != 3 || contents[0].Role != roleUser || contents[1].Role != roleModel {
		t.Fatalf("loop contents = %+v", contents)
	}
	if _, ok := contents[1].Parts[0].(genai.FunctionCall); !ok {
		t.Errorf("model part = %#v", contents[1].Parts[0])
	}
	if _, ok := contents[2].Parts[0].(genai.FunctionResponse); !ok {
		t.Errorf("user part = %#v", contents[2].Parts[0])
	}
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"auth", &googleapi.Error{Code: 403, Message: "API key not valid"}, ak.ErrAuth},
		{"blocked", &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}}, ak.ErrContentFilter},
		{"network", errors.New("dial tcp: refused"), ak.ErrBackendUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, &fakeGenerator{err: tc.err})
			_, err := c.Complete(context.Background(), &ak.ModelRequest{Conversation: []ak.Turn{ak.UserTurn("hi")}})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestComplete_EmptyConversation(t *testing.T) {
	c := newTestClient(t, &fakeGenerator{})
	_, err := c.Complete(context.Background(), &ak.ModelRequest{})
	if !errors.Is(err, ak.ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestNew_MissingKey(t *testing.T) {
	if _, err := New(context.Background(), ""); !errors.Is(err, ak.ErrAuth) {
		t.Fatalf("err = %v", err)
	}
}
