// Copyright (c) Microsoft. All rights reserved.

package offline_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/offline"
	"github.com/agentplayground/agentkit/tools"
)

func library(t *testing.T) *tools.Library {
	t.Helper()
	lib, err := tools.New(tools.WithFileRoot(t.TempDir()))
	if err != nil {
		t.Fatalf("tools.New: %v", err)
	}
	return lib
}

func registry(t *testing.T, names ...string) *ak.Registry {
	t.Helper()
	reg, err := library(t).Registry(names...)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	return reg
}

func TestScripted_Replay(t *testing.T) {
	backend := offline.NewScripted(
		offline.Call("word_count", `{"text":"one two three"}`),
		offline.Reply("Three words."),
	)
	d := ak.NewDispatcher(backend, registry(t, "word_count"))
	s := ak.NewSession()

	res, err := d.Run(context.Background(), s, "count")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Answer != "Three words." || res.ToolCalls != 1 {
		t.Errorf("result = %+v", res)
	}
	if backend.Remaining() != 0 {
		t.Errorf("remaining = %d", backend.Remaining())
	}
	reqs := backend.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d", len(reqs))
	}
	last := reqs[1].Conversation[len(reqs[1].Conversation)-1]
	if last.Kind != ak.TurnToolResult || last.Result.Content() != "3" {
		t.Errorf("second request ends with %+v", last)
	}
}

func TestScripted_Exhausted(t *testing.T) {
	backend := offline.NewScripted()
	_, err := backend.Complete(context.Background(), &ak.ModelRequest{})
	if !errors.Is(err, ak.ErrBackendUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestScripted_FailAndFunc(t *testing.T) {
	boom := errors.New("boom")
	backend := offline.NewScripted(
		offline.Fail(boom),
		offline.Step{Func: func(_ context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
			return &ak.ModelResponse{Content: req.Instructions}, nil
		}},
	)
	if _, err := backend.Complete(context.Background(), &ak.ModelRequest{}); !errors.Is(err, boom) {
		t.Errorf("first step err = %v", err)
	}
	resp, err := backend.Complete(context.Background(), &ak.ModelRequest{Instructions: "echo"})
	if err != nil || resp.Content != "echo" {
		t.Errorf("second step = %+v, %v", resp, err)
	}
}

func TestCall_PanicsOnOddArguments(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	offline.Call("word_count")
}

func TestRules_Routing(t *testing.T) {
	lib := library(t)
	reg, err := lib.Registry(lib.Names()...)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	specs := reg.Snapshot()

	tests := []struct {
		prompt string
		tools  []string
	}{
		{"What is 15 * 23 + 7?", []string{"calculator"}},
		{"What's the square root of 144?", []string{"advanced_math"}},
		{"What's the weather in Paris and Tokyo?", []string{"get_weather", "get_weather"}},
		{`Count words in "the quick brown fox"`, []string{"word_count"}},
		{`What is the sentiment of "I love this great day"?`, []string{"analyze_sentiment"}},
		{"Give me the average of 3, 4 and 8", []string{"summary_stats"}},
		{`Generate a hash of "hello"`, []string{"generate_hashes"}},
		{"Generate a 24 character password", []string{"generate_password"}},
		{"Search for golang generics", []string{"web_search"}},
		{"Find files matching *.go", []string{"search_files"}},
		{"Read file notes.txt", []string{"read_file"}},
		{"List files in the directory", []string{"list_files"}},
		{"What time is it?", []string{"current_time"}},
	}
	r := offline.NewRules()
	for _, tc := range tests {
		t.Run(tc.prompt, func(t *testing.T) {
			resp, err := r.Complete(context.Background(), &ak.ModelRequest{
				Conversation: []ak.Turn{ak.UserTurn(tc.prompt)},
				Tools:        specs,
			})
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if len(resp.ToolCalls) != len(tc.tools) {
				t.Fatalf("calls = %+v", resp.ToolCalls)
			}
			for i, c := range resp.ToolCalls {
				if c.Name != tc.tools[i] || !json.Valid(c.Arguments) || c.ID == "" {
					t.Errorf("call %d = %s %s", i, c.Name, c.Arguments)
				}
			}
		})
	}
}

func TestRules_OnlyOfferedTools(t *testing.T) {
	r := offline.NewRules()
	resp, err := r.Complete(context.Background(), &ak.ModelRequest{
		Conversation: []ak.Turn{ak.UserTurn("What is 2 + 2?")},
		Tools:        registry(t, "word_count").Snapshot(),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !resp.Final() {
		t.Errorf("requested %+v without an offered calculator", resp.ToolCalls)
	}
}

func TestRules_ToolChoiceNone(t *testing.T) {
	r := offline.NewRules()
	resp, err := r.Complete(context.Background(), &ak.ModelRequest{
		Conversation: []ak.Turn{ak.UserTurn("What is 2 + 2?")},
		Tools:        registry(t, "calculator").Snapshot(),
		Options:      &ak.ModelOptions{ToolChoice: ak.ToolChoiceNone},
	})
	if err != nil || !resp.Final() {
		t.Errorf("resp = %+v, err = %v", resp, err)
	}
}

func TestRules_EndToEnd(t *testing.T) {
	d := ak.NewDispatcher(offline.NewRules(), registry(t, "calculator", "get_weather"))
	s := ak.NewSession()

	res, err := d.Run(context.Background(), s, "Please calculate 6 * 7")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ToolCalls != 1 || !strings.Contains(res.Answer, "42") {
		t.Errorf("result = %+v", res)
	}

	res, err = d.Run(context.Background(), s, "Weather for Oslo, Lima")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ToolCalls != 2 || !strings.Contains(res.Answer, "get_weather") {
		t.Errorf("result = %+v", res)
	}
}

func TestRules_SummarizesFailures(t *testing.T) {
	d := ak.NewDispatcher(offline.NewRules(), registry(t, "calculator"))
	res, err := d.Run(context.Background(), ak.NewSession(), "compute 1 / 0")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Answer, "could not complete") || !strings.Contains(res.Answer, string(ak.KindToolExecution)) {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestRules_Delegation(t *testing.T) {
	specialist := ak.NewToolBuilder("research_assistant").
		Describe("Researches topics on the web and summarizes findings").
		Param(ak.Param{Name: "task", Type: ak.TypeString, Required: true}).
		Func(func(_ context.Context, args ak.Args) (any, error) { return "done: " + args.String("task"), nil }).
		MustBuild()
	reg, err := ak.NewRegistry(specialist)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	d := ak.NewDispatcher(offline.NewRules(), reg)

	res, err := d.Run(context.Background(), ak.NewSession(), "Summarize recent findings about topics in astronomy")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ToolCalls != 1 || !strings.Contains(res.Answer, "done: Summarize") {
		t.Errorf("result = %+v", res)
	}
}

func TestRules_Chat(t *testing.T) {
	r := offline.NewRules()
	tests := map[string]string{
		"hello there":       "Hello",
		"what can you do?":  "calculator",
		"the sky is purple": "You said",
	}
	for prompt, want := range tests {
		resp, err := r.Complete(context.Background(), &ak.ModelRequest{
			Conversation: []ak.Turn{ak.UserTurn(prompt)},
			Tools:        registry(t, "calculator").Snapshot(),
		})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if !strings.Contains(resp.Content, want) {
			t.Errorf("%q -> %q, want %q", prompt, resp.Content, want)
		}
	}
}

func TestRules_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := offline.NewRules().Complete(ctx, &ak.ModelRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
