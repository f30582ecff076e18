// Copyright (c) Microsoft. All rights reserved.

package agentkit_test

import (
	"testing"

	ak "github.com/agentplayground/agentkit/agentkit"
)

func TestPairedConversation(t *testing.T) {
	s := ak.NewSession()
	mustAppend(t, s, ak.UserTurn("go"))
	mustAppend(t, s, ak.CallTurn(toolCall("a", "t", `{}`)))
	mustAppend(t, s, ak.ResultTurn(ak.ToolResult{CallID: "a", Success: true}))
	mustAppend(t, s, ak.CallTurn(toolCall("b", "t", `{}`)))
	mustAppend(t, s, ak.ResultTurn(ak.ToolResult{CallID: "b", Success: true}))
	mustAppend(t, s, ak.AgentTurn("done"))

	// A window that starts on the first result orphans it.
	window := s.FullTranscript()[2:]
	got := ak.PairedConversation(window)
	if len(got) != 3 || got[0].Kind != ak.TurnToolCall || got[0].Call.ID != "b" {
		t.Errorf("paired = %+v", got)
	}
}

func TestUserAnchored(t *testing.T) {
	s := ak.NewSession(ak.WithWindow(4))
	mustAppend(t, s, ak.UserTurn("count a b"))
	mustAppend(t, s, ak.CallTurn(toolCall("c1", "word_count", `{"text":"a b"}`)))
	mustAppend(t, s, ak.ResultTurn(ak.ToolResult{CallID: "c1", Success: true}))
	mustAppend(t, s, ak.AgentTurn("2 words"))
	mustAppend(t, s, ak.UserTurn("thanks"))

	// The window opens on the call: the call and its result go together.
	got := ak.UserAnchored(s.ActiveContext())
	if len(got) != 1 || got[0].Kind != ak.TurnUser || got[0].Text != "thanks" {
		t.Errorf("anchored = %+v", got)
	}

	// A window inside a tool loop keeps its exchanges behind a note.
	loop := ak.NewSession(ak.WithWindow(3))
	mustAppend(t, loop, ak.UserTurn("go"))
	mustAppend(t, loop, ak.CallTurn(toolCall("a", "t", `{}`)))
	mustAppend(t, loop, ak.ResultTurn(ak.ToolResult{CallID: "a", Success: true}))
	mustAppend(t, loop, ak.CallTurn(toolCall("b", "t", `{}`)))
	mustAppend(t, loop, ak.ResultTurn(ak.ToolResult{CallID: "b", Success: true}))
	got = ak.UserAnchored(loop.ActiveContext())
	if len(got) != 3 || got[0].Kind != ak.TurnUser || !got[0].Synthetic || got[1].Call.ID != "b" {
		t.Errorf("anchored loop = %+v", got)
	}

	if got := ak.UserAnchored(nil); len(got) != 0 {
		t.Errorf("empty = %+v", got)
	}
}

func TestMergeModelOptions(t *testing.T) {
	base := &ak.ModelOptions{Model: "base", Temperature: ak.Float(0.2), Extra: map[string]any{"a": 1}}
	over := &ak.ModelOptions{MaxTokens: ak.Int(64), Extra: map[string]any{"b": 2}}

	got := ak.MergeModelOptions(base, over)
	if got.Model != "base" || *got.Temperature != 0.2 || *got.MaxTokens != 64 {
		t.Errorf("merged = %+v", got)
	}
	if got.Extra["a"] != 1 || got.Extra["b"] != 2 {
		t.Errorf("extra = %v", got.Extra)
	}
	if _, ok := base.Extra["b"]; ok {
		t.Error("base was mutated")
	}
	if ak.MergeModelOptions(nil, nil) == nil {
		t.Error("nil merge should return empty options")
	}
}
