// Copyright (c) Microsoft. All rights reserved.

package agentkit_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ak "github.com/agentplayground/agentkit/agentkit"
)

func exportSession(t *testing.T) *ak.Session {
	t.Helper()
	s := ak.NewSession(ak.WithClock(fixedClock()))
	mustAppend(t, s, ak.UserTurn("count a b c"))
	mustAppend(t, s, ak.CallTurn(toolCall("c1", "word_count", `{"text":"a b c"}`)))
	mustAppend(t, s, ak.ResultTurn(ak.ToolResult{CallID: "c1", Success: true, Payload: []byte("3")}))
	mustAppend(t, s, ak.AgentTurn("There are 3 words."))
	return s
}

func TestExport_Records(t *testing.T) {
	recs := exportSession(t).Export()
	if len(recs) != 4 {
		t.Fatalf("got %d records", len(recs))
	}

	roles := []string{"user", "tool_call", "tool_result", "agent"}
	for i, rec := range recs {
		if rec.Sequence != i+1 {
			t.Errorf("record %d sequence = %d", i, rec.Sequence)
		}
		if rec.Role != roles[i] {
			t.Errorf("record %d role = %q, want %q", i, rec.Role, roles[i])
		}
		if rec.Timestamp.IsZero() {
			t.Errorf("record %d has no timestamp", i)
		}
	}
	if !strings.Contains(recs[1].Content, `"name":"word_count"`) {
		t.Errorf("tool call content = %s", recs[1].Content)
	}
	if !strings.Contains(recs[2].Content, `"payload":3`) {
		t.Errorf("tool result content = %s", recs[2].Content)
	}
	if recs[3].Content != "There are 3 words." {
		t.Errorf("agent content = %q", recs[3].Content)
	}
}

func TestExport_JSONLRoundTrip(t *testing.T) {
	s := exportSession(t)
	var buf bytes.Buffer
	if err := s.WriteJSONL(&buf); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 4 {
		t.Errorf("wrote %d lines, want 4", lines)
	}

	recs, err := ak.ReadJSONL(&buf)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	want := s.Export()
	for i := range want {
		if recs[i].Sequence != want[i].Sequence || recs[i].Content != want[i].Content ||
			!recs[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("record %d = %+v, want %+v", i, recs[i], want[i])
		}
	}
}

func TestExport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat.jsonl")
	if err := exportSession(t).ExportFile(path); err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"sequence":1,"role":"user"`) {
		t.Errorf("file starts with %q", string(data[:40]))
	}
}
