// Copyright (c) Microsoft. All rights reserved.

package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/tools"
)

func newLibrary(t *testing.T, opts ...tools.Option) *tools.Library {
	t.Helper()
	lib, err := tools.New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return lib
}

// invoke runs one call through the full adapter and fails on an error result.
func invoke(t *testing.T, lib *tools.Library, name, args string) json.RawMessage {
	t.Helper()
	res := call(t, lib, name, args)
	if !res.Success {
		t.Fatalf("%s(%s) failed: %s: %s", name, args, res.Error, res.Message)
	}
	return res.Payload
}

func call(t *testing.T, lib *tools.Library, name, args string) ak.ToolResult {
	t.Helper()
	reg, err := lib.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	return ak.NewInvoker(reg).Invoke(context.Background(), ak.ToolCall{
		ID: "call_1", Name: name, Arguments: json.RawMessage(args),
	})
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func TestLibrary_Catalogue(t *testing.T) {
	lib := newLibrary(t)
	want := []string{
		"calculator", "advanced_math", "word_count", "analyze_text", "extract_keywords",
		"analyze_sentiment", "summary_stats", "process_csv", "format_data", "analyze_code",
		"generate_hashes", "generate_password", "list_files", "read_file", "file_info",
		"search_files", "get_weather", "web_search", "current_time",
	}
	all := lib.All()
	if len(all) != len(want) {
		t.Fatalf("catalogue has %d tools, want %d", len(all), len(want))
	}
	for i, tool := range all {
		if tool.Name() != want[i] {
			t.Errorf("tool %d = %s, want %s", i, tool.Name(), want[i])
		}
		if tool.Description() == "" {
			t.Errorf("%s has no description", tool.Name())
		}
	}
	if _, ok := lib.Get("calculator"); !ok {
		t.Error("Get(calculator) missing")
	}
}

func TestLibrary_Registry(t *testing.T) {
	lib := newLibrary(t)

	reg, err := lib.Registry("get_weather", "calculator")
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if got := strings.Join(reg.Names(), ","); got != "get_weather,calculator" {
		t.Errorf("names = %s", got)
	}

	if _, err := lib.Registry("calculator", "teleport"); !errors.Is(err, ak.ErrUnknownTool) {
		t.Errorf("err = %v", err)
	}
}

func TestCalculator(t *testing.T) {
	lib := newLibrary(t)
	got := decode[tools.Calculation](t, invoke(t, lib, "calculator", `{"expression":"(2 + 3) * 4"}`))
	if got.Result != 20 {
		t.Errorf("result = %v", got.Result)
	}

	res := call(t, lib, "calculator", `{"expression":"1/0"}`)
	if res.Success || res.Error != ak.KindToolExecution || !strings.Contains(res.Message, "division by zero") {
		t.Errorf("division by zero = %+v", res)
	}
}

func TestAdvancedMath(t *testing.T) {
	lib := newLibrary(t)
	got := decode[map[string]any](t, invoke(t, lib, "advanced_math", `{"operation":"power","value":2,"exponent":10}`))
	if got["result"] != float64(1024) {
		t.Errorf("power = %v", got["result"])
	}

	if res := call(t, lib, "advanced_math", `{"operation":"cube","value":2}`); res.Error != ak.KindInvalidArguments {
		t.Errorf("bad enum = %+v", res)
	}
	if res := call(t, lib, "advanced_math", `{"operation":"sqrt","value":-1}`); res.Error != ak.KindToolExecution {
		t.Errorf("negative sqrt = %+v", res)
	}
}

func TestTextTools(t *testing.T) {
	lib := newLibrary(t)

	if got := string(invoke(t, lib, "word_count", `{"text":"the quick  brown fox"}`)); got != "4" {
		t.Errorf("word_count = %s", got)
	}

	stats := decode[tools.TextStats](t, invoke(t, lib, "analyze_text", `{"text":"Go is fun. Go is fast!\n\nNew paragraph."}`))
	if stats.Sentences != 3 || stats.Paragraphs != 2 || stats.Words != 8 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.TopWords) == 0 || stats.TopWords[0].Term != "go" || stats.TopWords[0].Count != 2 {
		t.Errorf("top words = %+v", stats.TopWords)
	}

	kw := decode[[]tools.Count](t, invoke(t, lib, "extract_keywords",
		`{"text":"Machine learning and machine vision: learning systems that learn", "count": 2}`))
	if len(kw) != 2 || kw[0].Term != "learning" || kw[1].Term != "machine" {
		t.Errorf("keywords = %+v", kw)
	}

	s := decode[tools.Sentiment](t, invoke(t, lib, "analyze_sentiment", `{"text":"I love this, it is great"}`))
	if s.Label != "positive" {
		t.Errorf("sentiment = %+v", s)
	}
	s = decode[tools.Sentiment](t, invoke(t, lib, "analyze_sentiment", `{"text":"The weather report"}`))
	if s.Label != "neutral" {
		t.Errorf("neutral sentiment = %+v", s)
	}
}

func TestDataTools(t *testing.T) {
	lib := newLibrary(t)

	st := decode[tools.Stats](t, invoke(t, lib, "summary_stats", `{"numbers":[4, 1, 3, 2]}`))
	if st.Count != 4 || st.Mean != 2.5 || st.Median != 2.5 || st.Range != 3 {
		t.Errorf("stats = %+v", st)
	}
	if res := call(t, lib, "summary_stats", `{"numbers":[]}`); res.Error != ak.KindToolExecution {
		t.Errorf("empty numbers = %+v", res)
	}

	rep := decode[tools.CSVReport](t, invoke(t, lib, "process_csv",
		`{"csv":"name,age,score\nann,31,9.5\nbob,45,7\ncut,short"}`))
	if rep.Rows != 2 || rep.Skipped != 1 || len(rep.Columns) != 3 {
		t.Errorf("report = %+v", rep)
	}
	if _, ok := rep.Numeric["name"]; ok {
		t.Error("name treated as numeric")
	}
	if rep.Numeric["age"].Mean != 38 {
		t.Errorf("age stats = %+v", rep.Numeric["age"])
	}

	table := decode[string](t, invoke(t, lib, "format_data",
		`{"data":"[{\"a\":1,\"b\":\"x\"},{\"a\":2}]","format":"table"}`))
	lines := strings.Split(strings.TrimSpace(table), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "a") {
		t.Errorf("table = %q", table)
	}
	if res := call(t, lib, "format_data", `{"data":"{oops"}`); res.Error != ak.KindToolExecution {
		t.Errorf("bad JSON = %+v", res)
	}
}

func TestAnalyzeCode(t *testing.T) {
	lib := newLibrary(t)
	src := "package main\n\nimport \"fmt\"\n\n// main prints.\nfunc main() {\n\tif err != nil {\n\t\treturn\n\t}\n\tfmt.Println(1)\n}\n"
	args, _ := json.Marshal(map[string]string{"code": src, "language": "go"})

	rep := decode[tools.CodeReport](t, invoke(t, lib, "analyze_code", string(args)))
	if rep.Functions != 1 || rep.CommentLines != 1 || rep.MaxIndent != 2 {
		t.Errorf("report = %+v", rep)
	}
}

func TestSecurityTools(t *testing.T) {
	lib := newLibrary(t)

	h := decode[tools.Hashes](t, invoke(t, lib, "generate_hashes", `{"text":"abc"}`))
	if h.MD5 != "900150983cd24fb0d6963f7d28e17f72" ||
		h.SHA1 != "a9993e364706816aba3e25717850c26c9cd0d89d" ||
		h.SHA256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("hashes = %+v", h)
	}

	pw := decode[map[string]any](t, invoke(t, lib, "generate_password", `{"length":24}`))
	if s, _ := pw["password"].(string); len(s) != 24 {
		t.Errorf("password = %v", pw)
	}
	if res := call(t, lib, "generate_password", `{"length":4}`); res.Success {
		t.Error("short password accepted")
	}
}

func TestFileTools(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "line"
	}
	os.WriteFile(filepath.Join(root, "docs", "notes.txt"), []byte(strings.Join(lines, "\n")), 0o644)
	os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644)

	lib := newLibrary(t, tools.WithFileRoot(root))

	entries := decode[[]tools.Entry](t, invoke(t, lib, "list_files", `{}`))
	if len(entries) != 2 || !entries[0].Dir || entries[1].Name != "main.go" {
		t.Errorf("entries = %+v", entries)
	}

	fc := decode[tools.FileContent](t, invoke(t, lib, "read_file", `{"path":"docs/notes.txt","max_lines":5}`))
	if fc.Lines != 30 || !fc.Truncated || strings.Count(fc.Content, "\n") != 5 {
		t.Errorf("content = %+v", fc)
	}

	info := decode[map[string]any](t, invoke(t, lib, "file_info", `{"path":"main.go"}`))
	if info["extension"] != ".go" || info["size"] != float64(13) {
		t.Errorf("info = %v", info)
	}

	found := decode[map[string]any](t, invoke(t, lib, "search_files", `{"pattern":"*.txt"}`))
	if found["count"] != float64(1) {
		t.Errorf("search = %v", found)
	}

	for _, args := range []string{`{"path":"../"}`, `{"path":"/etc/passwd"}`, `{"path":"docs/../../x"}`} {
		res := call(t, lib, "read_file", args)
		if res.Success || !strings.Contains(res.Message, "outside the allowed directory") {
			t.Errorf("read_file(%s) = %+v", args, res)
		}
	}
	if res := call(t, lib, "read_file", `{"path":"missing.txt"}`); !strings.Contains(res.Message, "does not exist") {
		t.Errorf("missing file = %+v", res)
	}
}

func TestWebTools(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	lib := newLibrary(t, tools.WithClock(func() time.Time { return fixed }))

	w1 := decode[tools.Weather](t, invoke(t, lib, "get_weather", `{"location":"Paris"}`))
	w2 := decode[tools.Weather](t, invoke(t, lib, "get_weather", `{"location":"paris"}`))
	if w1.TempC != w2.TempC || w1.Condition != w2.Condition || w1.Location != "Paris" {
		t.Errorf("weather not stable: %+v vs %+v", w1, w2)
	}

	sr := decode[map[string]any](t, invoke(t, lib, "web_search", `{"query":"go generics","max_results":9}`))
	if results, _ := sr["results"].([]any); len(results) != 5 {
		t.Errorf("results = %v", sr["results"])
	}

	now := decode[map[string]any](t, invoke(t, lib, "current_time", `{}`))
	if now["time"] != "2025-03-01T12:00:00Z" || now["weekday"] != "Saturday" {
		t.Errorf("time = %v", now)
	}
	if res := call(t, lib, "current_time", `{"timezone":"Mars/Olympus"}`); res.Success {
		t.Error("bogus zone accepted")
	}
}
