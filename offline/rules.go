// Copyright (c) Microsoft. All rights reserved.

package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// TaskParam is the parameter name of tools that hand a prompt to another
// agent. Rules delegates to such tools when no keyword rule matches.
const TaskParam = "task"

// Rule maps a prompt to calls of one tool. Match returns one argument set
// per call, or nil when the rule does not apply.
type Rule struct {
	Tool  string
	Match func(prompt string) []map[string]any
}

// Rules is a deterministic [agentkit.Backend] that stands in for a model.
// It inspects the latest user prompt, requests the first offered tool whose
// rule matches, and once results arrive answers with a summary of them.
type Rules struct {
	rules []Rule
	model string
}

var _ ak.Backend = (*Rules)(nil)

// NewRules creates a router with the default rule set followed by extra.
func NewRules(extra ...Rule) *Rules {
	return &Rules{rules: append(defaultRules(), extra...), model: "offline-rules"}
}

// Model returns the pseudo model name reported in responses.
func (r *Rules) Model() string { return r.model }

// Complete answers one round.
func (r *Rules) Complete(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prompt, results := latest(req.Conversation)
	resp := &ak.ModelResponse{ModelID: r.model, FinishReason: "stop"}

	if len(results) > 0 {
		resp.Content = summarize(results)
		return resp, nil
	}

	offered := make(map[string]ak.ToolSpec, len(req.Tools))
	for _, t := range req.Tools {
		offered[t.Name] = t
	}
	if req.Options == nil || req.Options.ToolChoice != ak.ToolChoiceNone {
		if calls := r.route(prompt, offered, req.Tools); len(calls) > 0 {
			resp.ToolCalls = calls
			resp.FinishReason = "tool_calls"
			return resp, nil
		}
	}

	resp.Content = chat(prompt, req.Tools)
	return resp, nil
}

func (r *Rules) route(prompt string, offered map[string]ak.ToolSpec, specs []ak.ToolSpec) []ak.ToolCall {
	for _, rule := range r.rules {
		if _, ok := offered[rule.Tool]; !ok {
			continue
		}
		argSets := rule.Match(prompt)
		if len(argSets) == 0 {
			continue
		}
		calls := make([]ak.ToolCall, 0, len(argSets))
		for _, args := range argSets {
			calls = append(calls, newCall(rule.Tool, args))
		}
		return calls
	}
	if spec, ok := delegate(prompt, specs); ok {
		return []ak.ToolCall{newCall(spec.Name, map[string]any{TaskParam: prompt})}
	}
	return nil
}

func newCall(name string, args map[string]any) ak.ToolCall {
	raw, _ := json.Marshal(args)
	return ak.ToolCall{ID: ak.NewCallID(), Name: name, Arguments: raw}
}

// delegate picks the agent tool, one taking a single required "task"
// string, whose description shares the most words with the prompt.
func delegate(prompt string, specs []ak.ToolSpec) (ak.ToolSpec, bool) {
	words := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(prompt), -1) {
		if len(w) > 3 {
			words[w] = true
		}
	}
	var best ak.ToolSpec
	bestScore := 0
	for _, spec := range specs {
		if len(spec.Params) != 1 || spec.Params[0].Name != TaskParam || spec.Params[0].Type != ak.TypeString {
			continue
		}
		score := 0
		for _, w := range wordRe.FindAllString(strings.ToLower(spec.Description+" "+spec.Name), -1) {
			if words[w] || words[strings.TrimSuffix(w, "s")] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = spec, score
		}
	}
	return best, bestScore > 0
}

// latest returns the last user prompt and any tool results that followed it.
func latest(turns []ak.Turn) (string, []ak.ToolResult) {
	var results []ak.ToolResult
	for i := len(turns) - 1; i >= 0; i-- {
		switch t := turns[i]; t.Kind {
		case ak.TurnUser:
			// Results were gathered newest first.
			for l, r := 0, len(results)-1; l < r; l, r = l+1, r-1 {
				results[l], results[r] = results[r], results[l]
			}
			return t.Text, results
		case ak.TurnToolResult:
			results = append(results, *t.Result)
		}
	}
	return "", nil
}

func summarize(results []ak.ToolResult) string {
	if len(results) == 1 {
		r := results[0]
		if !r.Success {
			return fmt.Sprintf("I could not complete that: %s failed (%s).", r.Name, r.Content())
		}
		return fmt.Sprintf("Here is the result from %s:\n\n%s", r.Name, pretty(r))
	}
	var sb strings.Builder
	sb.WriteString("Here is what I found:\n")
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&sb, "\n- **%s**: %s", r.Name, pretty(r))
		} else {
			fmt.Fprintf(&sb, "\n- **%s** failed: %s", r.Name, r.Content())
		}
	}
	return sb.String()
}

func pretty(r ak.ToolResult) string {
	var v any
	if json.Unmarshal(r.Payload, &v) != nil {
		return string(r.Payload)
	}
	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return string(r.Payload)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(r.Payload)
	}
	return "```json\n" + string(b) + "\n```"
}

func chat(prompt string, tools []ak.ToolSpec) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.TrimSpace(prompt) == "":
		return "Say something and I will do my best to help."
	case containsAny(lower, "what can you do", "help", "capabilities", "which tools"):
		if len(tools) == 0 {
			return "I am running offline without tools, so I can only chat."
		}
		names := make([]string, len(tools))
		for i, t := range tools {
			names[i] = "`" + t.Name + "`"
		}
		return "I can use these tools: " + strings.Join(names, ", ") + "."
	case hasWord(lower, "hello", "hi", "hey"):
		return "Hello! I am the offline assistant. Ask me to calculate, look up the weather, or analyze some text."
	case containsAny(lower, "goodbye", "bye", "thanks", "thank you"):
		return "You're welcome. Goodbye!"
	default:
		return fmt.Sprintf("I am running without a language model, so I can only act on requests my rules recognize. You said: %q", prompt)
	}
}

var (
	wordRe     = regexp.MustCompile(`[a-z0-9_]+`)
	quotedRe   = regexp.MustCompile(`"([^"]+)"|'([^']+)'|“([^”]+)”`)
	exprRe     = regexp.MustCompile(`[-+*/%^().\d\s]*\d[-+*/%^().\d\s]*`)
	operatorRe = regexp.MustCompile(`\d\s*[-+*/%^]\s*[-(\d]`)
	numberRe   = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	locationRe = regexp.MustCompile(`(?i)\b(?:in|for|at)\s+([A-Za-z][A-Za-z .,'-]*)`)
	fileRe     = regexp.MustCompile(`[\w./-]+\.\w+`)
	globRe     = regexp.MustCompile(`\*[\w.*]*|[\w.-]*\*[\w.*]*`)
	codeRe     = regexp.MustCompile("(?s)```(\\w*)\\n?(.*?)```")
	jsonRe     = regexp.MustCompile(`(?s)[\[{].*[\]}]`)
	dirRe      = regexp.MustCompile(`(?i)\bin\s+([\w./-]+)`)
)

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasWord(s string, words ...string) bool {
	for _, w := range wordRe.FindAllString(s, -1) {
		for _, want := range words {
			if w == want {
				return true
			}
		}
	}
	return false
}

// subject returns quoted text, else the text after the first colon.
func subject(prompt string) string {
	if m := quotedRe.FindStringSubmatch(prompt); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				return g
			}
		}
	}
	if i := strings.Index(prompt, ":"); i >= 0 {
		return strings.TrimSpace(prompt[i+1:])
	}
	return ""
}

func one(args map[string]any) []map[string]any { return []map[string]any{args} }

func keywordRule(tool string, keywords []string, build func(prompt string) map[string]any) Rule {
	return Rule{Tool: tool, Match: func(prompt string) []map[string]any {
		if !containsAny(strings.ToLower(prompt), keywords...) {
			return nil
		}
		if args := build(prompt); args != nil {
			return one(args)
		}
		return nil
	}}
}

func textRule(tool string, keywords ...string) Rule {
	return keywordRule(tool, keywords, func(p string) map[string]any {
		if s := subject(p); s != "" {
			return map[string]any{"text": s}
		}
		return nil
	})
}

func defaultRules() []Rule {
	return []Rule{
		textRule("word_count", "count words", "count the words", "word count", "how many words"),
		textRule("analyze_sentiment", "sentiment", "positive or negative"),
		textRule("extract_keywords", "keyword"),
		textRule("analyze_text", "analyze text", "analyze this text", "text analysis", "analyse text"),
		textRule("generate_hashes", "hash", "checksum"),
		keywordRule("analyze_code", []string{"analyze code", "analyze this code", "review code", "code analysis"}, func(p string) map[string]any {
			m := codeRe.FindStringSubmatch(p)
			if m == nil {
				return nil
			}
			args := map[string]any{"code": m[2]}
			if lang := strings.ToLower(m[1]); lang == "go" || lang == "python" || lang == "javascript" {
				args["language"] = lang
			}
			return args
		}),
		keywordRule("process_csv", []string{"csv"}, func(p string) map[string]any {
			var rows []string
			for _, line := range strings.Split(p, "\n") {
				if strings.Count(line, ",") > 0 && !strings.Contains(strings.ToLower(line), "csv") {
					rows = append(rows, strings.TrimSpace(line))
				}
			}
			if len(rows) < 2 {
				return nil
			}
			return map[string]any{"csv": strings.Join(rows, "\n")}
		}),
		keywordRule("summary_stats", []string{"statistics", "stats", "average", "mean of", "median"}, func(p string) map[string]any {
			nums := numberRe.FindAllString(p, -1)
			if len(nums) < 2 {
				return nil
			}
			values := make([]any, 0, len(nums))
			for _, n := range nums {
				f, _ := strconv.ParseFloat(n, 64)
				values = append(values, f)
			}
			return map[string]any{"numbers": values}
		}),
		keywordRule("format_data", []string{"format", "as a table", "as table"}, func(p string) map[string]any {
			data := jsonRe.FindString(p)
			if data == "" || !json.Valid([]byte(data)) {
				return nil
			}
			format := "json"
			switch lower := strings.ToLower(p); {
			case strings.Contains(lower, "table"):
				format = "table"
			case strings.Contains(lower, "list"):
				format = "list"
			}
			return map[string]any{"data": data, "format": format}
		}),
		keywordRule("generate_password", []string{"password"}, func(p string) map[string]any {
			args := map[string]any{}
			if n := numberRe.FindString(p); n != "" {
				v, _ := strconv.Atoi(n)
				args["length"] = v
			}
			return args
		}),
		keywordRule("advanced_math", []string{"square root", "sqrt"}, func(p string) map[string]any {
			n := numberRe.FindString(p)
			if n == "" {
				return nil
			}
			v, _ := strconv.ParseFloat(n, 64)
			return map[string]any{"operation": "sqrt", "value": v}
		}),
		{Tool: "get_weather", Match: func(p string) []map[string]any {
			if !containsAny(strings.ToLower(p), "weather", "temperature", "forecast") {
				return nil
			}
			m := locationRe.FindStringSubmatch(p)
			if m == nil {
				return nil
			}
			var out []map[string]any
			for _, loc := range splitList(strings.TrimRight(m[1], " .?!")) {
				out = append(out, map[string]any{"location": loc})
			}
			return out
		}},
		keywordRule("search_files", []string{"find files", "search files", "search for files", "files matching"}, func(p string) map[string]any {
			g := globRe.FindString(p)
			if g == "" {
				return nil
			}
			return map[string]any{"pattern": g}
		}),
		keywordRule("read_file", []string{"read file", "read the file", "show file", "open file", "contents of"}, func(p string) map[string]any {
			f := fileRe.FindString(p)
			if f == "" {
				return nil
			}
			return map[string]any{"path": f}
		}),
		keywordRule("file_info", []string{"file info", "info about", "size of"}, func(p string) map[string]any {
			f := fileRe.FindString(p)
			if f == "" {
				return nil
			}
			return map[string]any{"path": f}
		}),
		keywordRule("list_files", []string{"list files", "list the files", "show files", "directory", "folder"}, func(p string) map[string]any {
			if m := dirRe.FindStringSubmatch(p); m != nil && !hasWord(strings.ToLower(m[1]), "the", "this", "my", "current", "a") {
				return map[string]any{"path": m[1]}
			}
			return map[string]any{}
		}),
		keywordRule("web_search", []string{"search", "look up", "lookup", "research", "find information", "latest news"}, func(p string) map[string]any {
			q := p
			lower := strings.ToLower(p)
			for _, kw := range []string{"search for", "search", "look up", "lookup", "research", "find information about", "find information on"} {
				if i := strings.Index(lower, kw); i >= 0 {
					q = strings.TrimSpace(p[i+len(kw):])
					break
				}
			}
			q = strings.Trim(q, " ?.!:")
			if q == "" {
				return nil
			}
			return map[string]any{"query": q}
		}),
		keywordRule("current_time", []string{"what time", "current time", "today's date", "what day", "the date"}, func(p string) map[string]any {
			return map[string]any{}
		}),
		{Tool: "calculator", Match: func(p string) []map[string]any {
			for _, m := range exprRe.FindAllString(p, -1) {
				if operatorRe.MatchString(m) {
					return one(map[string]any{"expression": strings.TrimSpace(m)})
				}
			}
			return nil
		}},
	}
}

// splitList splits "Paris, Rome and Oslo" into its items.
func splitList(s string) []string {
	s = strings.ReplaceAll(s, " and ", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
