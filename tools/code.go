// Copyright (c) Microsoft. All rights reserved.

package tools

import (
	"context"
	"regexp"
	"sort"
	"strings"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// CodeReport is the result of analyze_code.
type CodeReport struct {
	Language     string   `json:"language"`
	TotalLines   int      `json:"totalLines"`
	CodeLines    int      `json:"codeLines"`
	CommentLines int      `json:"commentLines"`
	BlankLines   int      `json:"blankLines"`
	Functions    int      `json:"functions"`
	Types        int      `json:"types"`
	Imports      int      `json:"imports"`
	MaxIndent    int      `json:"maxIndent"`
	Notes        []string `json:"notes,omitempty"`
}

type language struct {
	comment  []string
	function *regexp.Regexp
	typ      *regexp.Regexp
	imports  *regexp.Regexp
	notes    map[string]string
}

var languages = map[string]language{
	"python": {
		comment:  []string{"#"},
		function: regexp.MustCompile(`(?m)^\s*(async\s+)?def\s+\w+`),
		typ:      regexp.MustCompile(`(?m)^\s*class\s+\w+`),
		imports:  regexp.MustCompile(`(?m)^\s*(import|from)\s+`),
		notes: map[string]string{
			`if __name__ == "__main__"`: "has a main guard",
			"try:":                      "uses exception handling",
			"def __init__":              "defines constructors",
		},
	},
	"go": {
		comment:  []string{"//"},
		function: regexp.MustCompile(`(?m)^func\s+`),
		typ:      regexp.MustCompile(`(?m)^type\s+\w+`),
		imports:  regexp.MustCompile(`(?m)^import\s+|^\s+"[\w./-]+"$`),
		notes: map[string]string{
			"context.Context": "threads contexts",
			"if err != nil":   "checks errors",
			"go func":         "starts goroutines",
		},
	},
	"javascript": {
		comment:  []string{"//"},
		function: regexp.MustCompile(`function\s+\w+|=>\s*[{(]`),
		typ:      regexp.MustCompile(`(?m)^\s*class\s+\w+`),
		imports:  regexp.MustCompile(`(?m)^\s*(import\s|const\s+\w+\s*=\s*require\()`),
		notes: map[string]string{
			"async ": "uses async functions",
			"try {":  "uses exception handling",
		},
	},
}

func analyzeCodeTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("analyze_code").
		Describe("Count code, comment and blank lines and find functions, types and imports.").
		Param(ak.Param{Name: "code", Type: ak.TypeString, Required: true}).
		Param(ak.Param{Name: "language", Type: ak.TypeString, Enum: []string{"python", "go", "javascript"}, Description: "Source language (default python)"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			lang := args.String("language")
			if lang == "" {
				lang = "python"
			}
			return analyzeCode(args.String("code"), lang), nil
		}).
		Build()
}

func analyzeCode(code, lang string) CodeReport {
	spec := languages[lang]
	lines := strings.Split(code, "\n")
	rep := CodeReport{Language: lang, TotalLines: len(lines)}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			rep.BlankLines++
			continue
		case hasAnyPrefix(trimmed, spec.comment):
			rep.CommentLines++
		default:
			rep.CodeLines++
		}
		expanded := strings.ReplaceAll(line, "\t", "    ")
		indent := (len(expanded) - len(strings.TrimLeft(expanded, " "))) / 4
		rep.MaxIndent = max(rep.MaxIndent, indent)
	}

	rep.Functions = len(spec.function.FindAllStringIndex(code, -1))
	rep.Types = len(spec.typ.FindAllStringIndex(code, -1))
	rep.Imports = len(spec.imports.FindAllStringIndex(code, -1))
	for marker, note := range spec.notes {
		if strings.Contains(code, marker) {
			rep.Notes = append(rep.Notes, note)
		}
	}
	sort.Strings(rep.Notes)
	return rep
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
