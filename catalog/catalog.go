// Copyright (c) Microsoft. All rights reserved.

// Package catalog defines the agent profiles offered by the samples: a
// plain chat agent, several tool-using agents and a coordinator that
// delegates to specialist agents.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/offline"
	"github.com/agentplayground/agentkit/tools"
)

// Profile describes one agent preset.
type Profile struct {
	ID           string
	Name         string
	Description  string
	Instructions string
	// Tools names entries of the tool library.
	Tools []string
	// Specialists are exposed to the model as tools that run their own
	// dispatcher.
	Specialists []Specialist
	Samples     []string
}

// Specialist is an agent another agent can delegate a task to.
type Specialist struct {
	Name         string
	Description  string
	Instructions string
	Tools        []string
}

var profiles = []*Profile{
	{
		ID:          "simple",
		Name:        "Simple Agent",
		Description: "Basic conversational agent with no tools",
		Instructions: "You are a friendly and helpful assistant. Answer clearly and concisely. " +
			"You have no tools, so rely on your own knowledge and say when you are unsure.",
		Samples: []string{
			"Hello! Can you introduce yourself and tell me what you can do?",
			"Can you explain what artificial intelligence is and how it works?",
			"Write a short story about a robot learning to paint",
		},
	},
	{
		ID:          "tools",
		Name:        "Agent with Tools",
		Description: "Agent with built-in tools (calculator, web search, weather, time)",
		Instructions: "You are a helpful assistant with access to tools. Use the calculator for any " +
			"arithmetic, get_weather for weather questions, web_search to look things up and " +
			"current_time for dates and times. Explain results in plain language.",
		Tools: []string{"calculator", "advanced_math", "get_weather", "web_search", "current_time"},
		Samples: []string{
			"Can you calculate 25 * 47 for me?",
			"Search for Python programming tutorials",
			"What's the weather like in San Francisco?",
		},
	},
	{
		ID:          "custom_tools",
		Name:        "Custom Tools Agent",
		Description: "Agent with custom tools for text, data, code and security tasks",
		Instructions: "You are an analysis assistant. Use the text tools to count words, analyze " +
			"text, extract keywords and judge sentiment; the data tools for statistics, CSV and " +
			"formatting; analyze_code for source code; generate_hashes and generate_password " +
			"for security tasks. Report the numbers the tools return.",
		Tools: []string{
			"word_count", "analyze_text", "extract_keywords", "analyze_sentiment",
			"summary_stats", "process_csv", "format_data", "analyze_code",
			"generate_hashes", "generate_password",
		},
		Samples: []string{
			"Analyze this text: 'The quick brown fox jumps over the lazy dog. This sentence contains every letter of the alphabet at least once.'",
			"Extract keywords from this text: 'Machine learning and artificial intelligence are transforming modern technology'",
			"Generate a secure password with 12 characters",
		},
	},
	{
		ID:          "web_research",
		Name:        "Web Research Agent",
		Description: "Specialized agent for web research and information gathering",
		Instructions: "You are a research assistant. Break questions into searches, run web_search " +
			"for each, pull keywords out of what you find and summarize the findings with their sources.",
		Tools: []string{"web_search", "extract_keywords", "analyze_text", "current_time"},
		Samples: []string{
			"Research the latest trends in artificial intelligence",
			"Find recent news about machine learning breakthroughs",
			"Find the best online resources for learning Python programming",
		},
	},
	{
		ID:          "file_manager",
		Name:        "File Manager Agent",
		Description: "Agent for file operations and management in a sandboxed workspace",
		Instructions: "You manage files inside a workspace directory. Use list_files, read_file, " +
			"file_info and search_files. Paths are relative to the workspace and you cannot leave it. " +
			"You can only read; never claim to have changed a file.",
		Tools: []string{"list_files", "read_file", "file_info", "search_files"},
		Samples: []string{
			"List files in the current directory",
			"Find files matching *.go",
			"Read file README.md",
		},
	},
	{
		ID:          "multi_agent",
		Name:        "Multi-Agent System",
		Description: "Coordinator that delegates to specialist math, text and data agents",
		Instructions: "You coordinate a team of specialist agents. Decide which specialists a request " +
			"needs, give each a self-contained task, and combine their answers into one reply. " +
			"Call independent specialists in the same turn.",
		Specialists: []Specialist{
			{
				Name:         "math_agent",
				Description:  "Solves math problems: arithmetic, square roots, powers, logarithms and trigonometry",
				Instructions: "You are a math specialist. Always use your tools to compute and show the result.",
				Tools:        []string{"calculator", "advanced_math"},
			},
			{
				Name:         "text_agent",
				Description:  "Analyzes text: word counts, statistics, keywords and sentiment",
				Instructions: "You are a text analysis specialist. Use your tools and report their findings.",
				Tools:        []string{"word_count", "analyze_text", "extract_keywords", "analyze_sentiment"},
			},
			{
				Name:         "data_agent",
				Description:  "Works with data: averages, summary statistics, CSV processing and formatting as json, table or list",
				Instructions: "You are a data specialist. Use your tools to compute statistics and format data.",
				Tools:        []string{"summary_stats", "process_csv", "format_data"},
			},
		},
		Samples: []string{
			"Calculate the square root of 144 and then analyze the text 'twelve is a lovely number'",
			"Give me the average of 12, 18 and 30",
			"Help me plan a Python learning roadmap",
		},
	},
}

// Default is the profile used when none is named.
const Default = "tools"

// All returns every profile in display order.
func All() []*Profile {
	out := make([]*Profile, len(profiles))
	copy(out, profiles)
	return out
}

// Lookup returns the profile with the given id. An empty id selects
// [Default].
func Lookup(id string) (*Profile, error) {
	if id == "" {
		id = Default
	}
	for _, p := range profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown profile %q", id)
}

// ToolNames lists what the profile's registry will hold, specialists last.
func (p *Profile) ToolNames() []string {
	names := append([]string(nil), p.Tools...)
	for _, s := range p.Specialists {
		names = append(names, s.Name)
	}
	return names
}

// Registry builds the profile's tool registry. Specialists run on backend
// with opts applied to their dispatchers; extra tools, such as ones bridged
// from MCP servers, are appended.
func (p *Profile) Registry(lib *tools.Library, backend ak.Backend, extra []*ak.Tool, opts ...ak.DispatcherOption) (*ak.Registry, error) {
	reg, err := subset(lib, p.Tools)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	for _, s := range p.Specialists {
		t, err := s.tool(lib, backend, opts)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ID, err)
		}
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ID, err)
		}
	}
	for _, t := range extra {
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ID, err)
		}
	}
	return reg, nil
}

// tool wraps the specialist in a tool. Each call gets a fresh session so
// concurrent delegations never share a transcript.
func (s Specialist) tool(lib *tools.Library, backend ak.Backend, opts []ak.DispatcherOption) (*ak.Tool, error) {
	reg, err := subset(lib, s.Tools)
	if err != nil {
		return nil, err
	}
	dopts := append([]ak.DispatcherOption{
		ak.WithName(s.Name),
		ak.WithInstructions(s.Instructions),
	}, opts...)
	d := ak.NewDispatcher(backend, reg, dopts...)

	return ak.NewToolBuilder(s.Name).
		Describe(s.Description + ". Give it one self-contained task.").
		Param(ak.Param{Name: offline.TaskParam, Type: ak.TypeString, Required: true, Description: "The task for this specialist"}).
		Func(func(ctx context.Context, args ak.Args) (any, error) {
			res, err := d.Run(ctx, ak.NewSession(), args.String(offline.TaskParam))
			if err != nil {
				slog.WarnContext(ctx, "specialist failed", "specialist", s.Name, "error", err)
				return nil, &ak.ToolError{ToolName: s.Name, Message: err.Error(), Err: ak.ErrToolExecution}
			}
			return res.Answer, nil
		}).
		Build()
}

// subset is lib.Registry, except that no names means no tools.
func subset(lib *tools.Library, names []string) (*ak.Registry, error) {
	if len(names) == 0 {
		return ak.NewRegistry()
	}
	return lib.Registry(names...)
}
