// Copyright (c) Microsoft. All rights reserved.

// Package mcptools exposes the tools of external MCP servers as agentkit
// tools. Servers are started as child processes speaking MCP over stdio.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/config"
)

const clientName = "agentkit"

// toolCaller is the part of an MCP client the bridge uses.
type toolCaller interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Server is one running MCP server and the tools it advertised.
type Server struct {
	name  string
	conn  toolCaller
	tools []mcp.Tool
}

// Start launches the server process, performs the MCP handshake and lists
// its tools.
func Start(ctx context.Context, cfg config.MCPServer) (*Server, error) {
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	c, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start mcp server %s: %w", cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo:      mcp.Implementation{Name: clientName, Version: "1.0.0"},
		},
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize mcp server %s: %w", cfg.Name, err)
	}

	s, err := connect(ctx, cfg.Name, c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	slog.DebugContext(ctx, "mcp server started", "server", cfg.Name, "tools", len(s.tools))
	return s, nil
}

// connect lists the tools of an initialized client.
func connect(ctx context.Context, name string, c toolCaller) (*Server, error) {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools for %s: %w", name, err)
	}
	return &Server{name: name, conn: c, tools: res.Tools}, nil
}

// Name returns the configured server name.
func (s *Server) Name() string { return s.name }

// Close stops the server process.
func (s *Server) Close() error { return s.conn.Close() }

// Tools converts the advertised tools. Names are prefixed with the server
// name so two servers can offer a tool of the same name. Tools whose schema
// cannot be expressed are skipped with a warning.
func (s *Server) Tools() []*ak.Tool {
	out := make([]*ak.Tool, 0, len(s.tools))
	for _, mt := range s.tools {
		t, err := s.convert(mt)
		if err != nil {
			slog.Warn("skipping mcp tool", "server", s.name, "tool", mt.Name, "error", err)
			continue
		}
		out = append(out, t)
	}
	return out
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ToolName is the registry name of an MCP tool.
func ToolName(server, tool string) string {
	name := unsafeName.ReplaceAllString(server+"_"+tool, "_")
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

func (s *Server) convert(mt mcp.Tool) (*ak.Tool, error) {
	b := ak.NewToolBuilder(ToolName(s.name, mt.Name)).Describe(mt.Description)
	required := make(map[string]bool, len(mt.InputSchema.Required))
	for _, r := range mt.InputSchema.Required {
		required[r] = true
	}

	names := make([]string, 0, len(mt.InputSchema.Properties))
	for n := range mt.InputSchema.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p, err := convertProperty(n, mt.InputSchema.Properties[n])
		if err != nil {
			return nil, err
		}
		p.Required = required[n]
		b.Param(p)
	}

	remote := mt.Name
	b.Func(func(ctx context.Context, args ak.Args) (any, error) {
		return s.call(ctx, remote, args)
	})
	return b.Build()
}

func convertProperty(name string, raw any) (ak.Param, error) {
	prop, ok := raw.(map[string]any)
	if !ok {
		b, err := json.Marshal(raw)
		if err != nil {
			return ak.Param{}, err
		}
		if err := json.Unmarshal(b, &prop); err != nil {
			return ak.Param{}, fmt.Errorf("property %q: %w", name, err)
		}
	}

	p := ak.Param{Name: name, Type: ak.TypeObject}
	if t, ok := paramType(prop["type"]); ok {
		p.Type = t
	}
	if d, ok := prop["description"].(string); ok {
		p.Description = d
	}
	if enum, ok := prop["enum"].([]any); ok {
		for _, v := range enum {
			if s, ok := v.(string); ok {
				p.Enum = append(p.Enum, s)
			}
		}
	}
	if items, ok := prop["items"].(map[string]any); ok && p.Type == ak.TypeArray {
		if t, ok := paramType(items["type"]); ok {
			p.Items = t
		}
	}
	return p, nil
}

// paramType reads a JSON schema type, which may be a list such as
// ["string", "null"].
func paramType(v any) (ak.ParamType, bool) {
	var candidates []string
	switch t := v.(type) {
	case string:
		candidates = []string{t}
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				candidates = append(candidates, s)
			}
		}
	case []string:
		candidates = t
	}
	for _, c := range candidates {
		switch pt := ak.ParamType(c); pt {
		case ak.TypeString, ak.TypeInteger, ak.TypeNumber, ak.TypeBoolean, ak.TypeArray, ak.TypeObject:
			return pt, true
		}
	}
	return "", false
}

func (s *Server) call(ctx context.Context, tool string, args ak.Args) (any, error) {
	res, err := s.conn.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: tool, Arguments: map[string]any(args)},
	})
	if err != nil {
		return nil, &ak.ToolError{ToolName: tool, Message: err.Error(), Err: ak.ErrToolExecution}
	}
	text := resultText(res)
	if res.IsError {
		if text == "" {
			text = "the server reported an error"
		}
		return nil, &ak.ToolError{ToolName: tool, Message: text, Err: ak.ErrToolExecution}
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return text, nil
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Set is a group of running servers.
type Set struct {
	servers []*Server
}

// StartAll starts every configured server. On failure the servers already
// started are stopped.
func StartAll(ctx context.Context, cfgs []config.MCPServer) (*Set, error) {
	set := &Set{}
	for _, cfg := range cfgs {
		s, err := Start(ctx, cfg)
		if err != nil {
			_ = set.Close()
			return nil, err
		}
		set.servers = append(set.servers, s)
	}
	return set, nil
}

// Tools returns the tools of every server in configuration order.
func (s *Set) Tools() []*ak.Tool {
	if s == nil {
		return nil
	}
	var out []*ak.Tool
	for _, srv := range s.servers {
		out = append(out, srv.Tools()...)
	}
	return out
}

// Close stops every server.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, srv := range s.servers {
		if err := srv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp server %s: %w", srv.name, err))
		}
	}
	return errors.Join(errs...)
}
