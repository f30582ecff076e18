// Copyright (c) Microsoft. All rights reserved.

package agentkit_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	ak "github.com/agentplayground/agentkit/agentkit"
)

func wordCountTool(t *testing.T) *ak.Tool {
	t.Helper()
	tool, err := ak.NewToolBuilder("word_count").
		Describe("Count the words in a text").
		Param(ak.Param{Name: "text", Type: ak.TypeString, Required: true, Description: "Text to count"}).
		Func(func(ctx context.Context, args ak.Args) (any, error) {
			return len(strings.Fields(args.String("text"))), nil
		}).
		Build()
	if err != nil {
		t.Fatalf("build word_count: %v", err)
	}
	return tool
}

func mustRegistry(t *testing.T, tools ...*ak.Tool) *ak.Registry {
	t.Helper()
	reg, err := ak.NewRegistry(tools...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// scriptedBackend replays responses in order and records every request.
type scriptedBackend struct {
	mu        sync.Mutex
	responses []*ak.ModelResponse
	fn        func(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error)
	requests  []*ak.ModelRequest
}

func (b *scriptedBackend) Complete(ctx context.Context, req *ak.ModelRequest) (*ak.ModelResponse, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	var next *ak.ModelResponse
	if len(b.responses) > 0 {
		next = b.responses[0]
		b.responses = b.responses[1:]
	}
	fn := b.fn
	b.mu.Unlock()

	if next != nil {
		return next, nil
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return &ak.ModelResponse{Content: "done"}, nil
}

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func toolCall(id, name, args string) ak.ToolCall {
	return ak.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func countKind(turns []ak.Turn, kind ak.TurnKind) int {
	n := 0
	for _, t := range turns {
		if t.Kind == kind {
			n++
		}
	}
	return n
}
