// Copyright (c) Microsoft. All rights reserved.

// Package agentkit provides the agent/tool dispatch core: a tool registry,
// an invocation adapter that turns every tool outcome into a serializable
// result, a conversation session with a sliding context window, and a
// dispatcher that loops between a model backend and the tools until the
// model answers or a round budget runs out.
//
// # Quick Start
//
// Build tools, register them, and run a dispatcher over a session:
//
//	wordCount := agentkit.NewToolBuilder("word_count").
//	    Describe("Count the words in a text").
//	    Param(agentkit.Param{Name: "text", Type: agentkit.TypeString, Required: true}).
//	    Func(func(ctx context.Context, args agentkit.Args) (any, error) {
//	        return len(strings.Fields(args.String("text"))), nil
//	    }).
//	    MustBuild()
//
//	reg, _ := agentkit.NewRegistry(wordCount)
//	d := agentkit.NewDispatcher(backend, reg, agentkit.WithMaxRounds(5))
//
//	session := agentkit.NewSession(agentkit.WithWindow(20))
//	res, err := d.Run(ctx, session, "How many words are in 'a b c'?")
//
// # Architecture
//
//   - [Registry]: name to [Tool] mapping, shared read-only across sessions.
//   - [Invoker]: validates arguments and executes a tool, always producing a
//     [ToolResult]; failures are tagged with an [ErrorKind].
//   - [Session]: ordered [Turn] transcript with pairing rules and a window.
//   - [Dispatcher]: the model/tool state machine with a bounded round count,
//     parallel tool execution and ordered result materialization.
//   - [Backend]: interface implemented by the provider packages.
//   - Middleware: three levels (Dispatch, Backend, Function).
//
// # Errors
//
// Per-call tool failures never escape the [Invoker]; they become failed
// results the model can react to. The dispatcher returns only errors that
// match one of [ErrProtocolSequence], [ErrToolLoopBudgetExceeded],
// [ErrBackendUnavailable], [ErrBackendTimeout] or [ErrCancelled], and the
// session stays usable after each of them.
package agentkit
