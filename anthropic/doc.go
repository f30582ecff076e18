// Copyright (c) Microsoft. All rights reserved.

// Package anthropic provides an [agentkit.Backend] backed by the Anthropic
// Messages API through the official SDK.
//
//	client := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"),
//	    anthropic.WithModel("claude-sonnet-4-5-20250929"),
//	)
//	d := agentkit.NewDispatcher(client, registry)
package anthropic
