// Copyright (c) Microsoft. All rights reserved.

// Package openai provides an [agentkit.Backend] for the OpenAI Chat
// Completions API and wire-compatible services (Azure OpenAI, Azure AI
// Foundry, vLLM, LM Studio).
//
// Create a client and pass it to [agentkit.NewDispatcher]:
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
//
//	d := agentkit.NewDispatcher(client, registry)
//
// # Configuration
//
// Use functional options to configure the client:
//
//   - [WithModel]: set the default model
//   - [WithBaseURL]: override the API endpoint (e.g., Azure OpenAI)
//   - [WithAzureCredential]: authenticate with Microsoft Entra ID tokens
//   - [WithHTTPClient]: provide a custom http.Client
//   - [WithHeaders]: add custom headers to every request
//
// # Testing
//
// The client uses an unexported transport interface internally.
// For testing, provide a mock http.Client via [WithHTTPClient]
// with a custom RoundTripper.
package openai
