// Copyright (c) Microsoft. All rights reserved.

// Command chat is a terminal chat with the agent profiles.
//
// The backend comes from the config file and environment; with no API key
// set it runs the offline rule-based backend.
//
//	export OPENAI_API_KEY=sk-...
//	go run ./samples/chat -profile tools
//
//	AGENTKIT_PROVIDER=ollama AGENTKIT_MODEL=qwen2.5:7b go run ./samples/chat
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/joho/godotenv"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/catalog"
	"github.com/agentplayground/agentkit/config"
	"github.com/agentplayground/agentkit/runner"
)

const chatID = "terminal"

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	profileID := flag.String("profile", catalog.Default, "agent profile to start with")
	exportPath := flag.String("export", "", "write the transcript as JSONL to this file on exit")
	width := flag.Int("width", 100, "line width for rendered answers")
	flag.Parse()

	// Load .env file if present (ignored if missing).
	_ = godotenv.Load()

	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	r, provider, closeAll, err := runner.FromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer closeAll()

	profile, err := catalog.Lookup(*profileID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Provider: %s (%s)\n", provider.Name, provider.Model)
	printProfile(profile)
	fmt.Println("Commands: /profiles, /profile <id>, /tools, /samples, /reset, /export <file>, /quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit := command(r, &profile, input)
			if quit {
				break
			}
			continue
		}

		// Each question gets its own cancel scope so Ctrl-C stops the round
		// without leaving the chat.
		roundCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		reply, err := r.Chat(roundCtx, chatID, profile.ID, input)
		cancel()
		if reply != nil && reply.RoundResult != nil {
			printToolTurns(reply.Turns)
			if reply.Answer != "" {
				fmt.Printf("\nAssistant:\n%s\n", markdown.Render(reply.Answer, *width, 2))
			}
			if reply.Usage.TotalTokens > 0 {
				fmt.Printf("  [tokens: %d in, %d out, %d tool calls]\n",
					reply.Usage.InputTokens, reply.Usage.OutputTokens, reply.ToolCalls)
			}
		}
		if err != nil {
			printError(err)
		}
		fmt.Println()
	}

	if *exportPath != "" {
		f, err := os.Create(*exportPath)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		defer f.Close()
		if err := r.Export(chatID, f); err != nil && !errors.Is(err, runner.ErrChatNotFound) {
			log.Fatalf("export: %v", err)
		}
		fmt.Printf("Transcript written to %s\n", *exportPath)
	}
}

// command handles a slash command and reports whether to quit.
func command(r *runner.Runner, profile **catalog.Profile, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/profiles":
		for _, p := range catalog.All() {
			marker := " "
			if p.ID == (*profile).ID {
				marker = "*"
			}
			fmt.Printf(" %s %-13s %s\n", marker, p.ID, p.Description)
		}
	case "/profile":
		p, err := catalog.Lookup(arg)
		if err != nil {
			fmt.Println(err)
			return false
		}
		*profile = p
		printProfile(p)
	case "/tools":
		names, err := r.Tools((*profile).ID)
		if err != nil {
			fmt.Println(err)
			return false
		}
		if len(names) == 0 {
			fmt.Println("This profile has no tools.")
		}
		for _, n := range names {
			fmt.Println("  -", n)
		}
	case "/samples":
		for i, s := range (*profile).Samples {
			fmt.Printf("  %d. %s\n", i+1, s)
		}
	case "/reset":
		if err := r.Reset(chatID); err != nil && !errors.Is(err, runner.ErrChatNotFound) {
			fmt.Println(err)
			return false
		}
		fmt.Println("History cleared.")
	case "/export":
		if arg == "" {
			path, err := r.ExportFile(chatID)
			if err != nil {
				fmt.Println(err)
				return false
			}
			fmt.Println("Transcript written to", path)
			return false
		}
		f, err := os.Create(arg)
		if err != nil {
			fmt.Println(err)
			return false
		}
		defer f.Close()
		if err := r.Export(chatID, f); err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Println("Transcript written to", arg)
	default:
		fmt.Printf("Unknown command %s\n", name)
	}
	return false
}

func printProfile(p *catalog.Profile) {
	fmt.Printf("Profile:  %s (%s)\n", p.Name, p.Description)
}

func printToolTurns(turns []ak.Turn) {
	for _, t := range turns {
		switch t.Kind {
		case ak.TurnToolCall:
			fmt.Printf("  → %s %s\n", t.Call.Name, t.Call.Arguments)
		case ak.TurnToolResult:
			status := "ok"
			if !t.Result.Success {
				status = string(t.Result.Error)
			}
			fmt.Printf("  ← %s [%s]\n", t.Result.Name, status)
		}
	}
}

func printError(err error) {
	switch {
	case errors.Is(err, ak.ErrToolLoopBudgetExceeded):
		fmt.Println("  (stopped: too many tool rounds)")
	case errors.Is(err, ak.ErrCancelled):
		fmt.Println("  (cancelled)")
	case errors.Is(err, ak.ErrBackendTimeout):
		fmt.Println("  (the model did not answer in time; ask again to retry)")
	case errors.Is(err, ak.ErrAuth):
		fmt.Printf("  (authentication failed: %v)\n", err)
	case errors.Is(err, ak.ErrBackendUnavailable):
		fmt.Printf("  (model backend unavailable: %v)\n", err)
	default:
		fmt.Printf("  Error: %v\n", err)
	}
}
