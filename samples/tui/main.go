// Copyright (c) Microsoft. All rights reserved.

// Command tui is a full-screen terminal chat with the agent profiles.
//
//	go run ./samples/tui -profile file_manager
//
// Keys: enter sends, ctrl+p picks a profile, ctrl+y copies the last answer,
// ctrl+r resets the chat, ctrl+e exports it, esc cancels a running round,
// ctrl+c quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/agentplayground/agentkit/catalog"
	"github.com/agentplayground/agentkit/config"
	"github.com/agentplayground/agentkit/runner"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	profileID := flag.String("profile", catalog.Default, "agent profile to start with")
	flag.Parse()

	_ = godotenv.Load()

	// The screen belongs to the program; logs go to a file or nowhere.
	if os.Getenv("DEBUG") != "" {
		f, err := tea.LogToFile("agentkit-tui.log", "tui")
		if err != nil {
			log.Fatalf("log file: %v", err)
		}
		defer f.Close()
		slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	profile, err := catalog.Lookup(*profileID)
	if err != nil {
		log.Fatal(err)
	}

	r, provider, closeAll, err := runner.FromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer closeAll()

	app := newApp(r, profile, fmt.Sprintf("%s (%s)", provider.Name, provider.Model))
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running tui: %v\n", err)
		os.Exit(1)
	}
}
