// Copyright (c) Microsoft. All rights reserved.

// Command web serves a browser page for trying the agent profiles.
//
// Usage:
//
//	go run ./samples/web                      # offline backend on 127.0.0.1:8080
//	go run ./samples/web -config agentkit.toml
//	go run ./samples/web -addr :9000
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentplayground/agentkit/config"
	"github.com/agentplayground/agentkit/providers"
	"github.com/agentplayground/agentkit/runner"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	addr := flag.String("addr", "", "listen address (overrides [server] addr)")
	ping := flag.Bool("ping", false, "check the model backend before serving")
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
		log.Fatalf("[web] config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, provider, closeAll, err := runner.FromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("[web] startup: %v", err)
	}
	defer closeAll()

	if *ping {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := provider.Ping(pingCtx)
		cancel()
		switch {
		case errors.Is(err, providers.ErrNoPing):
		case err != nil:
			log.Fatalf("[web] backend %s unreachable: %v", provider.Name, err)
		default:
			log.Printf("[web] backend %s reachable", provider.Name)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newChatServer(r, provider.Name),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[web] provider %s, model %s", provider.Name, provider.Model)
	log.Printf("[web] listening on http://%s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[web] server error: %v", err)
	}
}
