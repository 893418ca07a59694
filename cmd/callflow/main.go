// Command callflow is an interactive chat REPL over the callflow engine.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dkoval/callflow"
	"github.com/dkoval/callflow/config"
	"github.com/dkoval/callflow/engine"
	"github.com/dkoval/callflow/mcp"
	"github.com/dkoval/callflow/sandbox"
	"github.com/dkoval/callflow/store"
)

func main() {
	configPath := flag.String("config", "", "config file path (default ./callflow.yaml)")
	chatID := flag.String("chat", "", "resume an existing chat by id")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), *configPath, *chatID, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, chatID string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if chatID == "" {
		project, err := db.CreateProject(ctx, "default")
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		chat, err := db.CreateChat(ctx, project.ID, "cli session")
		if err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
		chatID = chat.ID
	}

	providers := connectProviders(ctx, cfg, logger)
	registry := callflow.NewRegistry(providers...)

	safe, err := db.SandboxSafe(ctx)
	if err != nil {
		return fmt.Errorf("read sandbox setting: %w", err)
	}
	sandboxOpts := []sandbox.Option{
		sandbox.WithTimeout(time.Duration(cfg.Sandbox.TimeoutMS) * time.Millisecond),
	}
	if !safe || !cfg.Sandbox.Safe {
		sandboxOpts = append(sandboxOpts, sandbox.WithUnsafe())
	}

	client := engine.NewClient(cfg.Engine.BaseURL, apiKey(cfg), cfg.Engine.Model)

	loopOpts := []callflow.LoopOption{
		callflow.WithLogger(logger),
		callflow.WithMaxTurns(cfg.MaxTurns),
		callflow.WithStore(db, chatID),
		callflow.WithSettings(db),
		callflow.WithEvaler(sandbox.New(sandboxOpts...)),
		callflow.WithCrashMarker(cfg.Engine.CrashMarker),
	}
	if cfg.Prompt.System != "" {
		loopOpts = append(loopOpts, callflow.WithSystemPrompt(cfg.Prompt.System))
	}
	loop := callflow.NewLoop(client, registry, loopOpts...)

	fmt.Printf("callflow chat %s (model %s). Type /quit to exit.\n", chatID, cfg.Engine.Model)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		turn, err := loop.RunTurn(ctx, line)
		if err != nil {
			logger.Error("turn failed", "error", err)
			continue
		}
		turn, err = settlePending(ctx, loop, turn, scanner)
		if err != nil {
			logger.Error("turn failed", "error", err)
			continue
		}
		fmt.Println(turn.Content)
	}
}

// settlePending prompts for approval decisions until the turn completes.
func settlePending(ctx context.Context, loop *callflow.Loop, turn *callflow.Turn, scanner *bufio.Scanner) (*callflow.Turn, error) {
	for turn.Pending != nil {
		fmt.Println("The assistant wants to run:")
		for _, c := range turn.Pending.Calls {
			fmt.Printf("  %s %s\n", c.Name, c.Arguments)
		}
		fmt.Print("Allow? [y]once / [s]ession / [a]lways / [n]o: ")
		if !scanner.Scan() {
			return nil, scanner.Err()
		}
		var d callflow.Decision
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "once":
			d = callflow.DecisionOnce
		case "s", "session":
			d = callflow.DecisionSession
		case "a", "always":
			d = callflow.DecisionAlways
		default:
			d = callflow.DecisionDeny
		}
		next, err := loop.Resume(ctx, d)
		if err != nil {
			return nil, err
		}
		turn = next
	}
	return turn, nil
}

// connectProviders dials every enabled MCP server. Connection failures are
// logged and the server is skipped; it never blocks the session.
func connectProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) []callflow.Provider {
	var providers []callflow.Provider
	for _, pc := range cfg.Providers {
		opts := []mcp.Option{
			mcp.WithTransportType(pc.Transport),
			mcp.WithHeaders(pc.Headers),
		}
		if pc.Command != "" {
			opts = append(opts, mcp.WithCommand(pc.Command, pc.Args...))
		}
		if !pc.Enabled {
			opts = append(opts, mcp.WithDisabled())
		}
		server := mcp.New(pc.Name, pc.URL, opts...)
		if pc.Enabled {
			if err := server.Connect(ctx); err != nil {
				logger.Warn("mcp connect failed", "server", pc.Name, "error", err)
			}
		}
		providers = append(providers, callflow.Wrap(server, callflow.WithRecovery(), callflow.WithLogging(logger)))
	}
	return providers
}

func apiKey(cfg *config.Config) string {
	if cfg.Engine.APIKey != "" {
		return cfg.Engine.APIKey
	}
	return os.Getenv("OPENROUTER_API_KEY")
}
