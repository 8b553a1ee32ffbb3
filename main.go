// aura - terminal client for the Aura conversational assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aura-tui/internal/cache"
	"github.com/jeranaias/aura-tui/internal/cli"
	"github.com/jeranaias/aura-tui/internal/config"
	"github.com/jeranaias/aura-tui/internal/gateway"
	"github.com/jeranaias/aura-tui/internal/history"
	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/send"
	"github.com/jeranaias/aura-tui/internal/store"
	"github.com/jeranaias/aura-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		chatMode    = flag.Bool("chat", false, "run the line-based REPL instead of the TUI")
		configPath  = flag.String("config", "", "path to a config file (TOML or JSON)")
		backendURL  = flag.String("backend", "", "backend URL override")
		showVersion = flag.Bool("version", false, "print version and exit")
		verbose     = flag.Bool("verbose", false, "log diagnostics to stderr")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("aura %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *backendURL != "" {
		cfg.Backend.URL = *backendURL
	}

	logger := log.New(os.Stderr, "aura: ", log.LstdFlags)
	if !*verbose {
		logger.SetOutput(logSink(cfg))
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx := context.Background()

	switch {
	case flag.NArg() > 0:
		// One-shot: aura "question"
		err = cli.Ask(ctx, app.store, app.pipeline, cfg, strings.Join(flag.Args(), " "))
	case !cli.IsInteractive():
		// Piped: echo question | aura
		var text string
		if text, err = cli.ReadPiped(os.Stdin); err == nil {
			err = cli.Ask(ctx, app.store, app.pipeline, cfg, text)
		}
	case *chatMode:
		err = cli.NewREPL(app.store, app.pipeline, app.index, cfg).Run(ctx)
	default:
		err = runTUI(app, cfg, logger)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from an explicit path or the default
// locations.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// logSink returns the diagnostic log destination for non-verbose runs: a
// file in the data directory, or discard when that is unavailable.
func logSink(cfg *config.Config) io.Writer {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return io.Discard
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "aura.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return io.Discard
	}
	return f
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app bundles the shared subsystems both UI modes run on.
type app struct {
	store    *store.Store
	gw       *gateway.Client
	pipeline *send.Pipeline
	index    *history.Index // nil when disabled
	watcher  *config.Watcher
}

// buildApp wires the cache, gateway, store, send pipeline, and optional
// history index from configuration.
func buildApp(cfg *config.Config, logger *log.Logger) (*app, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}

	fileCache, err := cache.NewFileCache(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening local cache: %w", err)
	}

	gw := gateway.NewClient(&gateway.Config{
		BaseURL:           cfg.Backend.URL,
		Timeout:           time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
		UserID:            store.LoadOrCreateAnonID(fileCache),
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Logger:            logger,
	})

	s := store.New(fileCache, gw, logger)
	s.SeedSettings(model.Settings{
		Persona:       model.Persona(cfg.Chat.Persona),
		SearchEnabled: cfg.Chat.SearchEnabled,
		DisplayName:   cfg.Chat.DisplayName,
	})

	// Pull the server-side conversation list so a fresh machine still shows
	// its history. Best-effort: offline startup proceeds on the cache alone.
	syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := s.SyncRemote(syncCtx); err != nil {
		logger.Printf("remote conversation list unavailable: %v", err)
	}
	cancel()

	var index *history.Index
	if cfg.Storage.HistoryIndexEnabled {
		index, err = history.Open(filepath.Join(dataDir, "history.db"))
		if err != nil {
			// Search degrades gracefully; chatting must not
			logger.Printf("history index unavailable: %v", err)
			index = nil
		}
	}
	if index != nil {
		// An empty index alongside cached history means it was lost or
		// newly enabled; rebuild it from the cache.
		if n, err := index.Count(); err == nil && n == 0 {
			if convs := s.Snapshots(); len(convs) > 0 {
				if err := index.Rebuild(convs); err != nil {
					logger.Printf("history index rebuild failed: %v", err)
				}
			}
		}
	}

	return &app{
		store:    s,
		gw:       gw,
		pipeline: send.New(s, gw, logger),
		index:    index,
	}, nil
}

// Close releases the history index and config watcher.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: closing history index: %v\n", err)
		}
	}
}

// =============================================================================
// TUI MODE
// =============================================================================

// runTUI starts the full-screen interface.
func runTUI(a *app, cfg *config.Config, logger *log.Logger) error {
	runner := chat.NewRunner(a.pipeline)
	m := chat.NewModel(a.store, a.gw, runner, cfg, a.index, logger)

	program := tea.NewProgram(m, tea.WithAltScreen())
	runner.Attach(program)

	// Live-reload the config file while the TUI runs. Backend and storage
	// changes need a restart; UI and chat preferences apply in place.
	if path, err := config.ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			watcher, err := config.NewWatcher(path, func(updated *config.Config) {
				cfg.UI = updated.UI
				cfg.Chat = updated.Chat

				// Persona and search changes go through the store so the
				// backend session is re-seeded with the new settings.
				settings := a.store.Settings()
				persona := model.Persona(updated.Chat.Persona)
				if persona.Valid() && (settings.Persona != persona ||
					settings.SearchEnabled != updated.Chat.SearchEnabled) {
					settings.Persona = persona
					settings.SearchEnabled = updated.Chat.SearchEnabled
					ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
					defer cancel()
					if err := a.store.UpdateSettings(ctx, settings); err != nil {
						logger.Printf("applying reloaded chat settings: %v", err)
						return
					}
					program.Send(chat.ConversationSelectedMsg{ID: a.store.ActiveID()})
				}
			})
			if err == nil && watcher.Watch() == nil {
				a.watcher = watcher
			}
		}
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running aura: %w", err)
	}
	return nil
}
