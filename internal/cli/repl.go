// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"

	"github.com/jeranaias/aura-tui/internal/config"
	"github.com/jeranaias/aura-tui/internal/export"
	"github.com/jeranaias/aura-tui/internal/history"
	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/send"
	"github.com/jeranaias/aura-tui/internal/store"
)

// REPL is the interactive non-TUI chat loop.
type REPL struct {
	store    *store.Store
	pipeline *send.Pipeline
	index    *history.Index // nil when history indexing is disabled
	cfg      *config.Config
	render   *renderer
	input    *InputReader
}

// NewREPL creates the interactive chat loop. index may be nil.
func NewREPL(s *store.Store, pipeline *send.Pipeline, index *history.Index, cfg *config.Config) *REPL {
	return &REPL{
		store:    s,
		pipeline: pipeline,
		index:    index,
		cfg:      cfg,
		render:   newRenderer(cfg.UI.Markdown),
		input:    NewInputReader(),
	}
}

// Run executes the REPL until the user exits. Ctrl+C cancels the in-flight
// turn; a second Ctrl+C at the prompt exits.
func (r *REPL) Run(ctx context.Context) error {
	defer r.input.Close()

	printInfo("Aura chat. Type /help for commands, /exit to leave.")
	fmt.Println()

	var cancelMu sync.Mutex
	var cancelTurn context.CancelFunc

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			cancelMu.Lock()
			if cancelTurn != nil {
				cancelTurn()
			}
			cancelMu.Unlock()
		}
	}()

	for {
		input, err := r.input.ReadLine(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				return nil
			}
			// EOF exits cleanly
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := r.handleCommand(ctx, input)
			if err != nil {
				printError(err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		sendCtx, cancel := context.WithCancel(ctx)
		cancelMu.Lock()
		cancelTurn = cancel
		cancelMu.Unlock()
		if err := r.sendTurn(sendCtx, input); err != nil {
			printError(err)
		}
		cancel()
		cancelMu.Lock()
		cancelTurn = nil
		cancelMu.Unlock()
	}
}

// =============================================================================
// TURN STREAMING
// =============================================================================

// sendTurn runs one turn, printing streamed text as it arrives.
func (r *REPL) sendTurn(ctx context.Context, text string) error {
	printed := 0
	started := false

	r.pipeline.OnUpdate = func(conversationID string) {
		conv := r.store.Get(conversationID)
		if conv == nil {
			return
		}
		last := conv.LastMessage()
		if last == nil || last.Role != model.RoleAssistant || !last.IsStreaming {
			return
		}
		if !started {
			fmt.Println(labelStyle.Render("Aura:"))
			started = true
		}
		content := last.DisplayContent()
		if len(content) > printed {
			fmt.Print(content[printed:])
			printed = len(content)
		}
	}
	defer func() { r.pipeline.OnUpdate = nil }()

	convID, err := r.pipeline.Send(ctx, text)
	if err != nil {
		return err
	}
	if convID == "" {
		return nil
	}
	if started {
		fmt.Println()
	}

	conv := r.store.Get(convID)
	if conv == nil {
		return nil
	}
	last := conv.LastMessage()
	if last == nil {
		return nil
	}
	if last.IsError {
		fmt.Println(errorStyle.Render("[Aura]") + " " + last.Content)
		return nil
	}
	printSources(last)
	r.indexTurn(conv)
	fmt.Println()
	return nil
}

// indexTurn records the completed turn in the search index.
func (r *REPL) indexTurn(conv *model.Conversation) {
	if r.index == nil {
		return
	}
	messages := conv.Messages
	if len(messages) < 2 {
		return
	}
	user := messages[len(messages)-2]
	reply := messages[len(messages)-1]
	if err := r.index.IndexTurn(conv, user, reply); err != nil {
		printInfo("history index unavailable: " + err.Error())
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand dispatches a slash command. The bool result is false when
// the REPL should exit.
func (r *REPL) handleCommand(ctx context.Context, input string) (bool, error) {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/exit", "/quit":
		return false, nil

	case "/help":
		r.printHelp()
		return true, nil

	case "/new":
		r.store.StartNew(ctx)
		printInfo("Started a new chat.")
		return true, nil

	case "/list":
		r.printConversations()
		return true, nil

	case "/switch":
		if len(args) == 0 {
			return true, errors.New("usage: /switch <number|id>")
		}
		return true, r.switchConversation(ctx, args[0])

	case "/rename":
		if len(args) == 0 {
			return true, errors.New("usage: /rename <new title>")
		}
		return true, r.renameActive(ctx, strings.Join(args, " "))

	case "/color":
		if len(args) == 0 {
			return true, errors.New("usage: /color <#RRGGBB>")
		}
		return true, r.recolorActive(ctx, args[0])

	case "/delete":
		return true, r.deleteActive(ctx)

	case "/persona":
		if len(args) == 0 {
			printInfo("Current persona: " + r.store.Settings().Persona.String())
			return true, nil
		}
		return true, r.setPersona(ctx, args[0])

	case "/search":
		if len(args) == 0 {
			return true, errors.New("usage: /search on|off")
		}
		return true, r.setSearch(ctx, args[0])

	case "/find":
		if len(args) == 0 {
			return true, r.recentMessages()
		}
		return true, r.findMessages(strings.Join(args, " "))

	case "/export":
		format := "md"
		if len(args) > 0 {
			format = strings.ToLower(args[0])
		}
		return true, r.exportActive(format)

	case "/replay":
		r.replayActive()
		return true, nil

	default:
		return true, fmt.Errorf("unknown command %s (try /help)", command)
	}
}

func (r *REPL) printHelp() {
	help := [][2]string{
		{"/new", "start a new chat"},
		{"/list", "list conversations"},
		{"/switch <n|id>", "switch to a conversation"},
		{"/rename <title>", "rename the active conversation"},
		{"/color <#RRGGBB>", "set the conversation color tag"},
		{"/delete", "delete the active conversation"},
		{"/persona [name]", "show or set the assistant persona"},
		{"/search on|off", "toggle grounded web search"},
		{"/find [query]", "full-text search across chats; recent messages without a query"},
		{"/export [md|json]", "export the active conversation to a file"},
		{"/replay", "reprint the active conversation"},
		{"/exit", "leave the chat"},
	}
	for _, entry := range help {
		fmt.Printf("  %-20s %s\n", promptStyle.Render(entry[0]), entry[1])
	}
}

func (r *REPL) printConversations() {
	metas := r.store.Index()
	if len(metas) == 0 {
		printInfo("No conversations yet.")
		return
	}
	activeID := r.store.ActiveID()
	for i, meta := range metas {
		marker := " "
		if meta.ID == activeID {
			marker = promptStyle.Render("*")
		}
		fmt.Printf("%s %2d. %s  %s\n", marker, i+1, meta.Title,
			infoStyle.Render(meta.LastUpdated.Format("Jan 2 15:04")))
	}
}

func (r *REPL) switchConversation(ctx context.Context, ref string) error {
	id := ref
	if n, err := strconv.Atoi(ref); err == nil {
		metas := r.store.Index()
		if n < 1 || n > len(metas) {
			return fmt.Errorf("no conversation %d", n)
		}
		id = metas[n-1].ID
	}
	if err := r.store.Select(ctx, id); err != nil {
		return err
	}
	r.replayActive()
	return nil
}

func (r *REPL) renameActive(ctx context.Context, title string) error {
	conv := r.store.Active()
	if conv == nil {
		return store.ErrNoActiveConversation
	}
	return r.store.Rename(ctx, conv.ID, title)
}

func (r *REPL) recolorActive(ctx context.Context, color string) error {
	conv := r.store.Active()
	if conv == nil {
		return store.ErrNoActiveConversation
	}
	return r.store.SetColor(ctx, conv.ID, color)
}

func (r *REPL) deleteActive(ctx context.Context) error {
	conv := r.store.Active()
	if conv == nil {
		return store.ErrNoActiveConversation
	}
	if r.index != nil {
		if err := r.index.RemoveConversation(conv.ID); err != nil {
			printInfo("history index unavailable: " + err.Error())
		}
	}
	if err := r.store.Delete(ctx, conv.ID); err != nil {
		return err
	}
	printInfo("Deleted.")
	return nil
}

func (r *REPL) setPersona(ctx context.Context, name string) error {
	persona := model.Persona(strings.ToLower(name))
	if !persona.Valid() {
		return fmt.Errorf("unknown persona %q (friendly, professional, technical, creative)", name)
	}
	settings := r.store.Settings()
	settings.Persona = persona
	return r.store.UpdateSettings(ctx, settings)
}

func (r *REPL) setSearch(ctx context.Context, state string) error {
	settings := r.store.Settings()
	switch strings.ToLower(state) {
	case "on":
		settings.SearchEnabled = true
	case "off":
		settings.SearchEnabled = false
	default:
		return errors.New("usage: /search on|off")
	}
	if err := r.store.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	printInfo("Web search " + state + ".")
	return nil
}

func (r *REPL) findMessages(query string) error {
	if r.index == nil {
		return errors.New("history indexing is disabled (storage.history_index_enabled)")
	}
	results, err := r.index.Search(query, history.DefaultSearchOptions())
	if err != nil {
		return err
	}
	if len(results) == 0 {
		printInfo("No matches.")
		return nil
	}
	for _, res := range results {
		fmt.Printf("%s %s\n  %s\n",
			promptStyle.Render(res.ConversationTitle),
			infoStyle.Render(res.Timestamp.Format("Jan 2 15:04")),
			res.Snippet)
	}
	return nil
}

// recentMessages is /find without a query: the newest indexed messages.
func (r *REPL) recentMessages() error {
	if r.index == nil {
		return errors.New("history indexing is disabled (storage.history_index_enabled)")
	}
	results, err := r.index.Recent(0)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		printInfo("Nothing indexed yet.")
		return nil
	}
	for _, res := range results {
		fmt.Printf("%s %s\n  %s\n",
			promptStyle.Render(res.ConversationTitle),
			infoStyle.Render(res.Timestamp.Format("Jan 2 15:04")),
			res.Snippet)
	}
	return nil
}

func (r *REPL) exportActive(format string) error {
	conv := r.store.ActiveSnapshot()
	if conv == nil {
		return store.ErrNoActiveConversation
	}
	opts := export.DefaultOptions()
	opts.DisplayName = r.cfg.Chat.DisplayName

	var path string
	var err error
	switch format {
	case "md", "markdown":
		path, err = export.Markdown(conv, opts)
	case "json":
		path, err = export.JSON(conv, opts)
	default:
		return fmt.Errorf("unknown export format %q (md, json)", format)
	}
	if err != nil {
		return err
	}
	printInfo("Exported to " + path)
	return nil
}

func (r *REPL) replayActive() {
	conv := r.store.Active()
	if conv == nil {
		printInfo("No active conversation.")
		return
	}
	fmt.Println(infoStyle.Render("── " + conv.DisplayTitle() + " ──"))
	for _, msg := range r.store.ActiveMessages() {
		r.render.PrintMessage(msg, r.cfg.Chat.DisplayName)
	}
}
