// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aura-tui/internal/export"
	"github.com/jeranaias/aura-tui/internal/history"
	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/store"
)

// =============================================================================
// INPUT BAR COMMANDS
// =============================================================================

// Lines starting with "/" in the input bar are commands, not chat messages.
// Settings changes go through the store so the backend session is re-seeded
// the same way the non-TUI client does it.

// handleSlashCommand executes an input-bar command. The bool result is false
// when the text is not a command and should be sent as a chat message.
func (m *Model) handleSlashCommand(text string) (tea.Cmd, bool) {
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}
	parts := strings.Fields(text)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/new":
		return newChatCmd(m.store), true

	case "/rename":
		if len(args) == 0 {
			return noticeCmd("", errors.New("usage: /rename <new title>")), true
		}
		return m.renameCmd(strings.Join(args, " ")), true

	case "/color":
		if len(args) == 0 {
			return noticeCmd("", errors.New("usage: /color <#RRGGBB>")), true
		}
		return m.recolorCmd(args[0]), true

	case "/persona":
		if len(args) == 0 {
			return noticeCmd("persona: "+m.store.Settings().Persona.String(), nil), true
		}
		return m.personaCmd(args[0]), true

	case "/search":
		if len(args) == 0 {
			return noticeCmd("", errors.New("usage: /search on|off")), true
		}
		return m.searchCmd(args[0]), true

	case "/export":
		format := "md"
		if len(args) > 0 {
			format = strings.ToLower(args[0])
		}
		return m.exportCmd(format), true

	case "/find":
		if len(args) == 0 {
			m.showRecentMessages()
			return nil, true
		}
		m.showSearchResults(strings.Join(args, " "))
		return nil, true

	default:
		return noticeCmd("", fmt.Errorf("unknown command %s", command)), true
	}
}

// noticeCmd wraps a fixed outcome as a command.
func noticeCmd(text string, err error) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg{Text: text, Err: err}
	}
}

func (m *Model) renameCmd(title string) tea.Cmd {
	s, id := m.store, m.store.ActiveID()
	return func() tea.Msg {
		if id == "" {
			return noticeMsg{Err: store.ErrNoActiveConversation}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Rename(ctx, id, title); err != nil {
			return noticeMsg{Err: err}
		}
		return noticeMsg{Text: "renamed"}
	}
}

func (m *Model) recolorCmd(color string) tea.Cmd {
	s, id := m.store, m.store.ActiveID()
	return func() tea.Msg {
		if id == "" {
			return noticeMsg{Err: store.ErrNoActiveConversation}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.SetColor(ctx, id, color); err != nil {
			return noticeMsg{Err: err}
		}
		return noticeMsg{Text: "color updated"}
	}
}

func (m *Model) personaCmd(name string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		persona := model.Persona(strings.ToLower(name))
		if !persona.Valid() {
			return noticeMsg{Err: fmt.Errorf("unknown persona %q", name)}
		}
		settings := s.Settings()
		settings.Persona = persona
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.UpdateSettings(ctx, settings); err != nil {
			return noticeMsg{Err: err}
		}
		return noticeMsg{Text: "persona: " + persona.String()}
	}
}

func (m *Model) searchCmd(state string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		settings := s.Settings()
		switch strings.ToLower(state) {
		case "on":
			settings.SearchEnabled = true
		case "off":
			settings.SearchEnabled = false
		default:
			return noticeMsg{Err: errors.New("usage: /search on|off")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.UpdateSettings(ctx, settings); err != nil {
			return noticeMsg{Err: err}
		}
		return noticeMsg{Text: "web search " + strings.ToLower(state)}
	}
}

func (m *Model) exportCmd(format string) tea.Cmd {
	// Snapshot now; the export goroutine must not read live messages.
	conv := m.store.ActiveSnapshot()
	opts := export.DefaultOptions()
	opts.DisplayName = m.cfg.Chat.DisplayName
	return func() tea.Msg {
		if conv == nil {
			return noticeMsg{Err: store.ErrNoActiveConversation}
		}
		var path string
		var err error
		switch format {
		case "md", "markdown":
			path, err = export.Markdown(conv, opts)
		case "json":
			path, err = export.JSON(conv, opts)
		default:
			err = fmt.Errorf("unknown export format %q (md, json)", format)
		}
		if err != nil {
			return noticeMsg{Err: err}
		}
		return noticeMsg{Text: "exported to " + path}
	}
}

// showSearchResults runs a full-text history search and replaces the viewport
// content with the result list. The next transcript refresh restores the
// conversation view.
func (m *Model) showSearchResults(query string) {
	if m.index == nil {
		m.statusErr = "history indexing is disabled"
		return
	}
	results, err := m.index.Search(query, history.DefaultSearchOptions())
	if err != nil {
		m.statusErr = err.Error()
		return
	}
	m.statusErr = ""
	m.notice = fmt.Sprintf("%d matches for %q", len(results), query)
	if m.ready {
		m.viewport.SetContent(m.renderSearchResults(query, results))
		m.viewport.GotoTop()
	}
}

// showRecentMessages lists the newest indexed messages; it is what /find
// does when run without a query.
func (m *Model) showRecentMessages() {
	if m.index == nil {
		m.statusErr = "history indexing is disabled"
		return
	}
	results, err := m.index.Recent(0)
	if err != nil {
		m.statusErr = err.Error()
		return
	}
	m.statusErr = ""
	m.notice = fmt.Sprintf("%d recent messages", len(results))
	if m.ready {
		m.viewport.SetContent(m.renderSearchResults("recent", results))
		m.viewport.GotoTop()
	}
}

// indexFinishedTurn records the completed exchange in the search index. The
// snapshot keeps index writes off the store's live message slice.
func (m *Model) indexFinishedTurn(convID string) {
	if m.index == nil || convID == "" {
		return
	}
	conv := m.store.Snapshot(convID)
	if conv == nil || len(conv.Messages) < 2 {
		return
	}
	user := conv.Messages[len(conv.Messages)-2]
	reply := conv.Messages[len(conv.Messages)-1]
	if reply.IsError {
		return
	}
	if err := m.index.IndexTurn(conv, user, reply); err != nil {
		m.logger.Printf("history index failed for %s: %v", convID, err)
	}
}
