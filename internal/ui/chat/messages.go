// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aura-tui/internal/gateway"
	"github.com/jeranaias/aura-tui/internal/history"
	"github.com/jeranaias/aura-tui/internal/store"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// TurnUpdateMsg signals that the named conversation changed while a turn is
// in flight (user message applied, chunk appended, sources attached).
type TurnUpdateMsg struct {
	ConversationID string
}

// TurnFinishedMsg signals that a turn completed, successfully or not. Err is
// only set when the turn could not start; stream failures surface inside the
// conversation as a notice instead.
type TurnFinishedMsg struct {
	ConversationID string
	Err            error
}

// BackendStatusMsg reports the result of a backend health probe.
type BackendStatusMsg struct {
	Up  bool
	Err error
}

// ConversationSelectedMsg signals that a sidebar selection finished loading.
type ConversationSelectedMsg struct {
	ID  string
	Err error
}

// ConversationDeletedMsg signals that a conversation was removed.
type ConversationDeletedMsg struct {
	ID  string
	Err error
}

// statusTickMsg drives the periodic backend health probe.
type statusTickMsg time.Time

// noticeMsg carries the outcome of an input-bar command back to the UI. Text
// is shown in the status bar on success, Err on failure.
type noticeMsg struct {
	Text string
	Err  error
}

// =============================================================================
// COMMANDS
// =============================================================================

// backendProbeInterval is how often the UI re-checks backend health.
const backendProbeInterval = 15 * time.Second

// CheckBackendCmd probes the backend health endpoint once.
func CheckBackendCmd(gw *gateway.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := gw.CheckRunning(ctx); err != nil {
			return BackendStatusMsg{Up: false, Err: err}
		}
		return BackendStatusMsg{Up: true}
	}
}

// statusTickCmd schedules the next backend probe.
func statusTickCmd() tea.Cmd {
	return tea.Tick(backendProbeInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// selectConversationCmd loads a conversation and makes it active.
func selectConversationCmd(s *store.Store, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := s.Select(ctx, id)
		return ConversationSelectedMsg{ID: id, Err: err}
	}
}

// newChatCmd clears the active conversation and re-seeds the backend
// session with an empty history.
func newChatCmd(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.StartNew(ctx)
		return ConversationSelectedMsg{}
	}
}

// deleteConversationCmd removes a conversation locally, remotely, and from
// the search index. Index removal is best-effort; a stale row never blocks
// the deletion itself.
func deleteConversationCmd(s *store.Store, idx *history.Index, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if idx != nil {
			_ = idx.RemoveConversation(id)
		}
		err := s.Delete(ctx, id)
		return ConversationDeletedMsg{ID: id, Err: err}
	}
}
