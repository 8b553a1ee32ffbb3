// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// chromeHeight is the number of rows taken by the header, input area, and
// status bar around the transcript viewport.
const chromeHeight = 5

// Update handles incoming messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TurnUpdateMsg:
		m.refreshTranscript()
		return m, nil

	case TurnFinishedMsg:
		if msg.Err != nil {
			m.statusErr = msg.Err.Error()
		} else {
			m.indexFinishedTurn(msg.ConversationID)
		}
		m.refreshTranscript()
		return m, nil

	case ConversationSelectedMsg:
		if msg.Err != nil {
			m.statusErr = msg.Err.Error()
		} else {
			m.statusErr = ""
			m.syncSidebarIndex()
		}
		m.refreshTranscript()
		return m, nil

	case ConversationDeletedMsg:
		if msg.Err != nil {
			m.statusErr = msg.Err.Error()
		}
		m.syncSidebarIndex()
		m.refreshTranscript()
		return m, nil

	case noticeMsg:
		if msg.Err != nil {
			m.statusErr = msg.Err.Error()
		} else {
			m.statusErr = ""
			m.notice = msg.Text
		}
		m.syncSidebarIndex()
		m.refreshTranscript()
		return m, nil

	case BackendStatusMsg:
		m.backendUp = msg.Up
		return m, nil

	case statusTickMsg:
		return m, tea.Batch(CheckBackendCmd(m.gw), statusTickCmd())

	case spinner.TickMsg:
		if !m.turnOpen() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshTranscript()
		return m, cmd
	}

	return m.updateComponents(msg)
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	viewportWidth := msg.Width
	if m.sidebarVisible() {
		viewportWidth -= sidebarWidth
	}
	viewportHeight := msg.Height - chromeHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(viewportWidth, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = viewportWidth
		m.viewport.Height = viewportHeight
	}
	m.input.Width = msg.Width - 6

	m.rebuildRenderer(m.transcriptWidth())
	m.refreshTranscript()
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.NewChat):
		m.statusErr = ""
		return m, newChatCmd(m.store)

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		return m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})

	case key.Matches(msg, m.keys.PrevConv):
		if m.sidebarVisible() {
			return m.moveSidebar(-1)
		}

	case key.Matches(msg, m.keys.NextConv):
		if m.sidebarVisible() {
			return m.moveSidebar(1)
		}

	case key.Matches(msg, m.keys.DeleteConv):
		if m.sidebarVisible() {
			if metas := m.store.Index(); m.sidebarIndex < len(metas) {
				return m, deleteConversationCmd(m.store, m.index, metas[m.sidebarIndex].ID)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m.updateComponents(msg)
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	// One turn at a time. The input stays visible but submissions are
	// ignored until the active turn closes.
	if m.turnOpen() {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.statusErr = ""
	m.notice = ""
	if cmd, handled := m.handleSlashCommand(text); handled {
		return m, cmd
	}
	m.runner.Submit(text)
	return m, m.spinner.Tick
}

// moveSidebar shifts the sidebar highlight and loads the newly selected
// conversation.
func (m *Model) moveSidebar(delta int) (tea.Model, tea.Cmd) {
	metas := m.store.Index()
	if len(metas) == 0 {
		return m, nil
	}
	m.sidebarIndex += delta
	if m.sidebarIndex < 0 {
		m.sidebarIndex = 0
	}
	if m.sidebarIndex >= len(metas) {
		m.sidebarIndex = len(metas) - 1
	}
	target := metas[m.sidebarIndex]
	if target.ID == m.store.ActiveID() {
		return m, nil
	}
	return m, selectConversationCmd(m.store, target.ID)
}

// syncSidebarIndex realigns the highlight with the active conversation after
// selection or deletion changed the index.
func (m *Model) syncSidebarIndex() {
	metas := m.store.Index()
	activeID := m.store.ActiveID()
	for i, meta := range metas {
		if meta.ID == activeID {
			m.sidebarIndex = i
			return
		}
	}
	m.sidebarIndex = 0
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// refreshTranscript re-renders the message area and keeps the view pinned to
// the newest content.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
