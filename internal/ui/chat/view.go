// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/aura-tui/internal/history"
	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/ui/styles"
)

// View renders the full frame.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting Aura..."
	}

	body := m.viewport.View()
	if m.sidebarVisible() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderInput(),
		m.renderStatusBar(),
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m *Model) renderHeader() string {
	indicator := styles.RenderOffline()
	if m.backendUp {
		indicator = styles.RenderOnline()
	}

	title := "New Chat"
	if meta, ok := m.store.ActiveMeta(); ok {
		title = meta.Title
	}

	left := m.theme.HeaderBrand.Render("Aura") + "  " +
		m.theme.HeaderTitle.Render(title)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(indicator) - 4
	if gap < 1 {
		gap = 1
	}

	return m.theme.Header.Width(m.width).Render(
		left + strings.Repeat(" ", gap) + indicator,
	)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m *Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Conversations"))
	b.WriteString("\n\n")

	metas := m.store.Index()
	if len(metas) == 0 {
		b.WriteString(m.theme.SidebarMeta.Render("No conversations yet"))
	}

	activeID := m.store.ActiveID()
	for i, meta := range metas {
		title := runewidth.Truncate(meta.Title, sidebarWidth-6, "…")
		dot := lipgloss.NewStyle().
			Foreground(styles.ConversationColor(meta.Color)).
			Render("●")

		line := dot + " " + title
		switch {
		case i == m.sidebarIndex:
			line = m.theme.SidebarItemSelected.Render(line)
		case meta.ID == activeID:
			line = m.theme.SidebarItemActive.Render(line)
		default:
			line = m.theme.SidebarItem.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(sidebarWidth - 1).
		Height(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the active conversation's messages.
func (m *Model) renderTranscript() string {
	messages := m.store.ActiveMessages()
	if len(messages) == 0 {
		return m.theme.InputPlaceholder.Render("\n  Start a conversation below.")
	}

	var parts []string
	for _, msg := range messages {
		parts = append(parts, m.renderMessage(msg))
	}
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderMessage(msg *model.Message) string {
	switch {
	case msg.IsError:
		label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		body := m.theme.ErrorNotice.Width(m.transcriptWidth()).Render(msg.Content)
		return label + "\n" + body

	case msg.Role == model.RoleUser:
		label := m.theme.UserLabel.Render(m.userLabel())
		body := m.theme.UserText.Width(m.transcriptWidth()).Render(msg.Content)
		return label + "\n" + body

	default:
		return m.renderAssistant(msg)
	}
}

func (m *Model) renderAssistant(msg *model.Message) string {
	label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	if msg.IsStreaming {
		label += " " + m.spinner.View()
	}

	content := msg.DisplayContent()
	if content == "" && msg.IsStreaming {
		content = "..."
	}

	// Markdown rendering is skipped mid-stream: partial markdown renders
	// unstably and the full pass happens on finalize anyway.
	if m.renderer != nil && !msg.IsStreaming {
		if rendered, err := m.renderer.Render(content); err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	}
	if msg.IsStreaming {
		content += m.theme.StreamCursor.Render("▌")
	}

	body := m.theme.AssistantText.Width(m.transcriptWidth()).Render(content)
	out := label + "\n" + body

	if len(msg.Sources) > 0 {
		var sources []string
		for _, src := range msg.Sources {
			name := src.Title
			if name == "" {
				name = src.URL
			}
			sources = append(sources, "  ↳ "+m.theme.SourceLink.Render(name))
		}
		out += "\n" + m.theme.Timestamp.Render("Sources:") + "\n" + strings.Join(sources, "\n")
	}
	return out
}

// renderSearchResults renders a full-text search hit list in place of the
// transcript.
func (m *Model) renderSearchResults(query string, results []history.SearchResult) string {
	var b strings.Builder
	b.WriteString(m.theme.SearchBadge.Render("Search: " + query))
	b.WriteString("\n\n")

	if len(results) == 0 {
		b.WriteString(m.theme.InputPlaceholder.Render("No matches."))
		return b.String()
	}
	for _, res := range results {
		b.WriteString(m.theme.SidebarItemActive.Render(res.ConversationTitle))
		b.WriteString("  ")
		b.WriteString(m.theme.Timestamp.Render(res.Timestamp.Format("Jan 2 15:04")))
		b.WriteString("\n")
		b.WriteString(m.theme.AssistantText.Width(m.transcriptWidth()).Render(res.Snippet))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m *Model) userLabel() string {
	if name := m.cfg.Chat.DisplayName; name != "" {
		return name
	}
	return model.RoleUser.DisplayName()
}

// =============================================================================
// INPUT AND STATUS BAR
// =============================================================================

func (m *Model) renderInput() string {
	prompt := m.theme.InputPrompt.Render("> ")
	field := m.input.View()
	if m.turnOpen() {
		field = m.theme.InputDisabled.Render("Aura is responding...")
	}
	return m.theme.InputContainer.Width(m.width - 2).Render(prompt + field)
}

func (m *Model) renderStatusBar() string {
	if m.statusErr != "" {
		return m.theme.StatusBar.Width(m.width).Render(
			m.theme.ErrorNotice.UnsetBorderStyle().UnsetPaddingLeft().Render("error: " + m.statusErr),
		)
	}
	if m.notice != "" {
		return m.theme.StatusBar.Width(m.width).Render(
			m.theme.ShortcutDesc.Render(m.notice),
		)
	}

	var shortcuts []string
	for _, binding := range m.keys.ShortHelp() {
		help := binding.Help()
		shortcuts = append(shortcuts,
			m.theme.ShortcutKey.Render(help.Key)+" "+m.theme.ShortcutDesc.Render(help.Desc))
	}

	persona := m.theme.PersonaBadge.Render(strings.ToUpper(m.store.Settings().Persona.String()))
	left := strings.Join(shortcuts, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(persona) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + persona)
}
