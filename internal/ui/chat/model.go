// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"io"
	"log"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/aura-tui/internal/config"
	"github.com/jeranaias/aura-tui/internal/gateway"
	"github.com/jeranaias/aura-tui/internal/history"
	"github.com/jeranaias/aura-tui/internal/store"
	"github.com/jeranaias/aura-tui/internal/ui/styles"
)

// sidebarWidth is the fixed column width of the conversation list.
const sidebarWidth = 28

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	store  *store.Store
	gw     *gateway.Client
	runner *Runner
	cfg    *config.Config
	index  *history.Index // nil when history indexing is disabled
	logger *log.Logger

	theme *styles.Theme
	keys  KeyMap

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	showSidebar  bool
	sidebarIndex int

	backendUp bool
	statusErr string
	notice    string
	quitting  bool
}

// NewModel creates the chat UI model. index and logger may be nil; a nil
// index disables the /find command, a nil logger discards diagnostics.
func NewModel(s *store.Store, gw *gateway.Client, runner *Runner, cfg *config.Config, index *history.Index, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	input := textinput.New()
	input.Placeholder = "Message Aura..."
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		store:       s,
		gw:          gw,
		runner:      runner,
		cfg:         cfg,
		index:       index,
		logger:      logger,
		theme:       styles.NewTheme(),
		keys:        DefaultKeyMap(),
		input:       input,
		spinner:     sp,
		showSidebar: cfg.UI.ShowSidebar,
	}
}

// Init starts the backend health probe loop.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		CheckBackendCmd(m.gw),
		statusTickCmd(),
	)
}

// turnOpen reports whether the active conversation has a turn in flight.
// Input is disabled while true.
func (m *Model) turnOpen() bool {
	return m.store.TurnOpen()
}

// rebuildRenderer creates a glamour renderer sized to the transcript width.
// Rendering falls back to plain text when the renderer cannot be built.
func (m *Model) rebuildRenderer(width int) {
	if !m.cfg.UI.Markdown {
		m.renderer = nil
		return
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.logger.Printf("markdown renderer unavailable: %v", err)
		m.renderer = nil
		return
	}
	m.renderer = renderer
}

// transcriptWidth is the usable width of the message area.
func (m *Model) transcriptWidth() int {
	width := m.width
	if m.sidebarVisible() {
		width -= sidebarWidth
	}
	// bubble border plus container padding
	width -= 4
	if width < 20 {
		width = 20
	}
	return width
}

// sidebarVisible reports whether the sidebar fits and is enabled.
func (m *Model) sidebarVisible() bool {
	return m.showSidebar && m.theme.GetLayoutMode() != styles.LayoutNarrow
}
