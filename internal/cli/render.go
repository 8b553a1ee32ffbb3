// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/ui/styles"
)

// =============================================================================
// OUTPUT STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Blue).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(styles.Violet).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	sourceStyle = lipgloss.NewStyle().
			Foreground(styles.Blue).
			Underline(true)
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderer wraps an optional glamour renderer. It degrades to plain text
// when stdout is not a terminal or the renderer cannot be built.
type renderer struct {
	md *glamour.TermRenderer
}

func newRenderer(markdown bool) *renderer {
	if !markdown || !IsOutputTerminal() {
		return &renderer{}
	}
	width := TerminalWidth()
	if width > 100 {
		width = 100
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &renderer{}
	}
	return &renderer{md: md}
}

// Reply renders a completed assistant reply.
func (r *renderer) Reply(content string) string {
	if r.md == nil {
		return content
	}
	rendered, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// PrintMessage writes one transcript message to stdout. Streamed content
// already on screen is handled separately; this is for replayed history.
func (r *renderer) PrintMessage(msg *model.Message, displayName string) {
	switch {
	case msg.IsError:
		fmt.Println(errorStyle.Render("[Aura]") + " " + msg.Content)
	case msg.Role == model.RoleUser:
		name := displayName
		if name == "" {
			name = msg.Role.DisplayName()
		}
		fmt.Println(promptStyle.Render(name+":") + " " + msg.Content)
	default:
		fmt.Println(labelStyle.Render("Aura:"))
		fmt.Println(r.Reply(msg.DisplayContent()))
		printSources(msg)
	}
}

func printSources(msg *model.Message) {
	if len(msg.Sources) == 0 {
		return
	}
	fmt.Println(infoStyle.Render("Sources:"))
	for _, src := range msg.Sources {
		name := src.Title
		if name == "" {
			name = src.URL
		}
		fmt.Println("  " + sourceStyle.Render(name))
	}
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
}

func printInfo(text string) {
	fmt.Println(infoStyle.Render(text))
}
