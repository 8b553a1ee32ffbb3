// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/aura-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders conversations as Markdown documents.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	messages := exportable(conv)
	if len(messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(conv.DisplayTitle())))
		sb.WriteString(fmt.Sprintf("updated: %s\n", conv.LastUpdated.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(messages)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: aura-tui\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(conv.DisplayTitle())))

	for i, msg := range messages {
		label := e.roleLabel(msg)
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n",
				label, formatShortTimestamp(msg.Timestamp)))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}

		sb.WriteString(formatMessageContent(msg.Content))
		sb.WriteString("\n\n")

		if len(msg.Sources) > 0 {
			sb.WriteString("Sources:\n\n")
			for _, src := range msg.Sources {
				title := src.Title
				if title == "" {
					title = src.URL
				}
				sb.WriteString(fmt.Sprintf("- [%s](%s)\n", escapeMarkdown(title), src.URL))
			}
			sb.WriteString("\n")
		}

		if i < len(messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the Markdown file extension.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func (e *MarkdownExporter) roleLabel(msg *model.Message) string {
	if msg.IsError {
		return "Error"
	}
	if msg.Role == model.RoleUser && e.options.DisplayName != "" {
		return escapeMarkdown(e.options.DisplayName)
	}
	return msg.Role.DisplayName()
}

// =============================================================================
// ESCAPING
// =============================================================================

// formatMessageContent passes fenced code blocks through untouched so code in
// replies survives the export verbatim.
func formatMessageContent(content string) string {
	return strings.TrimRight(content, "\n")
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	)
	return replacer.Replace(s)
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#\"'\n") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
