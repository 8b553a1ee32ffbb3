// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out as Markdown or JSON files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a conversation to a target format.
type Exporter interface {
	// Export renders the conversation and returns the file content.
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the extension for the format (e.g. ".md").
	FileExtension() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where exported files are written.
	// Default: current working directory.
	OutputDir string

	// IncludeMetadata includes a metadata header (title, timestamps, counts).
	IncludeMetadata bool

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool

	// DisplayName labels user messages; empty falls back to the role name.
	DisplayName string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports a conversation using the given exporter and returns the
// output file path. The filename is derived from the conversation title plus
// an export timestamp, so repeated exports never clobber each other.
func ToFile(conv *model.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(conv.DisplayTitle()),
		timestamp,
		exporter.FileExtension(),
	)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// Markdown exports a conversation to a Markdown file.
func Markdown(conv *model.Conversation, opts *Options) (string, error) {
	return ToFile(conv, NewMarkdownExporter(opts), opts)
}

// JSON exports a conversation to a JSON file.
func JSON(conv *model.Conversation, opts *Options) (string, error) {
	return ToFile(conv, NewJSONExporter(opts), opts)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// exportable filters out display-only messages: the synthetic welcome
// greeting and in-flight streaming placeholders never belong in an export.
func exportable(conv *model.Conversation) []*model.Message {
	out := make([]*model.Message, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		if msg.IsWelcome() || msg.IsStreaming {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// sanitizeFilename reduces a title to a short filesystem-safe slug.
func sanitizeFilename(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('_')
		}
	}
	slug := strings.Trim(sb.String(), "_")
	if slug == "" {
		slug = "untitled"
	}
	return util.TruncateRunesNoEllipsis(slug, 40)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05 MST")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
