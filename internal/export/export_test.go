// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/aura-tui/internal/model"
)

func testConversation() *model.Conversation {
	conv := model.NewConversation("conv-1", "Trip planning", "#FF5733")
	conv.AddMessage(model.NewWelcomeMessage("Jesse"))
	conv.AddMessage(model.NewUserMessage("What should I pack for Iceland?"))
	reply := model.NewMessage(model.RoleAssistant, "Bring layers and a rain shell.")
	reply.Sources = []model.Source{{URL: "https://example.com/iceland", Title: "Packing guide"}}
	conv.AddMessage(reply)
	return conv
}

func TestMarkdownExport(t *testing.T) {
	conv := testConversation()
	content, err := NewMarkdownExporter(nil).Export(conv)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	md := string(content)

	if !strings.Contains(md, "# Trip planning") {
		t.Errorf("markdown missing title heading:\n%s", md)
	}
	if !strings.Contains(md, "What should I pack for Iceland?") {
		t.Error("markdown missing user message")
	}
	if !strings.Contains(md, "[Packing guide](https://example.com/iceland)") {
		t.Error("markdown missing source link")
	}
	if strings.Contains(md, "Hello Jesse") {
		t.Error("welcome greeting should not be exported")
	}
}

func TestMarkdownExportDisplayName(t *testing.T) {
	opts := DefaultOptions()
	opts.DisplayName = "Jesse"
	content, err := NewMarkdownExporter(opts).Export(testConversation())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(content), "### Jesse") {
		t.Error("user messages should be labeled with the display name")
	}
}

func TestMarkdownExportEmptyConversation(t *testing.T) {
	conv := model.NewConversation("conv-2", "Empty", "")
	if _, err := NewMarkdownExporter(nil).Export(conv); err == nil {
		t.Error("expected error for conversation with no messages")
	}
}

func TestJSONExportRoundTrip(t *testing.T) {
	content, err := NewJSONExporter(nil).Export(testConversation())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc struct {
		Generator string           `json:"generator"`
		ID        string           `json:"id"`
		Title     string           `json:"title"`
		Messages  []*model.Message `json:"messages"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if doc.Generator != "aura-tui" {
		t.Errorf("generator = %q, want aura-tui", doc.Generator)
	}
	if doc.ID != "conv-1" {
		t.Errorf("id = %q, want conv-1", doc.ID)
	}
	if len(doc.Messages) != 2 {
		t.Errorf("messages = %d, want 2 (welcome excluded)", len(doc.Messages))
	}
}

func TestToFileWritesUnderOutputDir(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir

	path, err := Markdown(testConversation(), opts)
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("path %q not under %q", path, dir)
	}
	if !strings.HasSuffix(path, ".md") {
		t.Errorf("path %q missing .md extension", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	if !strings.Contains(filepath.Base(path), "trip_planning") {
		t.Errorf("filename %q should contain the title slug", filepath.Base(path))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Trip planning", "trip_planning"},
		{"  //weird:? name  ", "weird_name"},
		{"", "untitled"},
		{"???", "untitled"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
