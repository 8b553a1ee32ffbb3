// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/aura-tui/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter renders conversations as JSON documents.
//
// JSON exports always carry the complete message data regardless of options,
// so the output is a faithful dump of the conversation as stored.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// jsonDocument is the envelope written around the conversation.
type jsonDocument struct {
	Generator  string           `json:"generator"`
	ExportedAt time.Time        `json:"exported_at"`
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Color      string           `json:"color"`
	Updated    time.Time        `json:"updated"`
	Messages   []*model.Message `json:"messages"`
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	doc := jsonDocument{
		Generator:  "aura-tui",
		ExportedAt: time.Now(),
		ID:         conv.ID,
		Title:      conv.DisplayTitle(),
		Color:      conv.Color,
		Updated:    conv.LastUpdated,
		Messages:   exportable(conv),
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the JSON file extension.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
