// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/aura-tui/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Aura"
	default:
		return string(r)
	}
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is citation metadata attached to a completed assistant reply when
// the backend reports grounding data for it.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// WelcomeID marks the locally synthesized greeting message. Welcome messages
// are display-only: they are never persisted and never sent to the backend.
const WelcomeID = "welcome"

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`

	// IsError marks a locally synthesized failure notice. Error messages are
	// never sent to the backend.
	IsError bool `json:"is_error,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantPlaceholder creates the mutable in-flight assistant message for
// a turn. Content accumulates via AppendChunk until FinalizeStream is called.
func NewAssistantPlaceholder() *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewErrorMessage creates a locally synthesized assistant failure notice.
func NewErrorMessage(content string) *Message {
	msg := NewMessage(RoleAssistant, content)
	msg.IsError = true
	return msg
}

// NewWelcomeMessage creates the greeting shown when a fresh conversation view
// opens. It carries the fixed WelcomeID so it can be filtered from persisted
// state and from backend session history.
func NewWelcomeMessage(displayName string) *Message {
	text := "Hello! I'm Aura. I'm here to help you with whatever you need, " +
		"whether it's recommendations, technical help, or just a friendly chat. " +
		"How can I assist you today?"
	if displayName != "" {
		text = "Hello " + displayName + "! Ready for a fresh start. What's on your mind?"
	}
	return &Message{
		ID:        WelcomeID,
		Role:      RoleAssistant,
		Content:   text,
		Timestamp: time.Now(),
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendChunk appends a text fragment to a streaming message.
// It is a no-op once the message has been finalized.
func (m *Message) AppendChunk(text string) {
	if m.IsStreaming {
		m.streamContent.WriteString(text)
	}
}

// AddSources appends citation sources to a streaming message, preserving
// arrival order. Duplicate URLs within one message are dropped.
func (m *Message) AddSources(sources []Source) {
	if !m.IsStreaming {
		return
	}
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		dup := false
		for _, have := range m.Sources {
			if have.URL == src.URL {
				dup = true
				break
			}
		}
		if !dup {
			m.Sources = append(m.Sources, src)
		}
	}
}

// FinalizeStream completes streaming and freezes the content.
func (m *Message) FinalizeStream() {
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false
}

// DisplayContent returns the content to display (streaming or final).
// Streaming clones carry their snapshot in Content, so the builder is only
// consulted when it holds data.
func (m *Message) DisplayContent() string {
	if m.IsStreaming && m.streamContent.Len() > 0 {
		return m.streamContent.String()
	}
	return m.Content
}

// Preview returns a single-line truncated preview of the message content.
func (m *Message) Preview(maxRunes int) string {
	return util.TruncateRunes(util.OneLine(m.DisplayContent()), maxRunes)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// IsWelcome reports whether this is the local greeting message.
func (m *Message) IsWelcome() bool {
	return m.ID == WelcomeID
}

// Clone returns a copy of the message. A streaming message is cloned in its
// current display state: the accumulated text is frozen into Content and the
// clone keeps the streaming flag so renderers still draw the cursor. The
// clone never shares the builder, so it is safe to read while the original
// keeps streaming.
func (m *Message) Clone() *Message {
	clone := &Message{
		ID:          m.ID,
		Role:        m.Role,
		Timestamp:   m.Timestamp,
		Content:     m.DisplayContent(),
		IsStreaming: m.IsStreaming,
		IsError:     m.IsError,
	}
	if len(m.Sources) > 0 {
		clone.Sources = make([]Source, len(m.Sources))
		copy(clone.Sources, m.Sources)
	}
	return clone
}
