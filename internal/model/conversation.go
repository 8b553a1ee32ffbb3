// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/aura-tui/internal/util"
)

// TitleMaxRunes is the display length titles derived from the first user
// message are truncated to.
const TitleMaxRunes = 33

// DefaultColor is the cosmetic tag assigned to conversations that have not
// been given one.
const DefaultColor = "#4A90E2"

// LocalIDPrefix marks conversations synthesized locally when the backend was
// unreachable at creation time. Local-only IDs are never sent to the backend.
const LocalIDPrefix = "local_"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat conversation with its history and metadata.
//
// The message list is append-only; the single exception is the in-place
// content growth of the streaming placeholder tracked by the turn state
// machine (see turn.go). The ID never changes after creation, except when a
// local-only conversation is reconciled with the backend via AdoptID.
type Conversation struct {
	// Identity
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Color       string    `json:"color"`
	LastUpdated time.Time `json:"last_updated"`

	// Messages
	Messages []*Message `json:"messages"`

	// Turn state (not persisted)
	turn        TurnState
	placeholder *Message
}

// NewConversation creates a conversation with a server-assigned ID.
func NewConversation(id, title, color string) *Conversation {
	if color == "" {
		color = DefaultColor
	}
	return &Conversation{
		ID:          id,
		Title:       title,
		Color:       color,
		LastUpdated: time.Now(),
		Messages:    make([]*Message, 0),
	}
}

// NewLocalConversation creates a local-only fallback conversation for use
// when the backend is unreachable. Its time-based ID carries LocalIDPrefix so
// it is never used in backend requests.
func NewLocalConversation(title string) *Conversation {
	id := LocalIDPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)
	return NewConversation(id, title, "")
}

// IsLocal reports whether this conversation exists only on this machine.
func (c *Conversation) IsLocal() bool {
	return strings.HasPrefix(c.ID, LocalIDPrefix)
}

// DeriveTitle builds a conversation title from the first user input,
// truncated with an ellipsis marker when too long.
func DeriveTitle(input string) string {
	title := util.TruncateRunes(util.OneLine(strings.TrimSpace(input)), TitleMaxRunes)
	if title == "" {
		return "New Chat"
	}
	return title
}

// =============================================================================
// MESSAGE ACCESS
// =============================================================================

// AddMessage appends a message and refreshes the update timestamp.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.touch()
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// FirstUserMessage returns the earliest user message, or nil.
func (c *Conversation) FirstUserMessage() *Message {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			return msg
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// History returns the messages suitable for seeding a backend session:
// error notices and the local welcome greeting are excluded.
func (c *Conversation) History() []*Message {
	history := make([]*Message, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.IsError || msg.IsWelcome() {
			continue
		}
		history = append(history, msg)
	}
	return history
}

// =============================================================================
// METADATA
// =============================================================================

// SetTitle renames the conversation.
func (c *Conversation) SetTitle(title string) {
	c.Title = title
	c.touch()
}

// SetColor updates the cosmetic color tag.
func (c *Conversation) SetColor(color string) {
	c.Color = color
	c.touch()
}

// DisplayTitle returns the title or a default for untitled conversations.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Chat"
}

// Preview returns a short single-line preview for sidebar display.
func (c *Conversation) Preview(maxRunes int) string {
	if first := c.FirstUserMessage(); first != nil {
		return first.Preview(maxRunes)
	}
	return ""
}

// Meta returns lightweight metadata for the conversation index.
func (c *Conversation) Meta() ConversationMeta {
	return ConversationMeta{
		ID:          c.ID,
		Title:       c.DisplayTitle(),
		Color:       c.Color,
		LastUpdated: c.LastUpdated,
	}
}

// AdoptID swaps a local-only ID for a server-assigned one. It does nothing
// on conversations already known to the backend.
func (c *Conversation) AdoptID(id string) {
	if c.IsLocal() && id != "" {
		c.ID = id
	}
}

// touch refreshes the last-updated timestamp.
func (c *Conversation) touch() {
	c.LastUpdated = time.Now()
}

// Clone creates a deep copy of the conversation, excluding turn state.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:          c.ID,
		Title:       c.Title,
		Color:       c.Color,
		LastUpdated: c.LastUpdated,
		Messages:    make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		clone.Messages[i] = msg.Clone()
	}
	return clone
}

// ConversationMeta holds the index entry for one conversation.
type ConversationMeta struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Color       string    `json:"color"`
	LastUpdated time.Time `json:"last_updated"`
}
