// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client for the Aura conversational backend.
package gateway

// =============================================================================
// WIRE TYPES
// =============================================================================

// Message is one prior turn in the wire format the backend accepts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is citation metadata the backend attaches to grounded replies.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ConversationRecord is the canonical server-assigned conversation record.
type ConversationRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Color  string `json:"color"`
	UserID string `json:"user_id,omitempty"`
}

// ConversationHistory is the payload of a conversation fetch: the stored
// message array plus the metadata record.
type ConversationHistory struct {
	Messages []Message          `json:"messages"`
	Meta     ConversationRecord `json:"meta"`
}

// StreamChunk is one fragment of a streamed reply. Text fragments and source
// batches may arrive interleaved; Done marks end-of-stream. A chunk with
// Error set is terminal; it is produced client-side when the idle watchdog
// aborts a stalled stream, never parsed from the wire.
type StreamChunk struct {
	Reply   string   `json:"reply,omitempty"`
	Sources []Source `json:"sources,omitempty"`
	Done    bool     `json:"done,omitempty"`
	Error   error    `json:"-"`
}

// SessionSettings is the session-initialization payload derived from the
// user's settings. The persona name selects a system instruction block
// server-side; DisplayName personalizes it.
type SessionSettings struct {
	Persona       string `json:"persona"`
	SearchEnabled bool   `json:"search_enabled"`
	DisplayName   string `json:"display_name"`
}

// =============================================================================
// REQUEST / RESPONSE BODIES
// =============================================================================

type createConversationRequest struct {
	Title  string `json:"title"`
	Color  string `json:"color,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type listConversationsResponse struct {
	Conversations []ConversationRecord `json:"conversations"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type colorRequest struct {
	Color string `json:"color"`
}

type sendTurnRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	Stream         bool   `json:"stream"`
}

type initSessionRequest struct {
	SystemInstruction string    `json:"system_instruction"`
	SearchEnabled     bool      `json:"search_enabled"`
	History           []Message `json:"history"`
	UserID            string    `json:"user_id,omitempty"`
}

// backendError is the error body the backend returns on non-2xx statuses.
type backendError struct {
	Detail string `json:"detail"`
}
