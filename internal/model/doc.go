// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation is an ordered, append-only sequence of Messages with its own
// remote session context. The only permitted in-place mutation is the content
// of the single streaming placeholder message while a turn is in flight; the
// turn state machine in turn.go enforces that invariant.
//
// # Key Types
//
//   - Conversation: identity, title, color, ordered message history
//   - Message: a single user or assistant message, optionally carrying
//     citation sources or an error flag
//   - TurnState: the per-conversation send state machine
//   - Settings: persona, search enablement, and display name
package model
