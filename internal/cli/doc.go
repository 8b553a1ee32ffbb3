// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the non-TUI chat mode: a liner-backed REPL with
// slash commands, plus one-shot ask for piped input. It drives the same
// store and send pipeline as the TUI, so conversation state and persistence
// behave identically in both modes.
package cli
