// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive terminal UI.
//
// The UI is a Bubble Tea program: Model holds all view state, Update folds
// messages into it, and View renders the frame. Streaming replies arrive
// from the send pipeline on background goroutines; Runner bridges them into
// the program's message loop with program.Send, so Update remains the only
// writer of view state.
package chat
