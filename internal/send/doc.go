// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package send runs the turn pipeline: validate input, ensure a target
// conversation exists, apply the user's message optimistically, stream the
// assistant reply into the turn placeholder, and finalize or fail the turn.
//
// The pipeline never leaves a turn half-open. Every code path out of Send
// ends with the conversation back in an idle, sendable state: either the
// reply was finalized or a failure notice replaced the placeholder.
package send
