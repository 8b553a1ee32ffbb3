// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the local key-value persistence layer for aura-tui.
//
// The cache stores JSON values under string keys and survives process
// restarts. It is deliberately forgiving: missing keys, unreadable files, and
// corrupt JSON all degrade to "no cached state" rather than an error, so a
// damaged cache can never prevent the application from starting.
//
// Key namespace:
//
//	index      - the ordered conversation index
//	conv:<id>  - one conversation's message array
//	settings   - process-wide chat settings
//	anon_id    - the anonymous user identifier, generated once
//
// Two implementations are provided: FileCache (one JSON file per key,
// written atomically) and MemoryCache (for tests).
package cache
