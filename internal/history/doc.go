// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history maintains a local full-text index of finalized
// conversation messages, so past exchanges can be searched without the
// backend. The index is derived data: it can be deleted and rebuilt from
// the cache at any time, and indexing failures never block a turn.
package history
