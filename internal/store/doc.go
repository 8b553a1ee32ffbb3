// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the authoritative in-memory view of all conversations
// and reconciles it with the local cache and the remote backend.
//
// The store is the only component that writes to the cache, which prevents
// lost-update races between concurrent writers. All mutation of conversation
// state flows through it: optimistic user appends, streaming placeholder
// updates, finalization, failure notices, metadata edits, and deletion.
//
// Remote metadata operations (rename, color, delete) are fire-and-forget:
// the local state is updated optimistically and a backend failure is logged,
// never surfaced as a blocking error.
package store
