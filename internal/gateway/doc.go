// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client for the Aura conversational
// backend. It is the sole component permitted to perform network I/O.
//
// The backend exposes conversation CRUD, a session-initialization endpoint
// that seeds the model's context (persona instructions, search enablement,
// prior turns), and a send endpoint that replies either with a single JSON
// object or a line-delimited JSON stream of chunks.
//
// The client enforces the at-most-one-in-flight rule per conversation: a
// second send while one is outstanding fails with ErrBusy instead of being
// queued or interleaved.
//
// Example:
//
//	client := gateway.NewClient(nil)
//	if err := client.CheckRunning(ctx); err != nil {
//	    log.Fatal("backend not available:", err)
//	}
//	err := client.SendTurnStream(ctx, convID, "Hi", func(chunk gateway.StreamChunk) {
//	    // chunks arrive in order, on the calling goroutine
//	})
package gateway
