// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package send

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/jeranaias/aura-tui/internal/gateway"
	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/store"
)

// ErrorNotice is the user-facing text shown when a turn fails. The
// underlying cause goes to the log, never to the conversation.
const ErrorNotice = "I'm sorry, I encountered an error while processing your request. Please try again."

// OfflineNotice is shown when a turn targets a local-only conversation that
// has no backend counterpart.
const OfflineNotice = "I can't reach the assistant service right now, so this conversation is local-only. Your messages are saved and you can retry once the service is back."

// Streamer is the slice of the backend client the pipeline depends on.
type Streamer interface {
	SendTurnStream(ctx context.Context, conversationID, text string, callback gateway.StreamCallback) error
}

// Pipeline coordinates one user turn end to end.
type Pipeline struct {
	store    *store.Store
	streamer Streamer
	logger   *log.Logger

	// OnUpdate, when set, is called after every visible mutation of the
	// conversation so the UI can repaint. It runs on the pipeline's
	// goroutine.
	OnUpdate func(conversationID string)
}

// New creates a pipeline. A nil logger discards diagnostics.
func New(s *store.Store, streamer Streamer, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pipeline{store: s, streamer: streamer, logger: logger}
}

// Send runs one turn. Whitespace-only input is a silent no-op returning an
// empty conversation ID. On stream failure the turn is closed with a
// failure notice inside the conversation and Send returns nil; the caller
// only sees an error when the turn could not start at all.
func (p *Pipeline) Send(ctx context.Context, input string) (string, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", nil
	}

	conv, err := p.store.EnsureActive(ctx, text)
	if err != nil {
		return "", err
	}

	if _, err := p.store.ApplyOptimisticUserMessage(conv.ID, text); err != nil {
		return "", err
	}
	p.notify(conv.ID)

	if _, err := p.store.BeginAssistantPlaceholder(conv.ID); err != nil {
		return "", err
	}
	p.notify(conv.ID)

	convID := conv.ID
	if conv.IsLocal() {
		// Each send retries the deferred backend registration; until it
		// succeeds the conversation stays local-only.
		adopted, err := p.store.ReconcileLocal(ctx, convID)
		if err != nil {
			p.fail(convID, OfflineNotice, err)
			return convID, nil
		}
		convID = adopted
		p.notify(convID)
	}

	err = p.streamer.SendTurnStream(ctx, convID, text, func(chunk gateway.StreamChunk) {
		p.applyChunk(convID, chunk)
	})
	if err != nil {
		p.fail(convID, ErrorNotice, err)
		return convID, nil
	}

	if _, err := p.store.FinalizeTurn(convID); err != nil {
		p.logger.Printf("finalize failed for %s: %v", convID, err)
		return convID, err
	}
	p.notify(convID)
	return convID, nil
}

// applyChunk folds one stream chunk into the turn placeholder. Chunks are
// applied to the conversation that owns the turn regardless of which
// conversation is currently active.
func (p *Pipeline) applyChunk(convID string, chunk gateway.StreamChunk) {
	if chunk.Error != nil {
		// Terminal; SendTurnStream returns the same error and the send
		// path closes the turn.
		p.logger.Printf("stream error chunk for %s: %v", convID, chunk.Error)
		return
	}
	if chunk.Reply != "" {
		if err := p.store.AppendStreamChunk(convID, chunk.Reply); err != nil {
			p.logger.Printf("chunk dropped for %s: %v", convID, err)
			return
		}
	}
	if len(chunk.Sources) != 0 {
		sources := make([]model.Source, 0, len(chunk.Sources))
		for _, src := range chunk.Sources {
			sources = append(sources, model.Source{URL: src.URL, Title: src.Title})
		}
		if err := p.store.AppendStreamSources(convID, sources); err != nil {
			p.logger.Printf("sources dropped for %s: %v", convID, err)
		}
	}
	p.notify(convID)
}

// fail closes the turn with a user-safe notice and logs the cause.
func (p *Pipeline) fail(convID, notice string, cause error) {
	if cause != nil {
		p.logger.Printf("turn failed for %s: %v", convID, cause)
	}
	if _, err := p.store.FailTurn(convID, notice); err != nil {
		p.logger.Printf("fail-turn bookkeeping error for %s: %v", convID, err)
	}
	p.notify(convID)
}

func (p *Pipeline) notify(convID string) {
	if p.OnUpdate != nil {
		p.OnUpdate(convID)
	}
}
