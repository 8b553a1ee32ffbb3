// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package send

import (
	"context"
	"strings"
	"testing"

	"github.com/jeranaias/aura-tui/internal/cache"
	"github.com/jeranaias/aura-tui/internal/gateway"
	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/store"
)

// =============================================================================
// FAKES
// =============================================================================

// fakeBackend satisfies both the store's Gateway and the pipeline's
// Streamer, so one fake object stands in for the whole backend.
type fakeBackend struct {
	chunks    []gateway.StreamChunk
	streamErr error

	createErr error
	sent      []string
}

func (f *fakeBackend) CreateConversation(_ context.Context, title, color string) (*gateway.ConversationRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if color == "" {
		color = model.DefaultColor
	}
	return &gateway.ConversationRecord{ID: "conv-1", Title: title, Color: color}, nil
}

func (f *fakeBackend) FetchConversation(_ context.Context, id string) (*gateway.ConversationHistory, error) {
	return nil, gateway.ErrNotFound
}

func (f *fakeBackend) ListConversations(_ context.Context) ([]gateway.ConversationRecord, error) {
	return nil, nil
}

func (f *fakeBackend) Rename(_ context.Context, _, _ string) error   { return nil }
func (f *fakeBackend) SetColor(_ context.Context, _, _ string) error { return nil }
func (f *fakeBackend) Delete(_ context.Context, _ string) error      { return nil }

func (f *fakeBackend) InitSession(_ context.Context, _ gateway.SessionSettings, _ []gateway.Message) error {
	return nil
}

func (f *fakeBackend) SendTurnStream(_ context.Context, conversationID, text string, callback gateway.StreamCallback) error {
	f.sent = append(f.sent, text)
	for _, chunk := range f.chunks {
		callback(chunk)
	}
	return f.streamErr
}

func newTestPipeline(backend *fakeBackend) (*Pipeline, *store.Store) {
	s := store.New(cache.NewMemoryCache(), backend, nil)
	return New(s, backend, nil), s
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestSendStreamsReplyInOrder(t *testing.T) {
	backend := &fakeBackend{chunks: []gateway.StreamChunk{
		{Reply: "Hel"},
		{Reply: "lo "},
		{Reply: "there.", Done: true},
	}}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	conv := s.Get(convID)
	if conv == nil {
		t.Fatal("conversation not found")
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Role != model.RoleUser || conv.Messages[0].Content != "hi" {
		t.Errorf("user message = %+v", conv.Messages[0])
	}
	reply := conv.Messages[1]
	if reply.Content != "Hello there." {
		t.Errorf("reply = %q, want %q", reply.Content, "Hello there.")
	}
	if reply.IsStreaming {
		t.Error("reply should be finalized")
	}
	if conv.TurnOpen() {
		t.Error("turn should be closed")
	}
}

func TestSendTrimsInput(t *testing.T) {
	backend := &fakeBackend{chunks: []gateway.StreamChunk{{Reply: "ok", Done: true}}}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "  spaced out  \n")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	conv := s.Get(convID)
	if conv.Messages[0].Content != "spaced out" {
		t.Errorf("content = %q, want trimmed input", conv.Messages[0].Content)
	}
	if backend.sent[0] != "spaced out" {
		t.Errorf("sent = %q, want trimmed input", backend.sent[0])
	}
}

func TestWhitespaceInputIsNoOp(t *testing.T) {
	backend := &fakeBackend{}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "   \t\n  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if convID != "" {
		t.Errorf("convID = %q, want empty", convID)
	}
	if s.ActiveID() != "" {
		t.Error("no conversation should be created for whitespace input")
	}
	if len(backend.sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestSendAttachesSources(t *testing.T) {
	backend := &fakeBackend{chunks: []gateway.StreamChunk{
		{Reply: "See the docs."},
		{Sources: []gateway.Source{{URL: "https://example.com/a", Title: "A"}}, Done: true},
	}}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "where are the docs?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply := s.Get(convID).Messages[1]
	if len(reply.Sources) != 1 || reply.Sources[0].URL != "https://example.com/a" {
		t.Errorf("sources = %+v", reply.Sources)
	}
}

func TestOnUpdateFiresPerMutation(t *testing.T) {
	backend := &fakeBackend{chunks: []gateway.StreamChunk{
		{Reply: "a"},
		{Reply: "b", Done: true},
	}}
	p, _ := newTestPipeline(backend)

	var updates int
	p.OnUpdate = func(string) { updates++ }

	if _, err := p.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// user append + placeholder + two chunks + finalize
	if updates != 5 {
		t.Errorf("updates = %d, want 5", updates)
	}
}

// =============================================================================
// FAILURE PATHS
// =============================================================================

func TestStreamFailureYieldsNotice(t *testing.T) {
	backend := &fakeBackend{
		chunks:    []gateway.StreamChunk{{Reply: "partial rep"}},
		streamErr: gateway.ErrUnreachable,
	}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send should absorb stream failures, got %v", err)
	}

	conv := s.Get(convID)
	last := conv.Messages[len(conv.Messages)-1]
	if !last.IsError {
		t.Error("last message should be the failure notice")
	}
	if last.Content != ErrorNotice {
		t.Errorf("notice = %q", last.Content)
	}
	if strings.Contains(last.Content, "partial rep") {
		t.Error("partial text should be replaced by the notice")
	}
	if conv.TurnOpen() {
		t.Error("turn should be closed after failure")
	}
}

func TestFailedTurnAllowsRetry(t *testing.T) {
	backend := &fakeBackend{streamErr: gateway.ErrUnreachable}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "first try")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	backend.streamErr = nil
	backend.chunks = []gateway.StreamChunk{{Reply: "second time works", Done: true}}

	retryID, err := p.Send(context.Background(), "second try")
	if err != nil {
		t.Fatalf("retry Send: %v", err)
	}
	if retryID != convID {
		t.Errorf("retry went to %q, want %q", retryID, convID)
	}

	conv := s.Get(convID)
	last := conv.Messages[len(conv.Messages)-1]
	if last.Content != "second time works" {
		t.Errorf("reply = %q", last.Content)
	}
}

func TestErrorNoticesExcludedFromHistory(t *testing.T) {
	backend := &fakeBackend{streamErr: gateway.ErrUnreachable}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "doomed")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	for _, msg := range s.Get(convID).History() {
		if msg.IsError {
			t.Error("failure notices must not appear in sendable history")
		}
	}
}

func TestLocalConversationFailsOffline(t *testing.T) {
	backend := &fakeBackend{createErr: gateway.ErrUnreachable}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "offline message")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	conv := s.Get(convID)
	if !conv.IsLocal() {
		t.Fatal("expected a local fallback conversation")
	}
	if len(backend.sent) != 0 {
		t.Error("local conversations must never reach the backend")
	}
	last := conv.Messages[len(conv.Messages)-1]
	if !last.IsError || last.Content != OfflineNotice {
		t.Errorf("last message = %+v", last)
	}
	if conv.Messages[0].Content != "offline message" {
		t.Error("the user's message should be kept for later retry")
	}
}

func TestCreateFailureReturnsError(t *testing.T) {
	backend := &fakeBackend{createErr: gateway.ErrBusy}
	p, _ := newTestPipeline(backend)

	if _, err := p.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when conversation creation fails hard")
	}
}

func TestLocalConversationReconcilesOnSend(t *testing.T) {
	backend := &fakeBackend{createErr: gateway.ErrUnreachable}
	p, s := newTestPipeline(backend)

	convID, err := p.Send(context.Background(), "first try")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !s.Get(convID).IsLocal() {
		t.Fatal("expected a local fallback while offline")
	}

	// Backend comes back; the next send registers the conversation and
	// streams normally under the server-assigned ID.
	backend.createErr = nil
	backend.chunks = []gateway.StreamChunk{{Reply: "welcome back", Done: true}}

	newID, err := p.Send(context.Background(), "second try")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if strings.HasPrefix(newID, model.LocalIDPrefix) {
		t.Fatalf("conversation still local after recovery: %s", newID)
	}
	if s.Get(convID) != nil {
		t.Error("old local ID still resolves")
	}

	conv := s.Get(newID)
	if conv == nil {
		t.Fatal("reconciled conversation missing")
	}
	if s.ActiveID() != newID {
		t.Errorf("active ID = %q, want %q", s.ActiveID(), newID)
	}
	if got := conv.LastMessage().Content; got != "welcome back" {
		t.Errorf("reply = %q", got)
	}
	if conv.Messages[0].Content != "first try" {
		t.Error("offline history lost in reconciliation")
	}
	if len(backend.sent) != 1 || backend.sent[0] != "second try" {
		t.Errorf("sent = %v", backend.sent)
	}
}
