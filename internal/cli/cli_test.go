// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/jeranaias/aura-tui/internal/cache"
	"github.com/jeranaias/aura-tui/internal/config"
	"github.com/jeranaias/aura-tui/internal/gateway"
	"github.com/jeranaias/aura-tui/internal/send"
	"github.com/jeranaias/aura-tui/internal/store"
)

// fakeBackend satisfies store.Gateway and send.Streamer for REPL tests.
type fakeBackend struct {
	mu     sync.Mutex
	nextID int
	chunks []gateway.StreamChunk
}

func (f *fakeBackend) CreateConversation(_ context.Context, title, color string) (*gateway.ConversationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return &gateway.ConversationRecord{ID: "conv-" + strconv.Itoa(f.nextID), Title: title, Color: color}, nil
}

func (f *fakeBackend) FetchConversation(_ context.Context, id string) (*gateway.ConversationHistory, error) {
	return nil, gateway.ErrNotFound
}

func (f *fakeBackend) ListConversations(context.Context) ([]gateway.ConversationRecord, error) {
	return nil, nil
}

func (f *fakeBackend) Rename(context.Context, string, string) error   { return nil }
func (f *fakeBackend) SetColor(context.Context, string, string) error { return nil }
func (f *fakeBackend) Delete(context.Context, string) error           { return nil }

func (f *fakeBackend) InitSession(context.Context, gateway.SessionSettings, []gateway.Message) error {
	return nil
}

func (f *fakeBackend) SendTurnStream(_ context.Context, _ string, _ string, callback gateway.StreamCallback) error {
	for _, chunk := range f.chunks {
		callback(chunk)
	}
	return nil
}

func newTestREPL(t *testing.T, chunks []gateway.StreamChunk) (*REPL, *store.Store) {
	t.Helper()
	backend := &fakeBackend{chunks: chunks}
	s := store.New(cache.NewMemoryCache(), backend, nil)
	pipeline := send.New(s, backend, nil)
	return &REPL{
		store:    s,
		pipeline: pipeline,
		cfg:      config.Default(),
		render:   &renderer{},
	}, s
}

func TestHandleCommandExit(t *testing.T) {
	r, _ := newTestREPL(t, nil)
	for _, cmd := range []string{"/exit", "/quit"} {
		keepGoing, err := r.handleCommand(context.Background(), cmd)
		if err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
		if keepGoing {
			t.Errorf("%s should stop the loop", cmd)
		}
	}
}

func TestHandleCommandUnknown(t *testing.T) {
	r, _ := newTestREPL(t, nil)
	keepGoing, err := r.handleCommand(context.Background(), "/bogus")
	if err == nil {
		t.Error("unknown command should error")
	}
	if !keepGoing {
		t.Error("unknown command should not exit")
	}
}

func TestPersonaCommand(t *testing.T) {
	r, s := newTestREPL(t, nil)

	if _, err := r.handleCommand(context.Background(), "/persona technical"); err != nil {
		t.Fatal(err)
	}
	if got := s.Settings().Persona.String(); got != "technical" {
		t.Errorf("persona = %q, want technical", got)
	}

	if _, err := r.handleCommand(context.Background(), "/persona robot"); err == nil {
		t.Error("invalid persona should error")
	}
}

func TestSearchToggle(t *testing.T) {
	r, s := newTestREPL(t, nil)

	if _, err := r.handleCommand(context.Background(), "/search on"); err != nil {
		t.Fatal(err)
	}
	if !s.Settings().SearchEnabled {
		t.Error("search should be enabled")
	}
	if _, err := r.handleCommand(context.Background(), "/search off"); err != nil {
		t.Fatal(err)
	}
	if s.Settings().SearchEnabled {
		t.Error("search should be disabled")
	}
	if _, err := r.handleCommand(context.Background(), "/search maybe"); err == nil {
		t.Error("bad toggle value should error")
	}
}

func TestSwitchByNumber(t *testing.T) {
	r, s := newTestREPL(t, []gateway.StreamChunk{{Reply: "reply"}})

	for _, text := range []string{"first chat", "second chat"} {
		if err := r.sendTurn(context.Background(), text); err != nil {
			t.Fatal(err)
		}
		s.StartNew(context.Background())
	}

	metas := s.Index()
	if len(metas) != 2 {
		t.Fatalf("conversations = %d, want 2", len(metas))
	}

	if err := r.switchConversation(context.Background(), "2"); err != nil {
		t.Fatal(err)
	}
	if s.ActiveID() != metas[1].ID {
		t.Errorf("active = %s, want %s", s.ActiveID(), metas[1].ID)
	}

	if err := r.switchConversation(context.Background(), "9"); err == nil {
		t.Error("out-of-range number should error")
	}
}

func TestSendTurnStreamsReply(t *testing.T) {
	r, s := newTestREPL(t, []gateway.StreamChunk{{Reply: "Hello "}, {Reply: "world"}})

	if err := r.sendTurn(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	conv := s.Active()
	if conv == nil {
		t.Fatal("no active conversation")
	}
	last := conv.LastMessage()
	if last.DisplayContent() != "Hello world" {
		t.Errorf("reply = %q", last.DisplayContent())
	}
	if r.pipeline.OnUpdate != nil {
		t.Error("OnUpdate hook should be cleared after the turn")
	}
}

func TestExportCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	r, _ := newTestREPL(t, []gateway.StreamChunk{{Reply: "reply"}})

	if err := r.sendTurn(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	keepGoing, err := r.handleCommand(context.Background(), "/export json")
	if err != nil {
		t.Fatalf("/export json: %v", err)
	}
	if !keepGoing {
		t.Error("/export should not exit")
	}

	matches, err := filepath.Glob("conversation_*.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("exported files = %v, want one", matches)
	}

	if _, err := r.handleCommand(context.Background(), "/export pdf"); err == nil {
		t.Error("unsupported format should error")
	}
}

func TestReadPiped(t *testing.T) {
	text, err := ReadPiped(strings.NewReader("  hello\nworld  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello\nworld" {
		t.Errorf("text = %q", text)
	}

	if _, err := ReadPiped(strings.NewReader("   \n")); err != ErrEmptyInput {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
}
