// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client for the Aura conversational backend.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&Config{
		BaseURL:           server.URL,
		Timeout:           5 * time.Second,
		UserID:            "anon-test",
		RequestsPerSecond: 1000, // don't throttle tests
	})
}

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func TestStreamReaderOrderPreserved(t *testing.T) {
	body := `{"reply":"Hel"}
{"reply":"lo"}
{"done":true}
`
	reader := NewStreamReader(strings.NewReader(body))

	var parts []string
	err := reader.Process(context.Background(), func(chunk StreamChunk) {
		if chunk.Reply != "" {
			parts = append(parts, chunk.Reply)
		}
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(parts) != 2 {
		t.Errorf("got %d text fragments, want 2", len(parts))
	}
	if got := strings.Join(parts, ""); got != "Hello" {
		t.Errorf("concatenated chunks = %q, want %q", got, "Hello")
	}
}

func TestStreamReaderSourcesAndMalformedLines(t *testing.T) {
	body := `{"reply":"Answer"}
not json at all
{"sources":[{"url":"https://example.com","title":"Example"}]}
{"done":true}
`
	reader := NewStreamReader(strings.NewReader(body))

	var sources []Source
	var sawDone bool
	err := reader.Process(context.Background(), func(chunk StreamChunk) {
		sources = append(sources, chunk.Sources...)
		if chunk.Done {
			sawDone = true
		}
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if !sawDone {
		t.Error("done marker not delivered")
	}
	if len(sources) != 1 || sources[0].URL != "https://example.com" {
		t.Errorf("sources = %+v", sources)
	}
}

func TestStreamReaderEOFWithoutDone(t *testing.T) {
	reader := NewStreamReader(strings.NewReader(`{"reply":"partial"}` + "\n"))

	err := reader.Process(context.Background(), func(chunk StreamChunk) {})
	if err != nil {
		t.Errorf("EOF without done should complete cleanly, got %v", err)
	}
}

func TestStreamReaderContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := NewStreamReader(strings.NewReader(`{"reply":"x"}` + "\n"))
	if err := reader.Process(ctx, func(StreamChunk) {}); err == nil {
		t.Error("expected context error")
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestCreateConversation(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req createConversationRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.UserID != "anon-test" {
			t.Errorf("UserID = %q", req.UserID)
		}
		json.NewEncoder(w).Encode(ConversationRecord{
			ID: "conv-1", Title: req.Title, Color: req.Color,
		})
	}))

	record, err := client.CreateConversation(context.Background(), "Hi there", "#112233")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if record.ID != "conv-1" || record.Title != "Hi there" {
		t.Errorf("record = %+v", record)
	}
}

func TestCreateConversationUnreachable(t *testing.T) {
	client := NewClient(&Config{
		BaseURL:           "http://127.0.0.1:1", // nothing listens here
		Timeout:           200 * time.Millisecond,
		RequestsPerSecond: 1000,
	})

	_, err := client.CreateConversation(context.Background(), "t", "")
	if !IsUnreachable(err) {
		t.Errorf("expected unreachable error, got %v", err)
	}
}

func TestFetchConversationNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
	}))

	_, err := client.FetchConversation(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestListConversations(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "anon-test" {
			t.Errorf("user_id = %q", got)
		}
		json.NewEncoder(w).Encode(listConversationsResponse{
			Conversations: []ConversationRecord{{ID: "a"}, {ID: "b"}},
		})
	}))

	records, err := client.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestSendTurnStream(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendTurnRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream || req.ConversationID != "c1" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"reply":"Hel"}` + "\n"))
		w.Write([]byte(`{"reply":"lo!"}` + "\n"))
		w.Write([]byte(`{"done":true}` + "\n"))
	}))

	var sb strings.Builder
	err := client.SendTurnStream(context.Background(), "c1", "Hi", func(chunk StreamChunk) {
		sb.WriteString(chunk.Reply)
	})
	if err != nil {
		t.Fatalf("SendTurnStream failed: %v", err)
	}
	if sb.String() != "Hello!" {
		t.Errorf("streamed reply = %q", sb.String())
	}
}

func TestSendTurnStreamStallAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reply":"partial"}` + "\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Backend goes quiet without closing the stream
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	client := NewClient(&Config{
		BaseURL:           server.URL,
		StreamIdleTimeout: 100 * time.Millisecond,
		RequestsPerSecond: 1000,
	})

	var got strings.Builder
	var terminal error
	err := client.SendTurnStream(context.Background(), "c1", "Hi", func(chunk StreamChunk) {
		got.WriteString(chunk.Reply)
		if chunk.Error != nil {
			terminal = chunk.Error
			if !chunk.Done {
				t.Error("error chunk should carry the done marker")
			}
		}
	})
	if !IsUnreachable(err) {
		t.Fatalf("expected unreachable error from stalled stream, got %v", err)
	}
	if !strings.Contains(err.Error(), "stalled") {
		t.Errorf("error should name the stall: %v", err)
	}
	if got.String() != "partial" {
		t.Errorf("text received before the stall = %q", got.String())
	}
	if terminal == nil {
		t.Error("callback did not receive the terminal error chunk")
	}
	if client.TurnInFlight("c1") {
		t.Error("turn still marked in flight after abort")
	}
}

func TestSendTurnBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedOnce.Do(func() { close(started) })
		<-release
		w.Write([]byte(`{"done":true}` + "\n"))
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.SendTurnStream(context.Background(), "c1", "first", func(StreamChunk) {})
	}()

	<-started
	if !client.TurnInFlight("c1") {
		t.Error("expected turn in flight")
	}

	// Second send against the same conversation is rejected
	err := client.SendTurnStream(context.Background(), "c1", "second", func(StreamChunk) {})
	if !IsBusy(err) {
		t.Errorf("expected busy error, got %v", err)
	}

	// A different conversation is independent; serve it after releasing
	close(release)
	wg.Wait()

	if client.TurnInFlight("c1") {
		t.Error("turn still marked in flight after completion")
	}

	if err := client.SendTurnStream(context.Background(), "c2", "other", func(StreamChunk) {}); err != nil {
		t.Errorf("independent conversation rejected: %v", err)
	}
}

func TestInitSessionPayload(t *testing.T) {
	var got initSessionRequest
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{}`))
	}))

	history := []Message{{Role: "user", Content: "Hi"}, {Role: "assistant", Content: "Hello!"}}
	settings := SessionSettings{Persona: "technical", SearchEnabled: true, DisplayName: "Ada"}

	if err := client.InitSession(context.Background(), settings, history); err != nil {
		t.Fatalf("InitSession failed: %v", err)
	}

	if !got.SearchEnabled {
		t.Error("search flag not forwarded")
	}
	if len(got.History) != 2 {
		t.Errorf("history length = %d, want 2", len(got.History))
	}
	if !strings.Contains(got.SystemInstruction, "technical expert") {
		t.Errorf("system instruction missing persona block: %q", got.SystemInstruction)
	}
	if !strings.Contains(got.SystemInstruction, "Ada") {
		t.Error("system instruction missing user name")
	}
}

func TestSystemInstructionUnknownPersona(t *testing.T) {
	instruction := SystemInstruction(SessionSettings{Persona: "banana"})
	if !strings.Contains(instruction, "friendly AI companion") {
		t.Errorf("unknown persona should fall back to friendly: %q", instruction)
	}
}

func TestStatusErrorUsesBackendDetail(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"model overloaded"}`, http.StatusServiceUnavailable)
	}))

	err := client.Rename(context.Background(), "c1", "new title")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("expected backend detail in error, got %v", err)
	}
}
