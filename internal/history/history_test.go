// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"path/filepath"
	"testing"

	"github.com/jeranaias/aura-tui/internal/model"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func indexedTurn(t *testing.T, idx *Index, conv *model.Conversation, question, answer string) {
	t.Helper()
	user := model.NewUserMessage(question)
	reply := model.NewMessage(model.RoleAssistant, answer)
	conv.AddMessage(user)
	conv.AddMessage(reply)
	if err := idx.IndexTurn(conv, user, reply); err != nil {
		t.Fatalf("IndexTurn: %v", err)
	}
}

func TestIndexAndSearch(t *testing.T) {
	idx := openTestIndex(t)
	conv := model.NewConversation("c1", "Gardening", "")

	indexedTurn(t, idx, conv, "how do I repot a fiddle leaf fig?", "Choose a pot two inches wider and use fresh soil.")
	indexedTurn(t, idx, conv, "what about watering?", "Water when the top inch of soil is dry.")

	results, err := idx.Search("fiddle leaf", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].ConversationID != "c1" {
		t.Errorf("conversation = %q", results[0].ConversationID)
	}
	if results[0].ConversationTitle != "Gardening" {
		t.Errorf("title = %q", results[0].ConversationTitle)
	}
	if results[0].Role != "user" {
		t.Errorf("role = %q", results[0].Role)
	}
}

func TestSearchStemsTerms(t *testing.T) {
	idx := openTestIndex(t)
	conv := model.NewConversation("c1", "Chat", "")
	indexedTurn(t, idx, conv, "tips for watering succulents", "Sparingly.")

	// Porter stemming matches "watering" from "water".
	results, err := idx.Search("water", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Error("expected a stemmed match")
	}
}

func TestSearchFilters(t *testing.T) {
	idx := openTestIndex(t)
	first := model.NewConversation("c1", "First", "")
	second := model.NewConversation("c2", "Second", "")
	indexedTurn(t, idx, first, "tell me about lighthouses", "They guide ships.")
	indexedTurn(t, idx, second, "lighthouses again", "Still guiding ships.")

	results, err := idx.Search("lighthouses", &SearchOptions{ConversationID: "c2"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ConversationID != "c2" {
			t.Errorf("result leaked from %q", r.ConversationID)
		}
	}

	results, err = idx.Search("ships", &SearchOptions{Roles: []string{"assistant"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected assistant matches")
	}
	for _, r := range results {
		if r.Role != "assistant" {
			t.Errorf("role = %q, want assistant", r.Role)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := openTestIndex(t)

	results, err := idx.Search("   ", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestSearchQuotesOperators(t *testing.T) {
	idx := openTestIndex(t)
	conv := model.NewConversation("c1", "Chat", "")
	indexedTurn(t, idx, conv, "plain message", "plain reply")

	// FTS operators in user input must not cause query errors.
	if _, err := idx.Search(`NEAR( OR "unbalanced`, nil); err != nil {
		t.Fatalf("Search with operator input: %v", err)
	}
}

func TestIndexSkipsNonHistoryMessages(t *testing.T) {
	idx := openTestIndex(t)
	conv := model.NewConversation("c1", "Chat", "")

	if err := idx.IndexMessage(conv, model.NewWelcomeMessage("")); err != nil {
		t.Fatalf("IndexMessage: %v", err)
	}
	if err := idx.IndexMessage(conv, model.NewErrorMessage("boom")); err != nil {
		t.Fatalf("IndexMessage: %v", err)
	}

	n, err := idx.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestIndexIsIdempotent(t *testing.T) {
	idx := openTestIndex(t)
	conv := model.NewConversation("c1", "Chat", "")
	msg := model.NewUserMessage("repeated")
	conv.AddMessage(msg)

	for i := 0; i < 3; i++ {
		if err := idx.IndexMessage(conv, msg); err != nil {
			t.Fatalf("IndexMessage: %v", err)
		}
	}

	n, err := idx.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestRemoveConversation(t *testing.T) {
	idx := openTestIndex(t)
	keep := model.NewConversation("keep", "Keep", "")
	drop := model.NewConversation("drop", "Drop", "")
	indexedTurn(t, idx, keep, "keep this around", "kept")
	indexedTurn(t, idx, drop, "drop this soon", "dropped")

	if err := idx.RemoveConversation("drop"); err != nil {
		t.Fatalf("RemoveConversation: %v", err)
	}

	results, err := idx.Search("drop", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("deleted conversation still searchable: %+v", results)
	}

	results, err = idx.Search("keep", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Error("other conversations should be unaffected")
	}
}

func TestRebuild(t *testing.T) {
	idx := openTestIndex(t)
	stale := model.NewConversation("stale", "Stale", "")
	indexedTurn(t, idx, stale, "stale entry", "old")

	fresh := model.NewConversation("fresh", "Fresh", "")
	fresh.AddMessage(model.NewUserMessage("fresh entry"))
	fresh.AddMessage(model.NewMessage(model.RoleAssistant, "new"))

	if err := idx.Rebuild([]*model.Conversation{fresh}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	results, err := idx.Search("stale", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Error("rebuild should drop stale entries")
	}

	results, err = idx.Search("fresh", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Error("rebuild should index the given conversations")
	}
}

func TestRecent(t *testing.T) {
	idx := openTestIndex(t)
	conv := model.NewConversation("c1", "Chat", "")
	indexedTurn(t, idx, conv, "first question", "first answer")
	indexedTurn(t, idx, conv, "second question", "second answer")

	results, err := idx.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
}

func TestClosedIndex(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	conv := model.NewConversation("c1", "Chat", "")
	if err := idx.IndexMessage(conv, model.NewUserMessage("late")); err != ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if _, err := idx.Search("late", nil); err != ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
