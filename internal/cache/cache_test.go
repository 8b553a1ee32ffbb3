// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the local key-value persistence layer for aura-tui.
package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache failed: %v", err)
	}

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := c.Set("key1", payload{Name: "aura", Count: 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got payload
	if !GetJSON(c, "key1", &got) {
		t.Fatal("GetJSON reported missing key")
	}
	if got.Name != "aura" || got.Count != 3 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestFileCacheMissingKey(t *testing.T) {
	c, _ := NewFileCache(t.TempDir())

	if _, ok := c.Get("nope"); ok {
		t.Error("Get should report absence for missing key")
	}

	var v map[string]string
	if GetJSON(c, "nope", &v) {
		t.Error("GetJSON should report absence for missing key")
	}
}

func TestFileCacheCorruptValueDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewFileCache(dir)

	// Write garbage directly where the cache expects JSON
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, ok := c.Get("broken"); ok {
		t.Error("corrupt value should read as absent")
	}

	// The key stays writable afterwards
	if err := c.Set("broken", map[string]int{"ok": 1}); err != nil {
		t.Fatalf("Set over corrupt value failed: %v", err)
	}
	var v map[string]int
	if !GetJSON(c, "broken", &v) || v["ok"] != 1 {
		t.Error("overwrite of corrupt value failed")
	}
}

func TestFileCacheMalformedJSONValueSwallowed(t *testing.T) {
	c, _ := NewFileCache(t.TempDir())

	// Valid JSON of the wrong shape: unmarshal failure must be swallowed
	if err := c.Set("shape", []int{1, 2, 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var v struct{ Name string }
	if GetJSON(c, "shape", &v) {
		t.Error("mismatched shape should report absence, not error")
	}
}

func TestFileCacheRemove(t *testing.T) {
	c, _ := NewFileCache(t.TempDir())

	c.Set("gone", "value")
	c.Remove("gone")

	if _, ok := c.Get("gone"); ok {
		t.Error("key should be absent after Remove")
	}

	// Removing a missing key is a no-op
	c.Remove("never-existed")
}

func TestFileCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, _ := NewFileCache(dir)
	first.Set(ConversationKey("c1"), []string{"a", "b"})

	// Simulate process restart
	second, _ := NewFileCache(dir)
	var msgs []string
	if !GetJSON(second, ConversationKey("c1"), &msgs) {
		t.Fatal("value lost across reopen")
	}
	if len(msgs) != 2 || msgs[0] != "a" || msgs[1] != "b" {
		t.Errorf("reloaded value = %v", msgs)
	}
}

func TestConversationKeySanitized(t *testing.T) {
	c, _ := NewFileCache(t.TempDir())

	key := ConversationKey("abc/../../etc")
	if err := c.Set(key, "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var v string
	if !GetJSON(c, key, &v) || v != "v" {
		t.Error("sanitized key round trip failed")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()

	if err := c.Set(KeySettings, map[string]bool{"on": true}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var v map[string]bool
	if !GetJSON(c, KeySettings, &v) || !v["on"] {
		t.Error("memory cache round trip failed")
	}

	c.Remove(KeySettings)
	if _, ok := c.Get(KeySettings); ok {
		t.Error("key should be absent after Remove")
	}
}
