// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the local key-value persistence layer for aura-tui.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jeranaias/aura-tui/internal/util"
)

// =============================================================================
// KEYS
// =============================================================================

const (
	// KeyIndex holds the ordered conversation index.
	KeyIndex = "index"
	// KeySettings holds the process-wide chat settings.
	KeySettings = "settings"
	// KeyAnonID holds the anonymous user identifier.
	KeyAnonID = "anon_id"

	convKeyPrefix = "conv:"
)

// ConversationKey returns the cache key for one conversation's messages.
func ConversationKey(id string) string {
	return convKeyPrefix + id
}

// =============================================================================
// CACHE INTERFACE
// =============================================================================

// Cache is the local persistence contract. Get reports absence rather than
// failure; implementations must treat corrupt or unreadable values as absent.
type Cache interface {
	// Get returns the raw JSON stored under key, or ok=false if absent.
	Get(key string) (json.RawMessage, bool)

	// Set marshals v as JSON and stores it under key.
	Set(key string, v any) error

	// Remove deletes the value stored under key, if any.
	Remove(key string)
}

// GetJSON loads and unmarshals the value under key into v. A missing key or
// malformed value yields false; the destination is left untouched.
func GetJSON(c Cache, key string, v any) bool {
	raw, ok := c.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		// Corrupt cached state degrades to empty, never an error.
		return false
	}
	return true
}

// =============================================================================
// FILE CACHE
// =============================================================================

// FileCache persists each key as one JSON file in a directory.
type FileCache struct {
	dir string
	mu  sync.Mutex
}

// NewFileCache creates a file cache rooted at dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Get returns the raw JSON stored under key, or ok=false if absent.
func (c *FileCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath(key))
	if err != nil {
		return nil, false
	}
	if !json.Valid(data) {
		return nil, false
	}
	return json.RawMessage(data), true
}

// Set marshals v as JSON and writes it atomically.
func (c *FileCache) Set(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	return util.AtomicWriteFile(c.filePath(key), data, 0644)
}

// Remove deletes the value stored under key, if any.
func (c *FileCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	os.Remove(c.filePath(key))
}

// filePath maps a cache key to a filename. Characters outside the portable
// set are replaced so keys like "conv:<id>" are valid on every filesystem.
func (c *FileCache) filePath(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+".json")
}

func sanitizeKey(key string) string {
	var sb strings.Builder
	sb.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// =============================================================================
// MEMORY CACHE
// =============================================================================

// MemoryCache is an in-memory Cache used by tests and ephemeral sessions.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string]json.RawMessage)}
}

// Get returns the raw JSON stored under key, or ok=false if absent.
func (c *MemoryCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	return raw, ok
}

// Set marshals v as JSON and stores it under key.
func (c *MemoryCache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = data
	return nil
}

// Remove deletes the value stored under key, if any.
func (c *MemoryCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}
