// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/aura-tui/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed        = errors.New("history index closed")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// MESSAGE INDEX
// =============================================================================

// Index is the local full-text message index.
type Index struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the index database at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.db == nil {
		return nil
	}
	err := idx.db.Close()
	idx.db = nil
	return err
}

// =============================================================================
// WRITES
// =============================================================================

// IndexMessage records one finalized message. Re-indexing the same message
// ID replaces the previous row, so the operation is idempotent. Greeting
// and failure-notice messages are skipped.
func (idx *Index) IndexMessage(conv *model.Conversation, msg *model.Message) error {
	if msg.IsWelcome() || msg.IsError || msg.IsStreaming {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.db == nil {
		return ErrClosed
	}

	_, err := idx.db.Exec(`
		INSERT INTO messages (id, conversation_id, conversation_title, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_title = excluded.conversation_title,
			content = excluded.content`,
		msg.ID, conv.ID, conv.DisplayTitle(), msg.Role.String(),
		msg.DisplayContent(), msg.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// IndexTurn records the two messages of a completed turn.
func (idx *Index) IndexTurn(conv *model.Conversation, user, reply *model.Message) error {
	if err := idx.IndexMessage(conv, user); err != nil {
		return err
	}
	return idx.IndexMessage(conv, reply)
}

// RemoveConversation drops every indexed message for a conversation.
func (idx *Index) RemoveConversation(conversationID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.db == nil {
		return ErrClosed
	}

	if _, err := idx.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// Rebuild drops the index contents and re-indexes every message of the
// given conversations.
func (idx *Index) Rebuild(conversations []*model.Conversation) error {
	idx.mu.Lock()
	if idx.db == nil {
		idx.mu.Unlock()
		return ErrClosed
	}
	if _, err := idx.db.Exec(`DELETE FROM messages`); err != nil {
		idx.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	idx.mu.Unlock()

	for _, conv := range conversations {
		for _, msg := range conv.Messages {
			if err := idx.IndexMessage(conv, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Count returns the number of indexed messages.
func (idx *Index) Count() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.db == nil {
		return 0, ErrClosed
	}

	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return n, nil
}
