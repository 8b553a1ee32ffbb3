// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SEARCH RESULT
// =============================================================================

// SearchResult is one indexed message matching a query.
type SearchResult struct {
	MessageID         string
	ConversationID    string
	ConversationTitle string
	Role              string
	Snippet           string
	Timestamp         time.Time
	Rank              float64
}

// SearchOptions configures search behavior
type SearchOptions struct {
	// MaxResults limits the number of results (0 = unlimited)
	MaxResults int

	// ConversationID restricts results to one conversation ("" = all)
	ConversationID string

	// Roles filters by message role (empty = all roles)
	Roles []string
}

// DefaultSearchOptions returns default search options
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{
		MaxResults: 25,
	}
}

// =============================================================================
// SEARCH METHODS
// =============================================================================

// Search finds messages matching the query using full-text search. Results
// are ordered by relevance, best match first.
func (idx *Index) Search(query string, options *SearchOptions) ([]SearchResult, error) {
	if options == nil {
		options = DefaultSearchOptions()
	}

	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return []SearchResult{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.db == nil {
		return nil, ErrClosed
	}

	sqlQuery := `
		SELECT
			m.id, m.conversation_id, m.conversation_title, m.role, m.created_at,
			snippet(messages_fts, 0, '', '', '…', 16),
			fts.rank
		FROM messages_fts fts
		JOIN messages m ON m.rowid = fts.rowid
		WHERE messages_fts MATCH ?
	`

	args := []any{ftsQuery}

	var conditions []string
	if options.ConversationID != "" {
		conditions = append(conditions, "m.conversation_id = ?")
		args = append(args, options.ConversationID)
	}
	if len(options.Roles) > 0 {
		placeholders := make([]string, len(options.Roles))
		for i, role := range options.Roles {
			placeholders[i] = "?"
			args = append(args, role)
		}
		conditions = append(conditions, "m.role IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(conditions) > 0 {
		sqlQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sqlQuery += " ORDER BY fts.rank"

	if options.MaxResults > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, options.MaxResults)
	}

	rows, err := idx.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var result SearchResult
		var createdAt int64

		err := rows.Scan(
			&result.MessageID,
			&result.ConversationID,
			&result.ConversationTitle,
			&result.Role,
			&createdAt,
			&result.Snippet,
			&result.Rank,
		)
		if err != nil {
			continue
		}
		result.Timestamp = time.Unix(createdAt, 0)
		results = append(results, result)
	}
	return results, rows.Err()
}

// Recent returns the latest indexed messages, newest first.
func (idx *Index) Recent(limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 25
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.db == nil {
		return nil, ErrClosed
	}

	rows, err := idx.db.Query(`
		SELECT id, conversation_id, conversation_title, role, created_at, content
		FROM messages
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var result SearchResult
		var createdAt int64
		if err := rows.Scan(
			&result.MessageID,
			&result.ConversationID,
			&result.ConversationTitle,
			&result.Role,
			&createdAt,
			&result.Snippet,
		); err != nil {
			continue
		}
		result.Timestamp = time.Unix(createdAt, 0)
		results = append(results, result)
	}
	return results, rows.Err()
}

// buildFTSQuery quotes each query term so user input cannot inject FTS
// operators, then joins terms with implicit AND.
func buildFTSQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ReplaceAll(term, `"`, "")
		if term == "" {
			continue
		}
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " ")
}
