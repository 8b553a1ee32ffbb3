// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client for the Aura conversational backend.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of streamed replies.
type StreamReader struct {
	reader *bufio.Reader
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
	}
}

// Process reads the stream and calls the callback for each chunk, in arrival
// order on the calling goroutine. Blocks until the stream is complete or the
// context is cancelled. A stream that ends without a done marker is treated
// as complete.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			chunk, err := s.readChunk()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			if chunk != nil {
				callback(*chunk)
				if chunk.Done {
					return nil
				}
			}
		}
	}
}

// readChunk reads and parses a single line from the stream.
// Malformed lines are skipped rather than failing the whole stream.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		// Try to process the last line even on EOF
		if len(line) == 0 {
			return nil, err
		}
	}

	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil, nil
	}

	var wire struct {
		Reply   string   `json:"reply"`
		Sources []Source `json:"sources"`
		Done    bool     `json:"done"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return nil, nil
	}

	return &StreamChunk{
		Reply:   wire.Reply,
		Sources: wire.Sources,
		Done:    wire.Done,
	}, nil
}
