// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/aura-tui/internal/config"
	"github.com/jeranaias/aura-tui/internal/model"
	"github.com/jeranaias/aura-tui/internal/send"
	"github.com/jeranaias/aura-tui/internal/store"
)

// ErrEmptyInput is returned by Ask when there is nothing to send.
var ErrEmptyInput = errors.New("empty input")

// ReadPiped reads the full question from a non-terminal stdin.
func ReadPiped(r io.Reader) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyInput
	}
	return text, nil
}

// Ask runs a single turn and prints the reply. It is used for one-shot
// invocations (aura "question") and piped input (echo q | aura).
func Ask(ctx context.Context, s *store.Store, pipeline *send.Pipeline, cfg *config.Config, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	convID, err := pipeline.Send(ctx, text)
	if err != nil {
		return err
	}

	conv := s.Get(convID)
	if conv == nil {
		return store.ErrConversationNotFound
	}
	last := conv.LastMessage()
	if last == nil || last.Role != model.RoleAssistant {
		return errors.New("no reply received")
	}
	if last.IsError {
		return errors.New(last.Content)
	}

	render := newRenderer(cfg.UI.Markdown)
	fmt.Println(render.Reply(last.DisplayContent()))
	printSources(last)
	return nil
}
