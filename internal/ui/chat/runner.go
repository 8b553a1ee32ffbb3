// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/aura-tui/internal/send"
)

// Runner bridges the send pipeline into the Bubble Tea message loop. The
// pipeline mutates conversations on its own goroutine; Runner converts each
// mutation into a program message so Update stays the single writer of view
// state.
type Runner struct {
	mu       sync.Mutex
	pipeline *send.Pipeline
	program  *tea.Program
}

// NewRunner creates a runner for the given pipeline. The pipeline's OnUpdate
// hook is claimed by the runner.
func NewRunner(pipeline *send.Pipeline) *Runner {
	r := &Runner{pipeline: pipeline}
	pipeline.OnUpdate = func(conversationID string) {
		r.send(TurnUpdateMsg{ConversationID: conversationID})
	}
	return r
}

// Attach connects the runner to a running program. Updates arriving before
// Attach are dropped, which is safe: the first full render after startup
// reads the store directly.
func (r *Runner) Attach(program *tea.Program) {
	r.mu.Lock()
	r.program = program
	r.mu.Unlock()
}

// Submit runs one turn on a background goroutine and reports completion to
// the program.
func (r *Runner) Submit(text string) {
	go func() {
		id, err := r.pipeline.Send(context.Background(), text)
		r.send(TurnFinishedMsg{ConversationID: id, Err: err})
	}()
}

func (r *Runner) send(msg tea.Msg) {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}
