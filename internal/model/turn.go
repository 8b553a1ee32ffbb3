// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

// =============================================================================
// TURN STATE MACHINE
// =============================================================================

// TurnState tracks the lifecycle of one send turn within a conversation.
//
// Transitions:
//
//	Idle -> UserAppended -> PlaceholderOpen -> Streaming (self-loop on chunk)
//	PlaceholderOpen | Streaming -> Idle (finalize or fail)
//
// Idle is both the initial and terminal state. At most one turn may be in a
// non-Idle state per conversation, which is what guarantees the
// single-mutable-placeholder invariant.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnUserAppended
	TurnPlaceholderOpen
	TurnStreaming
)

// String returns a readable name for the state.
func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnUserAppended:
		return "user-appended"
	case TurnPlaceholderOpen:
		return "placeholder-open"
	case TurnStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// TurnError reports an operation applied in the wrong turn state.
type TurnError struct {
	Op    string
	State TurnState
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	return "turn: " + e.Op + " not allowed in state " + e.State.String()
}

// =============================================================================
// TURN OPERATIONS
// =============================================================================

// TurnState returns the current turn state.
func (c *Conversation) TurnState() TurnState {
	return c.turn
}

// TurnOpen reports whether a turn is in flight. While true, input submission
// for this conversation must be disabled and further sends rejected.
func (c *Conversation) TurnOpen() bool {
	return c.turn != TurnIdle
}

// BeginTurn appends the optimistic user message for a new turn. It must be
// called before any network dispatch so the UI never waits on the network to
// show what the user typed.
func (c *Conversation) BeginTurn(text string) (*Message, error) {
	if c.turn != TurnIdle {
		return nil, &TurnError{Op: "begin", State: c.turn}
	}
	msg := NewUserMessage(text)
	c.AddMessage(msg)
	c.turn = TurnUserAppended
	return msg, nil
}

// OpenPlaceholder appends the mutable assistant placeholder for the turn.
// The placeholder is the sole message whose content may change in place.
func (c *Conversation) OpenPlaceholder() (*Message, error) {
	if c.turn != TurnUserAppended {
		return nil, &TurnError{Op: "open placeholder", State: c.turn}
	}
	msg := NewAssistantPlaceholder()
	c.AddMessage(msg)
	c.placeholder = msg
	c.turn = TurnPlaceholderOpen
	return msg, nil
}

// AppendStreamChunk appends a text fragment to the open placeholder.
// Chunks must be applied in arrival order; content is their concatenation.
func (c *Conversation) AppendStreamChunk(text string) error {
	if c.turn != TurnPlaceholderOpen && c.turn != TurnStreaming {
		return &TurnError{Op: "append chunk", State: c.turn}
	}
	c.placeholder.AppendChunk(text)
	c.turn = TurnStreaming
	return nil
}

// AppendStreamSources attaches citation sources to the open placeholder.
func (c *Conversation) AppendStreamSources(sources []Source) error {
	if c.turn != TurnPlaceholderOpen && c.turn != TurnStreaming {
		return &TurnError{Op: "append sources", State: c.turn}
	}
	c.placeholder.AddSources(sources)
	c.turn = TurnStreaming
	return nil
}

// FinalizeTurn freezes the placeholder content and returns the turn to Idle.
// The finalized message is returned for persistence and indexing.
func (c *Conversation) FinalizeTurn() (*Message, error) {
	if c.turn != TurnPlaceholderOpen && c.turn != TurnStreaming {
		return nil, &TurnError{Op: "finalize", State: c.turn}
	}
	msg := c.placeholder
	msg.FinalizeStream()
	c.placeholder = nil
	c.turn = TurnIdle
	c.touch()
	return msg, nil
}

// FailTurn terminates the turn with a user-safe error notice. Any partially
// streamed placeholder content is replaced by the notice rather than kept;
// if no placeholder had been opened yet, the notice is appended instead.
func (c *Conversation) FailTurn(notice string) (*Message, error) {
	if c.turn == TurnIdle {
		return nil, &TurnError{Op: "fail", State: c.turn}
	}

	errMsg := NewErrorMessage(notice)
	if c.placeholder != nil {
		for i, msg := range c.Messages {
			if msg == c.placeholder {
				c.Messages[i] = errMsg
				break
			}
		}
		c.placeholder = nil
	} else {
		c.Messages = append(c.Messages, errMsg)
	}

	c.turn = TurnIdle
	c.touch()
	return errMsg, nil
}
