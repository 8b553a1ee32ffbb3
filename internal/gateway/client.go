// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client for the Aura conversational backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches client errors by type so sentinel comparisons via errors.Is
// work for wrapped instances carrying a cause.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnreachable
	ErrTypeBusy
	ErrTypeNotFound
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ClientError{Type: ErrTypeUnreachable, Message: "backend unreachable"}
	ErrBusy        = &ClientError{Type: ErrTypeBusy, Message: "a turn is already in flight for this conversation"}
	ErrNotFound    = &ClientError{Type: ErrTypeNotFound, Message: "conversation not found"}
)

// IsUnreachable checks if an error indicates the backend could not be reached.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsBusy checks if an error is the duplicate-send rejection.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsNotFound checks if an error indicates a missing conversation.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the backend client.
type Config struct {
	// BaseURL is the backend API base URL (default: http://127.0.0.1:8811)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StreamIdleTimeout bounds the gap between stream chunks; a stall
	// longer than this aborts the turn (default: 90s).
	StreamIdleTimeout time.Duration

	// UserID is the anonymous user identifier sent on conversation CRUD.
	UserID string

	// RequestsPerSecond throttles send traffic (default: 2, burst 4).
	RequestsPerSecond float64

	// Logger receives diagnostics for fire-and-forget failures.
	// Nil discards them.
	Logger *log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://127.0.0.1:8811",
		Timeout:           30 * time.Second,
		StreamIdleTimeout: 90 * time.Second,
		RequestsPerSecond: 2,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Aura backend.
//
// The Client is safe for concurrent use. Each conversation admits at most
// one outstanding send; concurrent sends for different conversations are
// independent.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewClient creates a new backend client. A nil config uses defaults; zero
// fields are filled in.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8811"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.StreamIdleTimeout == 0 {
		config.StreamIdleTimeout = 90 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 2
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 4),
		logger:     logger,
		inflight:   make(map[string]bool),
	}
}

// Config returns the client configuration.
func (c *Client) Config() *Config {
	return c.config
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the backend is reachable.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "backend unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeUnreachable,
			Message: "unexpected status from backend: " + resp.Status,
		}
	}
	return nil
}

// =============================================================================
// CONVERSATION CRUD
// =============================================================================

// CreateConversation registers a new conversation with the backend and
// returns the canonical server-assigned record. Callers fall back to a
// local-only conversation when this fails with an unreachable error.
func (c *Client) CreateConversation(ctx context.Context, title, color string) (*ConversationRecord, error) {
	body := createConversationRequest{Title: title, Color: color, UserID: c.config.UserID}

	var record ConversationRecord
	if err := c.postJSON(ctx, "/conversations", body, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// FetchConversation retrieves a conversation's stored history and metadata.
func (c *Client) FetchConversation(ctx context.Context, id string) (*ConversationHistory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/conversation/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnreachable, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnreachable, Message: "backend unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("fetch conversation", resp)
	}

	var history ConversationHistory
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &history, nil
}

// ListConversations retrieves the conversation summaries for this user.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationRecord, error) {
	endpoint := c.config.BaseURL + "/conversations"
	if c.config.UserID != "" {
		endpoint += "?user_id=" + url.QueryEscape(c.config.UserID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnreachable, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnreachable, Message: "backend unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("list conversations", resp)
	}

	var result listConversationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return result.Conversations, nil
}

// Rename updates a conversation title. Fire-and-forget: callers apply the
// change locally regardless of outcome and only log failures.
func (c *Client) Rename(ctx context.Context, id, title string) error {
	return c.postJSON(ctx, "/conversation/"+url.PathEscape(id)+"/rename", renameRequest{Title: title}, nil)
}

// SetColor updates a conversation's cosmetic color tag. Fire-and-forget.
func (c *Client) SetColor(ctx context.Context, id, color string) error {
	return c.postJSON(ctx, "/conversation/"+url.PathEscape(id)+"/color", colorRequest{Color: color}, nil)
}

// Delete removes a conversation and its history server-side.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.config.BaseURL+"/conversation/"+url.PathEscape(id), nil)
	if err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "backend unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return c.statusError("delete conversation", resp)
	}
	return nil
}

// =============================================================================
// SESSION INITIALIZATION
// =============================================================================

// InitSession (re)establishes the backend's conversational context: the
// persona system instruction, search-tool enablement, and the prior turns so
// follow-up sends are contextually continuous. It must be called whenever
// settings change or a different conversation becomes active.
func (c *Client) InitSession(ctx context.Context, settings SessionSettings, history []Message) error {
	body := initSessionRequest{
		SystemInstruction: SystemInstruction(settings),
		SearchEnabled:     settings.SearchEnabled,
		History:           history,
		UserID:            c.config.UserID,
	}
	return c.postJSON(ctx, "/session", body, nil)
}

// =============================================================================
// SEND OPERATIONS
// =============================================================================

// StreamCallback is called for each chunk received during streaming.
// Callbacks run synchronously in arrival order.
type StreamCallback func(chunk StreamChunk)

// SendTurnStream sends one user turn and delivers the reply incrementally.
// Returns when the stream completes or an error occurs. A second call for
// the same conversation while one is outstanding fails with ErrBusy.
//
// A stream may run for as long as chunks keep arriving, but a stall longer
// than StreamIdleTimeout aborts the turn: the callback receives a terminal
// error chunk and SendTurnStream returns the same error.
func (c *Client) SendTurnStream(ctx context.Context, conversationID, text string, callback StreamCallback) error {
	if err := c.beginTurn(conversationID); err != nil {
		return err
	}
	defer c.endTurn(conversationID)

	if err := c.limiter.Wait(ctx); err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "send aborted", Cause: err}
	}

	reqBody, err := json.Marshal(sendTurnRequest{ConversationID: conversationID, Text: text, Stream: true})
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// No overall timeout for streaming, but the idle watchdog cancels the
	// request when the backend goes quiet between chunks.
	streamClient := &http.Client{}
	idle := c.config.StreamIdleTimeout

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stalled atomic.Bool
	watchdog := time.AfterFunc(idle, func() {
		stalled.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat", bytes.NewReader(reqBody))
	if err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := streamClient.Do(req)
	if err != nil {
		if stalled.Load() {
			return c.stallError(idle, err)
		}
		return &ClientError{Type: ErrTypeUnreachable, Message: "backend unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return c.statusError("send turn", resp)
	}

	reader := NewStreamReader(resp.Body)
	err = reader.Process(ctx, func(chunk StreamChunk) {
		watchdog.Reset(idle)
		callback(chunk)
	})
	if err != nil && stalled.Load() {
		serr := c.stallError(idle, err)
		callback(StreamChunk{Error: serr, Done: true})
		return serr
	}
	return err
}

// stallError labels a watchdog-triggered abort.
func (c *Client) stallError(idle time.Duration, cause error) error {
	return &ClientError{
		Type:    ErrTypeUnreachable,
		Message: "stream stalled: no data within " + idle.String(),
		Cause:   cause,
	}
}

// beginTurn marks a conversation as having an outstanding send.
func (c *Client) beginTurn(conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[conversationID] {
		return ErrBusy
	}
	c.inflight[conversationID] = true
	return nil
}

// endTurn clears the outstanding-send mark.
func (c *Client) endTurn(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, conversationID)
}

// TurnInFlight reports whether a send is outstanding for the conversation.
func (c *Client) TurnInFlight(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[conversationID]
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

// postJSON posts a JSON body and optionally decodes a JSON response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "backend unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return c.statusError("request "+path, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// statusError builds a ClientError from a non-OK response, preferring the
// backend's detail message when one is present.
func (c *Client) statusError(op string, resp *http.Response) error {
	var backendErr backendError
	if err := json.NewDecoder(resp.Body).Decode(&backendErr); err == nil && backendErr.Detail != "" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: backendErr.Detail}
	}
	return &ClientError{
		Type:    ErrTypeInvalidResponse,
		Message: op + " failed: " + resp.Status,
	}
}
