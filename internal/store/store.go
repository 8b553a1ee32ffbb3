// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/aura-tui/internal/cache"
	"github.com/jeranaias/aura-tui/internal/gateway"
	"github.com/jeranaias/aura-tui/internal/model"
)

// ErrNoActiveConversation is returned by turn operations when no
// conversation is selected.
var ErrNoActiveConversation = errors.New("no active conversation")

// ErrConversationNotFound is returned when an ID resolves to nothing in
// memory, cache, or backend.
var ErrConversationNotFound = errors.New("conversation not found")

// =============================================================================
// GATEWAY CONTRACT
// =============================================================================

// Gateway is the slice of the backend client the store depends on. It is an
// interface so tests can substitute a fake backend.
type Gateway interface {
	CreateConversation(ctx context.Context, title, color string) (*gateway.ConversationRecord, error)
	FetchConversation(ctx context.Context, id string) (*gateway.ConversationHistory, error)
	ListConversations(ctx context.Context) ([]gateway.ConversationRecord, error)
	Rename(ctx context.Context, id, title string) error
	SetColor(ctx context.Context, id, color string) error
	Delete(ctx context.Context, id string) error
	InitSession(ctx context.Context, settings gateway.SessionSettings, history []gateway.Message) error
}

// =============================================================================
// STORE
// =============================================================================

// Store is the authoritative in-memory conversation state.
type Store struct {
	mu sync.Mutex

	cache  cache.Cache
	gw     Gateway
	logger *log.Logger

	conversations map[string]*model.Conversation
	activeID      string
	settings      model.Settings

	// settingsCached is true when settings were restored from the cache;
	// configuration defaults then no longer apply.
	settingsCached bool

	// greeting is the non-persisted welcome message shown while no
	// conversation is active. It is carried into the next conversation's
	// visible history but never cached or sent to the backend.
	greeting *model.Message
}

// New creates a store backed by the given cache and gateway, loading any
// previously persisted state. A nil logger discards diagnostics.
func New(c cache.Cache, gw Gateway, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Store{
		cache:         c,
		gw:            gw,
		logger:        logger,
		conversations: make(map[string]*model.Conversation),
		settings:      model.DefaultSettings(),
	}
	s.loadFromCache()
	return s
}

// loadFromCache restores settings, the conversation index, and each
// conversation's messages. Anything corrupt reads as absent.
func (s *Store) loadFromCache() {
	var settings model.Settings
	if cache.GetJSON(s.cache, cache.KeySettings, &settings) {
		s.settings = settings.Normalize()
		s.settingsCached = true
	}

	var index []model.ConversationMeta
	if !cache.GetJSON(s.cache, cache.KeyIndex, &index) {
		return
	}

	for _, meta := range index {
		conv := model.NewConversation(meta.ID, meta.Title, meta.Color)
		conv.LastUpdated = meta.LastUpdated

		var messages []*model.Message
		if cache.GetJSON(s.cache, cache.ConversationKey(meta.ID), &messages) {
			conv.Messages = messages
		}
		s.conversations[meta.ID] = conv
	}
}

// LoadOrCreateAnonID returns the stable anonymous user identifier, creating
// and caching it on first use.
func LoadOrCreateAnonID(c cache.Cache) string {
	var id string
	if cache.GetJSON(c, cache.KeyAnonID, &id) && id != "" {
		return id
	}
	id = uuid.NewString()
	if err := c.Set(cache.KeyAnonID, id); err != nil {
		// A cache that cannot persist the ID still gets a usable session ID.
		return id
	}
	return id
}

// =============================================================================
// SETTINGS
// =============================================================================

// SeedSettings applies configuration defaults when no settings have been
// saved yet. Saved settings always win. It does not touch the backend
// session.
func (s *Store) SeedSettings(settings model.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingsCached {
		return
	}
	s.settings = settings.Normalize()
}

// Settings returns the current chat settings.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings persists new settings and re-seeds the backend session with
// the active conversation's history so the new persona applies immediately.
// A persona change appends a local notice message to the active view.
func (s *Store) UpdateSettings(ctx context.Context, settings model.Settings) error {
	s.mu.Lock()

	settings = settings.Normalize()
	personaChanged := settings.Persona != s.settings.Persona
	s.settings = settings

	if err := s.cache.Set(cache.KeySettings, settings); err != nil {
		s.logger.Printf("settings persist failed: %v", err)
	}

	if personaChanged {
		if conv := s.activeLocked(); conv != nil {
			notice := model.NewMessage(model.RoleAssistant,
				"*Adjusting personality matrix to: "+strings.ToUpper(settings.Persona.String())+
					"...* Done. How can I help you in this mode?")
			conv.AddMessage(notice)
			s.persistMessagesLocked(conv)
			s.persistIndexLocked()
		}
	}

	history := s.activeHistoryLocked()
	s.mu.Unlock()

	return s.initSession(ctx, history)
}

// initSession re-establishes the backend session context.
func (s *Store) initSession(ctx context.Context, history []gateway.Message) error {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()

	return s.gw.InitSession(ctx, gateway.SessionSettings{
		Persona:       settings.Persona.String(),
		SearchEnabled: settings.SearchEnabled,
		DisplayName:   settings.DisplayName,
	}, history)
}

// =============================================================================
// CONVERSATION ACCESS
// =============================================================================

// ActiveID returns the active conversation's ID, or "" when none is active.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns the active conversation, or nil.
func (s *Store) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Store) activeLocked() *model.Conversation {
	if s.activeID == "" {
		return nil
	}
	return s.conversations[s.activeID]
}

// Get returns a conversation by ID, or nil. The pointer is live; callers
// running concurrently with a streaming turn must use Snapshot instead.
func (s *Store) Get(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id]
}

// TurnOpen reports whether the active conversation has a turn in flight.
func (s *Store) TurnOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.activeLocked()
	return conv != nil && conv.TurnOpen()
}

// ActiveMeta returns the active conversation's metadata. The second return
// is false when nothing is active.
func (s *Store) ActiveMeta() (model.ConversationMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.activeLocked()
	if conv == nil {
		return model.ConversationMeta{}, false
	}
	return conv.Meta(), true
}

// Snapshot returns a deep copy of a conversation, or nil when the ID is
// unknown. The copy is detached from the store's lock and does not change
// as a streaming turn progresses.
func (s *Store) Snapshot(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil
	}
	return conv.Clone()
}

// ActiveSnapshot returns a deep copy of the active conversation, or nil.
func (s *Store) ActiveSnapshot() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.activeLocked()
	if conv == nil {
		return nil
	}
	return conv.Clone()
}

// Snapshots returns deep copies of every conversation, most recently
// updated first.
func (s *Store) Snapshots() []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out
}

// ActiveMessages returns the messages to display: the active conversation's
// history, or the standalone greeting when nothing is active. Messages are
// copied under the lock so readers never observe a placeholder mid-write.
func (s *Store) ActiveMessages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv := s.activeLocked(); conv != nil {
		out := make([]*model.Message, len(conv.Messages))
		for i, msg := range conv.Messages {
			out[i] = msg.Clone()
		}
		return out
	}
	if s.greeting != nil {
		return []*model.Message{s.greeting.Clone()}
	}
	return nil
}

// Index returns conversation metadata ordered most recently updated first.
func (s *Store) Index() []model.ConversationMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked()
}

func (s *Store) indexLocked() []model.ConversationMeta {
	metas := make([]model.ConversationMeta, 0, len(s.conversations))
	for _, conv := range s.conversations {
		metas = append(metas, conv.Meta())
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].LastUpdated.After(metas[j].LastUpdated)
	})
	return metas
}

// =============================================================================
// SELECTION
// =============================================================================

// Select makes a conversation active, fetching its history from the backend
// when it is not held locally or is known only as a remote index entry, and
// re-seeds the backend session with that history.
func (s *Store) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	needFetch := !ok || (conv.IsEmpty() && !conv.IsLocal())
	s.mu.Unlock()

	if needFetch {
		history, err := s.gw.FetchConversation(ctx, id)
		if err != nil {
			if gateway.IsNotFound(err) && !ok {
				return ErrConversationNotFound
			}
			if !ok {
				return err
			}
			// A remote index entry we cannot hydrate right now is still
			// selectable; its history loads on a later selection.
			s.logger.Printf("history fetch failed for %s: %v", id, err)
		}
		if err == nil {
			conv = model.NewConversation(history.Meta.ID, history.Meta.Title, history.Meta.Color)
			for _, msg := range history.Messages {
				conv.AddMessage(model.NewMessage(model.Role(msg.Role), msg.Content))
			}

			s.mu.Lock()
			s.conversations[id] = conv
			s.persistMessagesLocked(conv)
			s.persistIndexLocked()
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.activeID = id
	s.greeting = nil
	history := s.activeHistoryLocked()
	s.mu.Unlock()

	if err := s.initSession(ctx, history); err != nil {
		// Selection succeeds locally; a failed re-seed is retried implicitly
		// on the next settings change or selection.
		s.logger.Printf("session re-seed failed for %s: %v", id, err)
	}
	return nil
}

// StartNew clears the active selection and shows a fresh greeting. The
// backend session is re-seeded with empty history.
func (s *Store) StartNew(ctx context.Context) {
	s.mu.Lock()
	s.activeID = ""
	s.greeting = model.NewWelcomeMessage(s.settings.DisplayName)
	s.mu.Unlock()

	if err := s.initSession(ctx, nil); err != nil {
		s.logger.Printf("session reset failed: %v", err)
	}
}

// EnsureActive returns the active conversation, creating one when none is
// active. The new conversation's title derives from the pending input. When
// the backend is unreachable the conversation is synthesized locally with a
// marked ID and remains usable offline.
func (s *Store) EnsureActive(ctx context.Context, input string) (*model.Conversation, error) {
	s.mu.Lock()
	if conv := s.activeLocked(); conv != nil {
		s.mu.Unlock()
		return conv, nil
	}
	greeting := s.greeting
	s.mu.Unlock()

	title := model.DeriveTitle(input)

	var conv *model.Conversation
	record, err := s.gw.CreateConversation(ctx, title, "")
	switch {
	case err == nil:
		conv = model.NewConversation(record.ID, record.Title, record.Color)
	case gateway.IsUnreachable(err):
		s.logger.Printf("create conversation failed, falling back to local: %v", err)
		conv = model.NewLocalConversation(title)
	default:
		return nil, err
	}

	// Keep the greeting visible at the top of the new conversation. It is
	// excluded from persistence and from backend history.
	if greeting != nil {
		conv.Messages = append(conv.Messages, greeting)
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.activeID = conv.ID
	s.greeting = nil
	s.persistIndexLocked()
	s.mu.Unlock()

	return conv, nil
}

// =============================================================================
// REMOTE RECONCILIATION
// =============================================================================

// SyncRemote merges the backend's conversation list into local state, so a
// fresh machine sees its server-side history. Conversations known remotely
// but absent locally appear as index entries; their messages hydrate on
// first selection. A sync never removes local state.
func (s *Store) SyncRemote(ctx context.Context) error {
	records, err := s.gw.ListConversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, ok := s.conversations[rec.ID]; ok {
			continue
		}
		s.conversations[rec.ID] = model.NewConversation(rec.ID, rec.Title, rec.Color)
		added = true
	}
	if added {
		s.persistIndexLocked()
	}
	return nil
}

// ReconcileLocal registers a conversation that was created offline with the
// backend and re-keys it under the server-assigned ID. The cached messages
// move to the new key and the backend session is re-seeded when the
// conversation is active. Reconciling a conversation that already has a
// server ID is a no-op.
func (s *Store) ReconcileLocal(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return "", ErrConversationNotFound
	}
	if !conv.IsLocal() {
		s.mu.Unlock()
		return id, nil
	}
	title, color := conv.DisplayTitle(), conv.Color
	s.mu.Unlock()

	record, err := s.gw.CreateConversation(ctx, title, color)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	conv, ok = s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return "", ErrConversationNotFound
	}
	delete(s.conversations, id)
	s.cache.Remove(cache.ConversationKey(id))
	conv.AdoptID(record.ID)
	s.conversations[conv.ID] = conv
	if s.activeID == id {
		s.activeID = conv.ID
	}
	s.persistMessagesLocked(conv)
	s.persistIndexLocked()
	newID := conv.ID
	active := s.activeID == newID
	var history []gateway.Message
	if active {
		history = s.activeHistoryLocked()
	}
	s.mu.Unlock()

	if active {
		if err := s.initSession(ctx, history); err != nil {
			s.logger.Printf("session re-seed failed for %s: %v", newID, err)
		}
	}
	s.logger.Printf("reconciled local conversation %s as %s", id, newID)
	return newID, nil
}

// =============================================================================
// TURN OPERATIONS
// =============================================================================

// ApplyOptimisticUserMessage appends the user's message to the conversation
// immediately, before any network dispatch.
func (s *Store) ApplyOptimisticUserMessage(convID, text string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv.BeginTurn(text)
}

// BeginAssistantPlaceholder opens the turn's mutable assistant message.
func (s *Store) BeginAssistantPlaceholder(convID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv.OpenPlaceholder()
}

// AppendStreamChunk appends reply text to the conversation's open
// placeholder. The chunk is applied to the conversation it belongs to even
// if the user has since navigated away, so no reply is ever dropped.
func (s *Store) AppendStreamChunk(convID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return ErrConversationNotFound
	}
	return conv.AppendStreamChunk(text)
}

// AppendStreamSources attaches citation sources to the open placeholder.
func (s *Store) AppendStreamSources(convID string, sources []model.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return ErrConversationNotFound
	}
	return conv.AppendStreamSources(sources)
}

// FinalizeTurn freezes the placeholder and persists the conversation. The
// message-array write and the index write are independent; either may fail
// and be retried without affecting the other.
func (s *Store) FinalizeTurn(convID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return nil, ErrConversationNotFound
	}

	msg, err := conv.FinalizeTurn()
	if err != nil {
		return nil, err
	}

	s.persistMessagesLocked(conv)
	s.persistIndexLocked()
	return msg, nil
}

// FailTurn terminates the turn with a user-safe notice and persists the
// result. The conversation remains selectable and usable for a retry.
func (s *Store) FailTurn(convID, notice string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return nil, ErrConversationNotFound
	}

	msg, err := conv.FailTurn(notice)
	if err != nil {
		return nil, err
	}

	s.persistMessagesLocked(conv)
	s.persistIndexLocked()
	return msg, nil
}

// =============================================================================
// METADATA OPERATIONS
// =============================================================================

// Rename retitles a conversation locally and notifies the backend
// best-effort.
func (s *Store) Rename(ctx context.Context, id, title string) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	conv.SetTitle(title)
	s.persistIndexLocked()
	local := conv.IsLocal()
	s.mu.Unlock()

	if !local {
		go func() {
			if err := s.gw.Rename(ctx, id, title); err != nil {
				s.logger.Printf("remote rename failed for %s: %v", id, err)
			}
		}()
	}
	return nil
}

// SetColor recolors a conversation locally and notifies the backend
// best-effort.
func (s *Store) SetColor(ctx context.Context, id, color string) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	conv.SetColor(color)
	s.persistIndexLocked()
	local := conv.IsLocal()
	s.mu.Unlock()

	if !local {
		go func() {
			if err := s.gw.SetColor(ctx, id, color); err != nil {
				s.logger.Printf("remote color change failed for %s: %v", id, err)
			}
		}()
	}
	return nil
}

// Delete removes a conversation everywhere: memory, cache, and backend.
// If it was active, the most recently updated remaining conversation is
// selected, or a fresh greeting view when none remain.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return ErrConversationNotFound
	}

	delete(s.conversations, id)
	s.cache.Remove(cache.ConversationKey(id))
	s.persistIndexLocked()

	wasActive := s.activeID == id
	local := conv.IsLocal()

	var nextID string
	if wasActive {
		s.activeID = ""
		if metas := s.indexLocked(); len(metas) > 0 {
			nextID = metas[0].ID
		}
	}
	s.mu.Unlock()

	if !local {
		go func() {
			if err := s.gw.Delete(ctx, id); err != nil {
				s.logger.Printf("remote delete failed for %s: %v", id, err)
			}
		}()
	}

	if wasActive {
		if nextID != "" {
			return s.Select(ctx, nextID)
		}
		s.StartNew(ctx)
	}
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persistMessagesLocked writes one conversation's message array to the
// cache, excluding the display-only greeting.
func (s *Store) persistMessagesLocked(conv *model.Conversation) {
	messages := make([]*model.Message, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		if msg.IsWelcome() {
			continue
		}
		messages = append(messages, msg)
	}
	if err := s.cache.Set(cache.ConversationKey(conv.ID), messages); err != nil {
		s.logger.Printf("message persist failed for %s: %v", conv.ID, err)
	}
}

// persistIndexLocked writes the conversation index to the cache.
func (s *Store) persistIndexLocked() {
	if err := s.cache.Set(cache.KeyIndex, s.indexLocked()); err != nil {
		s.logger.Printf("index persist failed: %v", err)
	}
}

// activeHistoryLocked converts the active conversation's sendable history to
// wire messages.
func (s *Store) activeHistoryLocked() []gateway.Message {
	conv := s.activeLocked()
	if conv == nil {
		return nil
	}
	history := conv.History()
	wire := make([]gateway.Message, 0, len(history))
	for _, msg := range history {
		wire = append(wire, gateway.Message{
			Role:    msg.Role.String(),
			Content: msg.DisplayContent(),
		})
	}
	return wire
}
