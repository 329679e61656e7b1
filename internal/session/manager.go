// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"errors"
	"sync"
	"time"

	"askbank/cli/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns every conversation context. All methods lock; callers get copies.
type Manager struct {
	mu      sync.Mutex
	store   Store
	current string
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager wraps store. A nil store means an in-memory one.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{store: store, logger: logging.OrNop(logger), now: time.Now}
}

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// Create ensures session id exists and makes it current. An empty id gets a new UUID.
func (m *Manager) Create(id, userID string) (string, error) {
	if id == "" {
		id = NewID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.ensure(id)
	if err != nil {
		return "", err
	}
	if userID != "" && c.UserID != userID {
		c.UserID = userID
		if err := m.store.Save(c); err != nil {
			return "", err
		}
	}
	m.current = id
	return id, nil
}

// Get returns a copy of the context, creating it on first reference.
func (m *Manager) Get(id string) (*ConversationContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.ensure(id)
	if err != nil {
		return nil, err
	}
	return c.clone(), nil
}

// Exists reports whether id has a context.
func (m *Manager) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.store.Load(id)
	return err == nil
}

// Append adds an entry at the end of the history.
func (m *Manager) Append(id, role, content string, metadata map[string]any) error {
	return m.update(id, func(c *ConversationContext) {
		c.History = append(c.History, Entry{
			Role:      role,
			Content:   content,
			Metadata:  metadata,
			Timestamp: m.now(),
		})
	})
}

// History returns a copy of the session history.
func (m *Manager) History(id string) ([]Entry, error) {
	c, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return c.History, nil
}

// SetIntent records the intent of the latest request.
func (m *Manager) SetIntent(id, intent string) error {
	return m.update(id, func(c *ConversationContext) { c.CurrentIntent = intent })
}

// UpdateCache records the last successful data query.
func (m *Manager) UpdateCache(id string, cache Cache) error {
	return m.update(id, func(c *ConversationContext) { c.Cache = cache })
}

// Clear empties the history of an existing session.
func (m *Manager) Clear(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.store.Load(id)
	if err != nil {
		return err
	}
	c.History = nil
	c.UpdatedAt = m.now()
	return m.store.Save(c)
}

// Delete drops the session entirely.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == id {
		m.current = ""
	}
	return m.store.Delete(id)
}

// Count returns the number of known sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, err := m.store.IDs()
	if err != nil {
		m.logger.Warn("listing sessions failed", zap.Error(err))
		return 0
	}
	return len(ids)
}

// Current returns the id of the most recently created session.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes the store.
func (m *Manager) Close() error { return m.store.Close() }

func (m *Manager) update(id string, fn func(*ConversationContext)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.ensure(id)
	if err != nil {
		return err
	}
	fn(c)
	c.UpdatedAt = m.now()
	return m.store.Save(c)
}

// ensure must be called with mu held.
func (m *Manager) ensure(id string) (*ConversationContext, error) {
	c, err := m.store.Load(id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := m.now()
	c = &ConversationContext{SessionID: id, CreatedAt: now, UpdatedAt: now}
	if err := m.store.Save(c); err != nil {
		return nil, err
	}
	m.logger.Info("session created", zap.String("session_id", id))
	return c, nil
}
