// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session keeps per-conversation history and caches. The Manager is
// the only state shared between requests and is safe for concurrent use.
package session

import "time"

// Roles used in history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is one turn in a conversation.
type Entry struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Turn is an entry reduced to role and content.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Cache holds the last successful data query of a session.
type Cache struct {
	LastQuery    string `json:"last_query,omitempty"`
	LastEntities any    `json:"last_entities,omitempty"`
	LastResult   any    `json:"last_result,omitempty"`
}

// ConversationContext is the persisted state of one session.
type ConversationContext struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id,omitempty"`
	History       []Entry   `json:"history"`
	CurrentIntent string    `json:"current_intent,omitempty"`
	Cache         Cache     `json:"cache"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *ConversationContext) clone() *ConversationContext {
	cp := *c
	cp.History = make([]Entry, len(c.History))
	copy(cp.History, c.History)
	return &cp
}

// Turns returns the history as role/content pairs.
func (c *ConversationContext) Turns() []Turn {
	out := make([]Turn, len(c.History))
	for i, e := range c.History {
		out[i] = Turn{Role: e.Role, Content: e.Content}
	}
	return out
}

// LastUserTurns returns the content of the last n user turns, oldest first.
func LastUserTurns(turns []Turn, n int) []string {
	var users []string
	for _, t := range turns {
		if t.Role == RoleUser {
			users = append(users, t.Content)
		}
	}
	if len(users) > n {
		users = users[len(users)-n:]
	}
	return users
}
