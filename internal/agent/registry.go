// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package agent

import (
	"context"
	"sort"
	"sync"

	"askbank/cli/internal/intent"
	"askbank/cli/internal/session"
)

// Request is what a handler sees of one user turn.
type Request struct {
	Text      string
	SessionID string
	Parsed    intent.Parsed
	// History holds the turns before this one.
	History []session.Turn
}

// Handler answers requests routed to one intent.
type Handler interface {
	// Name identifies the agent as category/name in status output.
	Name() string
	Handle(ctx context.Context, req Request) *Response
}

// Registry maps intents to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[intent.Intent]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[intent.Intent]Handler{}}
}

// Register routes every intent in intents to h.
func (r *Registry) Register(h Handler, intents ...intent.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range intents {
		r.handlers[in] = h
	}
}

// Lookup returns the handler for in.
func (r *Registry) Lookup(in intent.Intent) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[in]
	return h, ok
}

// Agents returns the distinct handler names, sorted.
func (r *Registry) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, h := range r.handlers {
		if n := h.Name(); !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
