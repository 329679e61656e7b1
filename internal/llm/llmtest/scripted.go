// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package llmtest provides a scripted chat model for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrUnscripted is returned when no rule matches and the queue is empty.
var ErrUnscripted = errors.New("llmtest: no scripted reply")

// Reply is one scripted answer: text, or an error when Err is set.
type Reply struct {
	Text string
	Err  error
}

type rule struct {
	needle  string
	replies []Reply
	// last reply repeats once the list is exhausted
	next int
}

// ScriptedModel answers by matching prompt substrings, in registration
// order, and otherwise pops replies from a queue. Every call is recorded.
type ScriptedModel struct {
	mu    sync.Mutex
	rules []*rule
	queue []Reply
	calls [][]*schema.Message
}

var _ model.BaseChatModel = (*ScriptedModel)(nil)

// New returns an empty ScriptedModel.
func New() *ScriptedModel { return &ScriptedModel{} }

// On answers prompts containing needle with the given texts in turn; the
// last one repeats.
func (m *ScriptedModel) On(needle string, texts ...string) *ScriptedModel {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return m.OnReplies(needle, replies...)
}

// OnReplies is On with explicit replies, allowing errors.
func (m *ScriptedModel) OnReplies(needle string, replies ...Reply) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, &rule{needle: needle, replies: replies})
	return m
}

// Then queues a reply used when no rule matches.
func (m *ScriptedModel) Then(texts ...string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		m.queue = append(m.queue, Reply{Text: t})
	}
	return m
}

// ThenError queues an error reply.
func (m *ScriptedModel) ThenError(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, Reply{Err: err})
	return m
}

// Generate implements model.BaseChatModel.
func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, input)

	prompt := joinContent(input)
	for _, r := range m.rules {
		if !strings.Contains(prompt, r.needle) || len(r.replies) == 0 {
			continue
		}
		reply := r.replies[r.next]
		if r.next < len(r.replies)-1 {
			r.next++
		}
		return toMessage(reply)
	}

	if len(m.queue) == 0 {
		return nil, ErrUnscripted
	}
	reply := m.queue[0]
	m.queue = m.queue[1:]
	return toMessage(reply)
}

// Stream implements model.BaseChatModel with a single-chunk stream.
func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Calls returns the recorded inputs.
func (m *ScriptedModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many calls were made.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// CallsContaining counts calls whose prompt contains needle.
func (m *ScriptedModel) CallsContaining(needle string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.Contains(joinContent(c), needle) {
			n++
		}
	}
	return n
}

func joinContent(msgs []*schema.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg != nil {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func toMessage(r Reply) (*schema.Message, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return schema.AssistantMessage(r.Text, nil), nil
}
