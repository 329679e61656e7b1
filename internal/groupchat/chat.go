// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package groupchat runs a round-robin conversation between a coordinator
// and the data agents. The coordinator hands the question to one agent and
// closes the chat once that agent has answered.
package groupchat

import (
	"context"
	"strings"

	"askbank/cli/internal/logging"
	"askbank/cli/internal/session"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRound bounds the number of turns in one chat.
	DefaultMaxRound = 20
	// Terminate in a message ends the chat.
	Terminate = "TERMINATE"

	userName = "user"
)

// Message is one turn of the transcript.
type Message struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	// To is set on coordinator hand-offs.
	To string `json:"to,omitempty"`
	// Success is set on agent answers.
	Success bool `json:"success,omitempty"`
}

// Participant speaks in turn. An empty reply passes.
type Participant interface {
	Name() string
	Reply(ctx context.Context, in Turn) (Message, error)
}

// Turn is what a participant sees when it is its turn to speak.
type Turn struct {
	Question   string
	SessionID  string
	History    []session.Turn
	Transcript []Message
}

// Last returns the most recent message, or a zero Message.
func (t Turn) Last() Message {
	if len(t.Transcript) == 0 {
		return Message{}
	}
	return t.Transcript[len(t.Transcript)-1]
}

// Request is one group chat task.
type Request struct {
	Question  string
	SessionID string
	History   []session.Turn
}

// Result is the outcome of a chat.
type Result struct {
	Success    bool      `json:"success"`
	Route      string    `json:"route,omitempty"`
	Answer     string    `json:"answer,omitempty"`
	Rounds     int       `json:"rounds"`
	Transcript []Message `json:"transcript"`
	Error      string    `json:"error,omitempty"`
}

// Chat is a fixed round-robin group.
type Chat struct {
	participants []Participant
	maxRound     int
	logger       *zap.Logger
}

// New returns a chat over participants in speaking order. maxRound <= 0
// means DefaultMaxRound.
func New(participants []Participant, maxRound int, logger *zap.Logger) *Chat {
	if maxRound <= 0 {
		maxRound = DefaultMaxRound
	}
	return &Chat{participants: participants, maxRound: maxRound, logger: logging.OrNop(logger)}
}

// Run plays the chat until a participant terminates, every participant
// passes in a full cycle, or the round budget is spent.
func (c *Chat) Run(ctx context.Context, req Request) *Result {
	q := strings.TrimSpace(req.Question)
	res := &Result{Transcript: []Message{{Name: userName, Content: q}}}
	if q == "" {
		res.Error = "查询不能为空"
		return res
	}
	if len(c.participants) == 0 {
		res.Error = "没有可用的智能体"
		return res
	}

	passes := 0
	for i := 0; res.Rounds < c.maxRound; i++ {
		if err := ctx.Err(); err != nil {
			res.Error = "处理查询失败: " + err.Error()
			return res
		}
		if passes == len(c.participants) {
			c.logger.Debug("speaker queue empty", zap.Int("rounds", res.Rounds))
			break
		}

		p := c.participants[i%len(c.participants)]
		msg, err := p.Reply(ctx, Turn{
			Question:   q,
			SessionID:  req.SessionID,
			History:    req.History,
			Transcript: res.Transcript,
		})
		if err != nil {
			res.Error = "处理查询失败: " + err.Error()
			return res
		}
		if msg.Content == "" {
			passes++
			continue
		}
		passes = 0
		res.Rounds++
		msg.Name = p.Name()
		res.Transcript = append(res.Transcript, msg)
		c.logger.Debug("turn", zap.String("speaker", msg.Name), zap.String("to", msg.To), zap.Int("round", res.Rounds))

		if msg.To != "" {
			res.Route = msg.To
		} else if msg.Name == res.Route {
			res.Success = msg.Success
			res.Answer = msg.Content
			res.Error = ""
			if !msg.Success {
				res.Error = msg.Content
			}
		}
		if strings.Contains(msg.Content, Terminate) {
			break
		}
	}

	if res.Answer == "" && res.Error == "" {
		res.Error = "未获取到响应"
	}
	return res
}
