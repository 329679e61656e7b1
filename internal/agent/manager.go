// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package agent routes each user turn to the handler for its intent and
// records the exchange in the session history.
package agent

import (
	"context"
	"sort"
	"strings"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/intent"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/metadata"
	"askbank/cli/internal/session"

	"go.uber.org/zap"
)

// DefaultSessionID is used when a caller does not name a session.
const DefaultSessionID = "default"

// Pinger checks database connectivity. *sqlexec.Inspector satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the manager. Nil runners leave their handlers answering
// with an "unavailable" error.
type Deps struct {
	Sessions     *session.Manager
	Parser       *intent.Parser
	Text2SQL     QueryRunner
	Segmentation SegmentRunner
	Assets       *metadata.AssetUnderstanding
	Recommender  *metadata.Recommender
	Tables       TableLister
	DB           Pinger
	// DBError is why DB is nil, when connecting failed.
	DBError   error
	ModelName string
	// ModelAvailable reports whether a chat model is configured.
	ModelAvailable bool
	Logger         *zap.Logger
}

// Manager is the entry point for free-text questions.
type Manager struct {
	deps     Deps
	registry *Registry
	fallback Handler
	logger   *zap.Logger
}

// NewManager registers every handler the deps allow.
func NewManager(deps Deps) *Manager {
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(nil, deps.Logger)
	}
	if deps.Parser == nil {
		deps.Parser = intent.NewParser(nil, deps.Logger)
	}
	logger := logging.OrNop(deps.Logger)

	r := NewRegistry()
	r.Register(&text2sqlHandler{runner: deps.Text2SQL, sessions: deps.Sessions, logger: logger},
		intent.DataRetrieval, intent.DataRanking, intent.DataCount,
		intent.DataAnalysis, intent.DataSummary, intent.DataComparison)
	r.Register(&segmentationHandler{runner: deps.Segmentation},
		intent.CustomerSegmentation, intent.CustomerProfiling,
		intent.CustomerRiskAnalysis, intent.CustomerInsight)
	r.Register(conversationHandler{}, intent.DataValidation)
	if deps.Assets != nil && deps.Recommender != nil {
		r.Register(&metadataHandler{assets: deps.Assets, recommender: deps.Recommender, logger: logger}, intent.MetadataQuery)
	}
	if deps.Assets != nil {
		r.Register(&tableInfoHandler{assets: deps.Assets}, intent.TableInfo)
	}
	if deps.Tables != nil {
		r.Register(&schemaHandler{tables: deps.Tables, recommender: deps.Recommender, logger: logger}, intent.SchemaQuery)
	}

	return &Manager{deps: deps, registry: r, fallback: generalHandler{}, logger: logger}
}

// Sessions returns the session manager.
func (m *Manager) Sessions() *session.Manager { return m.deps.Sessions }

// Agents lists the registered handler names and the fallback.
func (m *Manager) Agents() []string {
	out := m.registry.Agents()
	out = append(out, m.fallback.Name())
	sort.Strings(out)
	return out
}

// Process answers text within session sessionID.
func (m *Manager) Process(ctx context.Context, sessionID, text string) (*Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.New(apperrors.ConfigInvalid, "查询不能为空")
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	sc, err := m.deps.Sessions.Get(sessionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "load session", err)
	}
	history := sc.Turns()
	if err := m.deps.Sessions.Append(sessionID, session.RoleUser, text, nil); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "record user turn", err)
	}

	parsed := m.deps.Parser.Route(ctx, text)
	if err := m.deps.Sessions.SetIntent(sessionID, string(parsed.Intent)); err != nil {
		m.logger.Warn("set intent failed", zap.String("session", sessionID), zap.Error(err))
	}

	h, ok := m.registry.Lookup(parsed.Intent)
	if !ok {
		h = m.fallback
	}
	m.logger.Debug("dispatch",
		zap.String("session", sessionID),
		zap.String("intent", string(parsed.Intent)),
		zap.String("source", parsed.Source),
		zap.String("agent", h.Name()))

	resp := h.Handle(ctx, Request{Text: text, SessionID: sessionID, Parsed: parsed, History: history})
	resp.SessionID = sessionID

	if resp.reply != "" {
		if err := m.deps.Sessions.Append(sessionID, session.RoleAssistant, resp.reply, resp.replyMeta); err != nil {
			m.logger.Warn("record assistant turn failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
	return resp, nil
}

// History returns the entries of sessionID.
func (m *Manager) History(sessionID string) ([]session.Entry, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return m.deps.Sessions.History(sessionID)
}

// Clear drops the history of sessionID.
func (m *Manager) Clear(sessionID string) error {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return m.deps.Sessions.Clear(sessionID)
}
