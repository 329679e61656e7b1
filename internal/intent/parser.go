// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package intent

import (
	"context"

	"askbank/cli/internal/llm"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/prompts"

	"go.uber.org/zap"
)

// Parser classifies questions, asking the chat model first when one is
// configured and falling back to rules on any failure.
type Parser struct {
	client *llm.Client
	logger *zap.Logger
}

// NewParser returns a Parser. client may be nil for rules only.
func NewParser(client *llm.Client, logger *zap.Logger) *Parser {
	return &Parser{client: client, logger: logging.OrNop(logger)}
}

type llmIntent struct {
	Intent       string        `json:"intent"`
	QueryType    string        `json:"query_type"`
	Entities     []string      `json:"entities"`
	Attributes   []string      `json:"attributes"`
	Conditions   []Condition   `json:"conditions"`
	Aggregations []Aggregation `json:"aggregations"`
	OrderBy      []OrderBy     `json:"order_by"`
	Limit        *int          `json:"limit"`
	Confidence   *float64      `json:"confidence"`
}

// Parse classifies text.
func (p *Parser) Parse(ctx context.Context, text string) Parsed {
	if p.client == nil || !p.client.Available() {
		return ParseRules(text)
	}

	reply, err := p.client.Complete(ctx, prompts.CategoryIntent, prompts.IntentSystemPrompt, map[string]any{"query": text})
	if err != nil {
		p.logger.Warn("intent model call failed, using rules", zap.Error(err))
		return ParseRules(text)
	}
	var raw llmIntent
	if err := llm.DecodeJSON(reply, &raw); err != nil {
		p.logger.Warn("intent reply not JSON, using rules", zap.Error(err))
		return ParseRules(text)
	}

	out := Parsed{
		Intent:       parseIntent(raw.Intent),
		QueryType:    parseQueryType(raw.QueryType),
		Entities:     orEmpty(raw.Entities),
		Attributes:   orEmpty(raw.Attributes),
		Conditions:   raw.Conditions,
		Aggregations: raw.Aggregations,
		OrderBy:      raw.OrderBy,
		Confidence:   0.8,
		RawQuery:     text,
		Source:       "llm",
	}
	if raw.Limit != nil {
		out.Limit = *raw.Limit
	}
	if raw.Confidence != nil {
		out.Confidence = *raw.Confidence
	}
	if out.Conditions == nil {
		out.Conditions = []Condition{}
	}
	if out.Aggregations == nil {
		out.Aggregations = []Aggregation{}
	}
	if out.OrderBy == nil {
		out.OrderBy = []OrderBy{}
	}
	return out
}

// Route pre-routes metadata and customer questions by keyword and parses
// everything else.
func (p *Parser) Route(ctx context.Context, text string) Parsed {
	if r, ok := Route(text); ok {
		return r
	}
	return p.Parse(ctx, text)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
