// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package agent

import (
	"askbank/cli/internal/metadata"
	"askbank/cli/internal/segmentation"
	"askbank/cli/internal/text2sql"
)

// Response types.
const (
	TypeTableAnalysis   = "table_analysis"
	TypeRecommendations = "recommendations"
)

// Response is the answer to one user turn. Exactly one of the payload
// fields is set, depending on the handler.
type Response struct {
	Success     bool     `json:"success"`
	Intent      string   `json:"intent"`
	Agent       string   `json:"agent,omitempty"`
	SessionID   string   `json:"session_id"`
	Type        string   `json:"type,omitempty"`
	Message     string   `json:"message,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Error       string   `json:"error,omitempty"`

	Query           *text2sql.Response             `json:"query,omitempty"`
	Segmentation    *segmentation.Response         `json:"segmentation,omitempty"`
	Tables          []string                       `json:"tables,omitempty"`
	Results         []*metadata.TableAnalysis      `json:"results,omitempty"`
	Table           *metadata.TableAnalysis        `json:"table,omitempty"`
	FieldSemantics  []*metadata.FieldSemantics     `json:"field_semantics,omitempty"`
	Recommendations *metadata.TableRecommendations `json:"recommendations,omitempty"`

	// reply is recorded as the assistant turn.
	reply     string
	replyMeta map[string]any
}

func errorResponse(in, agent, msg string) *Response {
	return &Response{Success: false, Intent: in, Agent: agent, Error: msg}
}
