// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package segmentation

import (
	"encoding/json"
	"fmt"

	"askbank/cli/internal/progress"
	"askbank/cli/internal/session"
	"askbank/cli/internal/sqlexec"
	"askbank/cli/internal/text2sql"
)

// Analysis is the model's breakdown of a segmentation question.
type Analysis struct {
	AnalysisType         string         `json:"analysis_type,omitempty"`
	RequiredFields       []string       `json:"required_fields,omitempty"`
	TargetCriteria       map[string]any `json:"target_criteria,omitempty"`
	ControlCriteria      map[string]any `json:"control_criteria,omitempty"`
	TargetQueryQuestion  string         `json:"target_query_question"`
	ControlQueryQuestion string         `json:"control_query_question"`
}

// Group sources.
const (
	SourcePipeline = "pipeline"
	SourceChecked  = "checked"
	SourceFallback = "fallback"
)

// Group is one side of the comparison.
type Group struct {
	Question  string           `json:"question"`
	SQL       string           `json:"sql"`
	RowCount  int              `json:"row_count"`
	Data      []map[string]any `json:"data"`
	RawResult string           `json:"raw_result,omitempty"`
	// Source tells whether the SQL came straight from the text2sql pipeline,
	// was rewritten by the complement check, or was produced by a fallback.
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}

func groupFromResponse(question string, resp *text2sql.Response) Group {
	g := Group{Question: question, SQL: resp.SQLQuery, Source: SourcePipeline, Data: []map[string]any{}}
	if r := resp.ExecutionResult; r != nil {
		g.Data = r.Data
		g.RowCount = r.RowCount
		g.RawResult = r.RawResult
	}
	return g
}

func (g *Group) setResult(res *sqlexec.Result) {
	g.Data = res.Records()
	g.RowCount = res.RowCount
	g.RawResult = res.Text()
}

// resultText renders the rows for the explanation prompt.
func (g Group) resultText() string {
	if len(g.Data) > 0 {
		if b, err := json.Marshal(g.Data); err == nil {
			return string(b)
		}
	}
	if g.RawResult != "" {
		return g.RawResult
	}
	return "[]"
}

// State flows through the segmentation graph.
type State struct {
	OriginalQuery   string         `json:"original_query"`
	EnhancedQuery   string         `json:"enhanced_query"`
	History         []session.Turn `json:"history,omitempty"`
	SessionID       string         `json:"session_id"`
	Analysis        *Analysis      `json:"analysis,omitempty"`
	TargetQuestion  string         `json:"target_query_question"`
	ControlQuestion string         `json:"control_query_question"`
	Target          *Group         `json:"target,omitempty"`
	Control         *Group         `json:"control,omitempty"`
	Explanation     string         `json:"explanation"`
	Error           string         `json:"error,omitempty"`
	Success         bool           `json:"success"`

	next   string
	failed bool
	obs    progress.Observer
}

func (s *State) fail(format string, args ...any) {
	s.failed = true
	s.Success = false
	s.Error = fmt.Sprintf(format, args...)
	s.next = nodeFail
}
