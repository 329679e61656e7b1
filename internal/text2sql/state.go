// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package text2sql

import (
	"fmt"
	"strings"

	"askbank/cli/internal/intent"
	"askbank/cli/internal/progress"
	"askbank/cli/internal/session"
	"askbank/cli/internal/sqlexec"
	"askbank/cli/internal/sqlguard"
)

// Entities carries structured hints from intent parsing.
type Entities struct {
	OrderBy []intent.OrderBy `json:"order_by,omitempty"`
}

func (e *Entities) orderClause() string {
	if e == nil || len(e.OrderBy) == 0 {
		return ""
	}
	parts := make([]string, 0, len(e.OrderBy))
	for _, o := range e.OrderBy {
		dir := "升序"
		if strings.EqualFold(o.Direction, "desc") {
			dir = "降序"
		}
		parts = append(parts, o.Field+dir)
	}
	return strings.Join(parts, "，")
}

// ExecutionResult is the outcome of the last executed statement.
type ExecutionResult struct {
	Success      bool             `json:"success"`
	Columns      []string         `json:"columns,omitempty"`
	Data         []map[string]any `json:"data"`
	RowCount     int              `json:"row_count"`
	RawResult    string           `json:"raw_result"`
	Truncated    bool             `json:"truncated,omitempty"`
	CorrectedSQL string           `json:"corrected_sql,omitempty"`
}

func newExecutionResult(res *sqlexec.Result) *ExecutionResult {
	return &ExecutionResult{
		Success:   true,
		Columns:   res.Columns,
		Data:      res.Records(),
		RowCount:  res.RowCount,
		RawResult: res.Text(),
		Truncated: res.Truncated,
	}
}

// forExplanation renders the result for the explanation prompt.
func (r *ExecutionResult) forExplanation() string {
	if r.RowCount == 0 {
		return "查询结果为空。原始结果: " + r.RawResult
	}
	var b strings.Builder
	fmt.Fprintf(&b, "【重要提示】请显示所有符合条件的记录，不要遗漏任何数据！\n查询返回%d行数据，请完整列出每一行的信息：\n", r.RowCount)
	for _, rec := range r.Data {
		b.WriteString(formatRecord(r.Columns, rec))
		b.WriteString("\n")
	}
	b.WriteString("\n原始结果: ")
	b.WriteString(r.RawResult)
	return b.String()
}

func formatRecord(cols []string, rec map[string]any) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s: %v", c, rec[c]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// State flows through every node of the graph.
type State struct {
	OriginalQuery string         `json:"original_query"`
	EnhancedQuery string         `json:"enhanced_query"`
	Entities      *Entities      `json:"entities,omitempty"`
	History       []session.Turn `json:"history,omitempty"`
	SessionID     string         `json:"session_id"`
	// TargetSQL, when set, is the statement whose structure generation mirrors.
	TargetSQL string `json:"target_sql,omitempty"`

	InitialSQL        string            `json:"initial_sql"`
	GeneratedSQL      string            `json:"generated_sql"`
	RefinedSQL        string            `json:"refined_sql"`
	Validation        *sqlguard.Verdict `json:"validation_result,omitempty"`
	RefinedValidation *sqlguard.Verdict `json:"refined_validation_result,omitempty"`
	Execution         *ExecutionResult  `json:"execution_result,omitempty"`
	Explanation       string            `json:"explanation"`
	Error             string            `json:"error,omitempty"`
	Success           bool              `json:"success"`
	RetryCount        int               `json:"retry_count"`
	EmptyRetryCount   int               `json:"empty_retry_count"`

	tableInfo string
	lastError string
	next      string
	failed    bool
	obs       progress.Observer
}

func (s *State) fail(format string, args ...any) {
	s.failed = true
	s.Success = false
	s.Error = fmt.Sprintf(format, args...)
	s.next = nodeFail
}
