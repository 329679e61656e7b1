// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package text2sql

import "strings"

// Metadata describes where an answer came from.
type Metadata struct {
	Model string `json:"model"`
	DB    string `json:"db"`
}

// Response is the public result of Run.
type Response struct {
	Success         bool             `json:"success"`
	Question        string           `json:"question,omitempty"`
	InitialSQL      string           `json:"initial_sql,omitempty"`
	SQLQuery        string           `json:"sql_query,omitempty"`
	ExecutionResult *ExecutionResult `json:"execution_result,omitempty"`
	Explanation     string           `json:"explanation,omitempty"`
	RowCount        int              `json:"row_count"`
	RetryCount      int              `json:"retry_count"`
	EmptyRetryCount int              `json:"empty_retry_count"`
	SessionID       string           `json:"session_id"`
	Metadata        *Metadata        `json:"metadata,omitempty"`
	Error           string           `json:"error,omitempty"`
	ErrorKind       string           `json:"error_kind,omitempty"`
}

func (p *Pipeline) response(s *State) *Response {
	r := &Response{
		Success:         s.Success,
		Question:        s.OriginalQuery,
		InitialSQL:      s.InitialSQL,
		SQLQuery:        s.RefinedSQL,
		RetryCount:      s.RetryCount,
		EmptyRetryCount: s.EmptyRetryCount,
		SessionID:       s.SessionID,
	}
	if !s.Success {
		r.Error = s.Error
		if r.Error == "" {
			r.Error = "未知错误"
		}
		return r
	}
	r.ExecutionResult = s.Execution
	r.Explanation = s.Explanation
	if s.Execution != nil {
		r.RowCount = s.Execution.RowCount
	}
	r.Metadata = &Metadata{Model: p.opts.ModelName, DB: p.opts.DBLabel}
	return r
}

// DBLabel returns the part of a DSN after the last '@', or "unknown".
func DBLabel(dsn string) string {
	if i := strings.LastIndex(dsn, "@"); i >= 0 {
		return dsn[i+1:]
	}
	return "unknown"
}
