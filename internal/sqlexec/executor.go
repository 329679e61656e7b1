// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlexec runs read-only statements against MySQL (or PostgreSQL)
// through database/sql and reads table metadata for prompt construction.
package sqlexec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/sqlguard"

	"go.uber.org/zap"
)

// Defaults for ExecOptions.
const (
	DefaultMaxRows = 1000
	DefaultTimeout = 30 * time.Second
)

// Result is a normalized query result.
type Result struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated,omitempty"`
}

// MarshalJSON converts driver byte slices and timestamps to strings.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	a := alias(r)
	if len(r.Rows) > 0 {
		a.Rows = make([][]any, len(r.Rows))
		for i, row := range r.Rows {
			a.Rows[i] = make([]any, len(row))
			for j, v := range row {
				a.Rows[i][j] = normalizeValue(v)
			}
		}
	}
	return json.Marshal(a)
}

// Records returns rows as column -> value maps.
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col] = normalizeValue(row[i])
			}
		}
		out = append(out, rec)
	}
	return out
}

// Text renders the rows as a bracketed list of tuples, e.g. [(1, 'a'), (2, 'b')].
func (r *Result) Text() string {
	var b strings.Builder
	b.WriteString("[")
	for i, row := range r.Rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(literal(normalizeValue(v)))
		}
		b.WriteString(")")
	}
	b.WriteString("]")
	return b.String()
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + x + "'"
	default:
		return fmt.Sprint(x)
	}
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return v
	}
}

// ExecOptions bounds query execution.
type ExecOptions struct {
	MaxRows int
	Timeout time.Duration
	Logger  *zap.Logger
}

// Executor runs read-only statements.
type Executor struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates an Executor over db.
func NewExecutor(db *sql.DB, opts ExecOptions) *Executor {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Executor{
		db:      db,
		maxRows: opts.MaxRows,
		timeout: opts.Timeout,
		logger:  logging.OrNop(opts.Logger),
	}
}

// Query runs stmt after the read-only check. At most MaxRows rows are read;
// Truncated is set when more were available.
func (e *Executor) Query(ctx context.Context, stmt string) (*Result, error) {
	if v := sqlguard.Check(stmt); !v.Valid {
		return nil, apperrors.New(apperrors.UnsafeSQL, v.Error)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, stmt)
	if err != nil {
		e.logger.Info("query failed", logging.MaskedString("sql", stmt), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ExecutionFailed, "execute query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ExecutionFailed, "read columns", err)
	}

	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(res.Rows) >= e.maxRows {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.Wrap(apperrors.ExecutionFailed, "scan row", err)
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ExecutionFailed, "execute query", err)
	}
	res.RowCount = len(res.Rows)

	e.logger.Debug("query executed",
		zap.Int("rows", res.RowCount),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
