// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package text2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/progress"
	"askbank/cli/internal/prompts"
	"askbank/cli/internal/session"
	"askbank/cli/internal/sqlguard"

	"go.uber.org/zap"
)

const historyWindow = 3

func (p *Pipeline) enhance(ctx context.Context, s *State) (*State, error) {
	q := s.OriginalQuery

	if len(s.History) > 0 {
		rewritten, err := p.llm.Complete(ctx, prompts.CategoryConversation, prompts.RewriteWithHistory, map[string]any{
			"history":  historyText(s.History),
			"question": q,
		})
		if err != nil {
			p.logger.Warn("question rewrite failed, using original", zap.Error(err))
		} else if rewritten != "" {
			q = rewritten
		}

		if users := session.LastUserTurns(s.History, historyWindow); len(users) > 0 {
			var b strings.Builder
			b.WriteString("上下文信息：\n")
			for i, u := range users {
				fmt.Fprintf(&b, "历史问题 %d: %s\n", i+1, u)
			}
			b.WriteString("\n当前问题：")
			b.WriteString(q)
			q = b.String()
		}
	}

	if clause := s.Entities.orderClause(); clause != "" {
		q += " 请按" + clause + "排序"
	}
	s.EnhancedQuery = q
	return s, nil
}

func historyText(turns []session.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}

func (p *Pipeline) tableInfo(ctx context.Context, s *State) (string, error) {
	if s.tableInfo != "" {
		return s.tableInfo, nil
	}
	text, err := p.schema.SchemaText(ctx, p.opts.SchemaTables)
	if err != nil {
		return "", err
	}
	s.tableInfo = text
	return text, nil
}

func (p *Pipeline) generate(ctx context.Context, s *State) (*State, error) {
	info, err := p.tableInfo(ctx, s)
	if err != nil {
		s.fail("获取表结构失败: %v", err)
		return s, nil
	}

	vars := map[string]any{
		"dialect":    p.opts.Dialect.DisplayName(),
		"table_info": info,
		"reference":  "",
		"question":   s.EnhancedQuery,
		"top_k":      p.opts.TopK,
	}
	if s.TargetSQL != "" {
		vars["reference"] = "参考SQL（请严格仿照其结构生成对照组SQL）:\n" + s.TargetSQL + "\n\n"
	}
	name := prompts.SQLGeneration
	if s.EmptyRetryCount > 0 && s.RefinedSQL != "" {
		name = prompts.EmptyRetry
		vars["previous_sql"] = s.RefinedSQL
	}

	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, name, vars)
	if err != nil {
		s.fail("SQL生成失败: %v", err)
		return s, nil
	}
	stmt := sqlguard.Clean(reply)
	if stmt == "" {
		s.fail("SQL生成失败: 模型未返回SQL")
		return s, nil
	}

	p.logger.Info("sql generated", zap.String("sql", stmt), zap.Int("empty_retry", s.EmptyRetryCount))
	s.GeneratedSQL = stmt
	s.InitialSQL = stmt
	s.next = nodeValidate
	return s, nil
}

func (p *Pipeline) validateInitial(ctx context.Context, s *State) (*State, error) {
	v := p.validate(ctx, s, s.GeneratedSQL)
	s.Validation = &v
	if !v.Valid {
		s.fail("生成的SQL不符合安全规范: %s", v.Error)
		return s, nil
	}
	s.next = nodeRefine
	return s, nil
}

func (p *Pipeline) refine(ctx context.Context, s *State) (*State, error) {
	s.RefinedSQL = s.InitialSQL

	info, err := p.tableInfo(ctx, s)
	if err != nil {
		p.logger.Warn("schema unavailable, keeping initial sql", zap.Error(err))
		return s, nil
	}
	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.SQLRefinement, map[string]any{
		"question":    s.OriginalQuery,
		"table_info":  info,
		"initial_sql": s.InitialSQL,
	})
	if err != nil {
		p.logger.Warn("refinement failed, keeping initial sql", zap.Error(err))
		return s, nil
	}
	if refined := sqlguard.Clean(reply); refined != "" {
		s.RefinedSQL = refined
	}
	return s, nil
}

func (p *Pipeline) validateRefined(ctx context.Context, s *State) (*State, error) {
	v := p.validate(ctx, s, s.RefinedSQL)
	s.RefinedValidation = &v
	if !v.Valid {
		s.fail("优化后的SQL不符合安全规范: %s", v.Error)
		return s, nil
	}
	s.next = nodeExecute
	return s, nil
}

func (p *Pipeline) execute(ctx context.Context, s *State) (*State, error) {
	res, err := p.db.Query(ctx, s.RefinedSQL)
	if err != nil {
		s.lastError = dbError(err)
		p.logger.Info("sql execution failed", zap.String("sql", s.RefinedSQL), zap.String("error", s.lastError))
		if s.RetryCount < p.opts.MaxErrorRetries && apperrors.KindOf(err) != apperrors.UnsafeSQL {
			progress.Emit(s.obs, progress.Event{Type: progress.EventRetry, Pipeline: "text2sql", Reason: "error", Attempt: s.RetryCount + 1})
			s.next = nodeCorrect
			return s, nil
		}
		s.Execution = &ExecutionResult{Success: false, Data: []map[string]any{}}
		s.fail("SQL执行失败: %s", s.lastError)
		return s, nil
	}

	s.Execution = newExecutionResult(res)
	s.next = p.afterRows(s)
	return s, nil
}

// afterRows picks the successor of a successful execution.
func (p *Pipeline) afterRows(s *State) string {
	if s.Execution.RowCount > 0 {
		return nodeExplain
	}
	if s.EmptyRetryCount < p.opts.MaxEmptyRetries {
		s.EmptyRetryCount++
		progress.Emit(s.obs, progress.Event{Type: progress.EventRetry, Pipeline: "text2sql", Reason: "empty", Attempt: s.EmptyRetryCount})
		return nodeGenerate
	}
	return nodeExplain
}

func (p *Pipeline) correct(ctx context.Context, s *State) (*State, error) {
	info, err := p.tableInfo(ctx, s)
	if err != nil {
		s.fail("获取表结构失败: %v", err)
		return s, nil
	}
	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.ErrorCorrection, map[string]any{
		"table_info": info,
		"question":   s.OriginalQuery,
		"failed_sql": s.RefinedSQL,
		"error":      s.lastError,
	})
	if err != nil {
		s.fail("SQL纠错失败: %v", err)
		return s, nil
	}
	fixed := sqlguard.Clean(reply)
	if v := p.validate(ctx, s, fixed); !v.Valid {
		s.fail("纠正后的SQL不符合安全规范: %s", v.Error)
		return s, nil
	}

	res, err := p.db.Query(ctx, fixed)
	if err != nil {
		s.lastError = dbError(err)
		s.fail("纠正后的SQL执行失败: %s", s.lastError)
		return s, nil
	}

	p.logger.Info("sql corrected", zap.String("sql", fixed), zap.Int("retry", s.RetryCount+1))
	s.RetryCount++
	s.RefinedSQL = fixed
	s.Execution = newExecutionResult(res)
	s.Execution.CorrectedSQL = fixed
	s.next = p.afterRows(s)
	return s, nil
}

const explanationFallback = "已执行SQL查询，但生成解释时出错："

func (p *Pipeline) explain(ctx context.Context, s *State) (*State, error) {
	exec := s.Execution
	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.Explanation, map[string]any{
		"question":     s.OriginalQuery,
		"sql_query":    s.RefinedSQL,
		"query_result": exec.forExplanation(),
		"raw_result":   exec.RawResult,
	})
	if err != nil {
		p.logger.Warn("explanation failed", zap.Error(err))
		s.Explanation = explanationFallback + err.Error()
	} else {
		s.Explanation = reply
	}
	s.Success = true
	return s, nil
}

func (p *Pipeline) failNode(_ context.Context, s *State) (*State, error) {
	s.Success = false
	if s.Error == "" {
		s.Error = "未知错误"
	}
	p.logger.Warn("text2sql failed", zap.String("error", s.Error))
	return s, nil
}

// dbError returns the driver's message without the wrapping kind prefix.
func dbError(err error) string {
	var e *apperrors.E
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
