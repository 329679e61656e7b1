// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package segmentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"askbank/cli/internal/llm"
	"askbank/cli/internal/prompts"
	"askbank/cli/internal/session"
	"askbank/cli/internal/sqlguard"
	"askbank/cli/internal/text2sql"

	"go.uber.org/zap"
)

const (
	historyWindow       = 3
	minControlQuestion  = 10
	maxFallbackQuestion = 100
	customerPrefix      = "针对银行客户，"
	genericControl      = "分析对照组客群"
)

func (p *Pipeline) analyze(ctx context.Context, s *State) (*State, error) {
	q := s.OriginalQuery
	if !strings.Contains(q, "客户") && !strings.Contains(q, "客群") {
		q = customerPrefix + q
	}
	s.EnhancedQuery = q
	s.TargetQuestion = q
	s.next = nodeTarget

	history := ""
	if users := session.LastUserTurns(s.History, historyWindow); len(users) > 0 {
		var b strings.Builder
		b.WriteString("对话历史:\n")
		for i, u := range users {
			fmt.Fprintf(&b, "历史问题 %d: %s\n", i+1, u)
		}
		b.WriteString("\n")
		history = b.String()
	}

	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.ProblemAnalysis, map[string]any{
		"question": q,
		"history":  history,
	})
	if err != nil {
		p.logger.Warn("problem analysis failed, using the question as target", zap.Error(err))
		return s, nil
	}

	var a Analysis
	if err := llm.DecodeJSON(reply, &a); err != nil {
		p.logger.Warn("problem analysis returned no usable JSON", zap.Error(err))
		return s, nil
	}
	if strings.TrimSpace(a.TargetQueryQuestion) == "" {
		s.fail("问题分析失败：缺少目标客群查询问题")
		return s, nil
	}
	s.Analysis = &a
	s.TargetQuestion = a.TargetQueryQuestion
	s.ControlQuestion = a.ControlQueryQuestion
	return s, nil
}

func (p *Pipeline) target(ctx context.Context, s *State) (*State, error) {
	resp := p.sql.Run(ctx, text2sql.Request{
		Question:  s.TargetQuestion,
		SessionID: s.SessionID,
		History:   s.History,
		Observer:  s.obs,
	})
	if resp.Success {
		g := groupFromResponse(s.TargetQuestion, resp)
		s.Target = &g
		s.next = nodeControl
		return s, nil
	}

	p.logger.Warn("target pipeline failed, asking the model for SQL directly", zap.String("error", resp.Error))
	g, err := p.fallbackTarget(ctx, s.TargetQuestion)
	if err != nil {
		s.fail("生成目标客群SQL失败: %s；备用方法失败: %v", resp.Error, err)
		return s, nil
	}
	s.Target = &g
	s.next = nodeControl
	return s, nil
}

// fallbackTarget asks the model for the target SQL without the text2sql
// pipeline and executes it once.
func (p *Pipeline) fallbackTarget(ctx context.Context, question string) (Group, error) {
	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.TargetQuery, map[string]any{
		"question": question,
	})
	if err != nil {
		return Group{}, err
	}
	stmt, ok := acceptSQL(reply)
	if !ok {
		return Group{}, errors.New("模型未返回可执行的SELECT语句")
	}
	res, err := p.db.Query(ctx, stmt)
	if err != nil {
		return Group{}, errors.New(dbMessage(err))
	}
	g := Group{Question: question, SQL: stmt, Source: SourceFallback}
	g.setResult(res)
	return g, nil
}

func (p *Pipeline) control(ctx context.Context, s *State) (*State, error) {
	question := s.ControlQuestion
	if utf8.RuneCountInString(strings.TrimSpace(question)) < minControlQuestion {
		question = p.controlQuestion(ctx, s.TargetQuestion)
	}
	s.ControlQuestion = question
	targetSQL := s.Target.SQL

	resp := p.sql.Run(ctx, text2sql.Request{
		Question:  question,
		SessionID: s.SessionID,
		History:   s.History,
		TargetSQL: targetSQL,
		Observer:  s.obs,
	})
	if !resp.Success {
		p.logger.Warn("control pipeline failed, deriving control SQL from target", zap.String("error", resp.Error))
		g := p.fallbackControl(ctx, question, targetSQL)
		s.Control = &g
		return s, nil
	}

	g := groupFromResponse(question, resp)
	p.checkControl(ctx, targetSQL, &g)
	s.Control = &g
	return s, nil
}

// controlQuestion asks the model for a complementary question.
func (p *Pipeline) controlQuestion(ctx context.Context, target string) string {
	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.ControlQuestion, map[string]any{
		"target_question": target,
	})
	if err == nil && reply != "" {
		return reply
	}
	if err != nil {
		p.logger.Warn("control question generation failed", zap.Error(err))
	}
	q := "分析非" + target
	if utf8.RuneCountInString(q) > maxFallbackQuestion {
		q = genericControl
	}
	return q
}

// checkControl lets the model correct the control SQL. A rewrite is only
// accepted when it is a safe SELECT that executes.
func (p *Pipeline) checkControl(ctx context.Context, targetSQL string, g *Group) {
	if targetSQL == "" || g.SQL == "" {
		return
	}
	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.ControlCheck, map[string]any{
		"target_sql":  targetSQL,
		"control_sql": g.SQL,
	})
	if err != nil {
		p.logger.Warn("control check failed", zap.Error(err))
		return
	}
	checked, ok := acceptSQL(reply)
	if !ok || normalize(checked) == normalize(g.SQL) {
		return
	}
	res, err := p.db.Query(ctx, checked)
	if err != nil {
		p.logger.Warn("corrected control SQL failed, keeping pipeline SQL", zap.Error(err))
		return
	}
	g.SQL = checked
	g.Source = SourceChecked
	g.setResult(res)
}

// fallbackControl derives the control SQL from the target SQL: first by
// asking the model, then by negating the WHERE clause, finally by reusing
// the target statement as is.
func (p *Pipeline) fallbackControl(ctx context.Context, question, targetSQL string) Group {
	g := Group{Question: question, Source: SourceFallback, Data: []map[string]any{}}
	if targetSQL == "" {
		g.Error = "目标SQL为空，无法生成对照组SQL"
		return g
	}

	stmt := ""
	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.ControlSQL, map[string]any{
		"target_sql": targetSQL,
	})
	if err != nil {
		p.logger.Warn("control SQL generation failed", zap.Error(err))
	} else if sql, ok := acceptSQL(reply); ok {
		stmt = sql
	}
	if stmt == "" {
		if negated, ok := NegateWhere(targetSQL); ok {
			stmt = negated
		} else {
			stmt = targetSQL
		}
	}
	g.SQL = stmt

	res, err := p.db.Query(ctx, stmt)
	if err != nil {
		g.Error = dbMessage(err)
		return g
	}
	g.setResult(res)
	return g
}

func (p *Pipeline) explain(ctx context.Context, s *State) (*State, error) {
	control := s.Control
	if control == nil {
		control = &Group{}
	}
	reply, err := p.llm.Complete(ctx, prompts.CategoryText2SQL, prompts.SegmentExplanation, map[string]any{
		"question":       s.OriginalQuery,
		"target_sql":     s.Target.SQL,
		"target_result":  s.Target.resultText(),
		"control_sql":    control.SQL,
		"control_result": control.resultText(),
	})
	if err != nil {
		s.failed = true
		s.Success = false
		s.Error = "生成分析结果解释失败: " + err.Error()
		return s, nil
	}
	s.Explanation = reply
	s.Success = true
	return s, nil
}

func (p *Pipeline) failNode(_ context.Context, s *State) (*State, error) {
	s.Success = false
	if s.Error == "" {
		s.Error = "未知错误"
	}
	p.logger.Warn("segmentation failed", zap.String("error", s.Error))
	return s, nil
}

// acceptSQL cleans model output and keeps it only when it is a safe SELECT.
func acceptSQL(reply string) (string, bool) {
	stmt := sqlguard.Clean(reply)
	if stmt == "" || !strings.Contains(strings.ToUpper(stmt), "SELECT") {
		return "", false
	}
	if v := sqlguard.Check(stmt); !v.Valid {
		return "", false
	}
	return stmt, true
}

func normalize(stmt string) string {
	return strings.TrimSuffix(strings.Join(strings.Fields(stmt), " "), ";")
}

// dbMessage returns the driver message without the wrapping kind prefix.
func dbMessage(err error) string {
	for u := errors.Unwrap(err); u != nil; u = errors.Unwrap(u) {
		err = u
	}
	return err.Error()
}
