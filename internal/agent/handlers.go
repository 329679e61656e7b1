// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package agent

import (
	"context"
	"fmt"
	"strings"

	"askbank/cli/internal/intent"
	"askbank/cli/internal/metadata"
	"askbank/cli/internal/segmentation"
	"askbank/cli/internal/session"
	"askbank/cli/internal/text2sql"

	"go.uber.org/zap"
)

// QueryRunner answers data questions. *text2sql.Pipeline satisfies it.
type QueryRunner interface {
	Run(ctx context.Context, req text2sql.Request) *text2sql.Response
}

// SegmentRunner answers customer segmentation questions.
// *segmentation.Pipeline satisfies it.
type SegmentRunner interface {
	Run(ctx context.Context, req segmentation.Request) *segmentation.Response
}

// TableLister lists table names. *sqlexec.Inspector satisfies it.
type TableLister interface {
	TableNames(ctx context.Context) ([]string, error)
}

type text2sqlHandler struct {
	runner   QueryRunner
	sessions *session.Manager
	logger   *zap.Logger
}

func (h *text2sqlHandler) Name() string { return "text2sql/processor" }

func (h *text2sqlHandler) Handle(ctx context.Context, req Request) *Response {
	in := string(req.Parsed.Intent)
	if h.runner == nil {
		return errorResponse(in, "text2sql", "Text2SQL处理器未注册")
	}
	resp := h.runner.Run(ctx, text2sql.Request{
		Question:  req.Text,
		SessionID: req.SessionID,
		History:   req.History,
		Entities:  &text2sql.Entities{OrderBy: req.Parsed.OrderBy},
	})
	out := &Response{Success: resp.Success, Intent: in, Agent: "text2sql", Query: resp, Error: resp.Error}
	if !resp.Success {
		return out
	}

	if err := h.sessions.UpdateCache(req.SessionID, session.Cache{
		LastQuery:    req.Text,
		LastEntities: req.Parsed,
		LastResult:   resp,
	}); err != nil {
		h.logger.Warn("update session cache failed", zap.String("session", req.SessionID), zap.Error(err))
	}
	out.reply = resp.Explanation
	out.replyMeta = map[string]any{"sql_query": resp.SQLQuery, "row_count": resp.RowCount}
	return out
}

type segmentationHandler struct {
	runner SegmentRunner
}

func (h *segmentationHandler) Name() string { return "customer_profile/analyzer" }

func (h *segmentationHandler) Handle(ctx context.Context, req Request) *Response {
	in := string(req.Parsed.Intent)
	if h.runner == nil {
		return errorResponse(in, "customer_profile", "客户画像分析器不可用")
	}
	resp := h.runner.Run(ctx, segmentation.Request{
		Question:  req.Text,
		SessionID: req.SessionID,
		History:   req.History,
	})
	out := &Response{Success: resp.Success, Intent: in, Agent: "customer_profile", Segmentation: resp, Error: resp.Error}
	if resp.Success {
		out.reply = "客户画像分析结果: " + resp.Explanation
		out.replyMeta = map[string]any{"query_type": "customer_profile"}
	}
	return out
}

type metadataHandler struct {
	assets      *metadata.AssetUnderstanding
	recommender *metadata.Recommender
	logger      *zap.Logger
}

func (h *metadataHandler) Name() string { return "metadata/recommender" }

func (h *metadataHandler) Handle(ctx context.Context, req Request) *Response {
	in := string(intent.MetadataQuery)
	if len(req.Parsed.Tables) > 0 {
		results := []*metadata.TableAnalysis{}
		for _, t := range req.Parsed.Tables {
			a, err := h.assets.AnalyzeTable(ctx, t)
			if err != nil {
				h.logger.Debug("table analysis skipped", zap.String("table", t), zap.Error(err))
				continue
			}
			results = append(results, a)
		}
		return &Response{
			Success: true,
			Intent:  in,
			Agent:   "metadata",
			Type:    TypeTableAnalysis,
			Results: results,
			reply:   fmt.Sprintf("已处理元数据查询，返回%d个结果", len(results)),
		}
	}

	recs, err := h.recommender.RecommendTables(ctx, req.Text, 0)
	if err != nil {
		return errorResponse(in, "metadata", "元数据处理失败: "+err.Error())
	}
	return &Response{
		Success:         true,
		Intent:          in,
		Agent:           "metadata",
		Type:            TypeRecommendations,
		Recommendations: recs,
		Message:         recs.Message,
		reply:           fmt.Sprintf("已处理元数据查询，返回%d个结果", len(recs.Recommendations)),
	}
}

type tableInfoHandler struct {
	assets *metadata.AssetUnderstanding
}

func (h *tableInfoHandler) Name() string { return "metadata/understanding" }

func (h *tableInfoHandler) Handle(ctx context.Context, req Request) *Response {
	in := string(intent.TableInfo)
	if len(req.Parsed.Tables) == 0 {
		return errorResponse(in, "metadata", "未指定要查询的表名")
	}
	table := req.Parsed.Tables[0]
	a, err := h.assets.AnalyzeTable(ctx, table)
	if err != nil {
		return errorResponse(in, "metadata", err.Error())
	}

	semantics := make([]*metadata.FieldSemantics, 0, len(a.Fields))
	for _, f := range a.Fields {
		if fs, err := h.assets.AnalyzeField(ctx, table, f.Name); err == nil {
			semantics = append(semantics, fs)
		}
	}
	return &Response{
		Success:        true,
		Intent:         in,
		Agent:          "metadata",
		Table:          a,
		FieldSemantics: semantics,
		Message:        a.Description,
		reply:          fmt.Sprintf("已获取表 %s 的详细信息", table),
	}
}

type schemaHandler struct {
	tables      TableLister
	recommender *metadata.Recommender
	logger      *zap.Logger
}

func (h *schemaHandler) Name() string { return "metadata/schema" }

func (h *schemaHandler) Handle(ctx context.Context, req Request) *Response {
	in := string(intent.SchemaQuery)
	names, err := h.tables.TableNames(ctx)
	if err != nil {
		return errorResponse(in, "metadata", "获取模式信息失败: "+err.Error())
	}
	out := &Response{
		Success: true,
		Intent:  in,
		Agent:   "metadata",
		Tables:  names,
		reply:   fmt.Sprintf("已获取数据库模式信息，共%d个表", len(names)),
	}
	if h.recommender != nil {
		recs, err := h.recommender.RecommendTables(ctx, req.Text, 0)
		if err != nil {
			h.logger.Debug("schema recommendations unavailable", zap.Error(err))
		} else {
			out.Recommendations = recs
		}
	}
	return out
}

var defaultSuggestions = []string{
	"查询所有表的信息",
	"获取特定表的结构",
	"执行数据查询",
	"分析字段含义",
}

var cannedAnswers = []struct {
	keywords []string
	answer   string
}{
	{[]string{"你是谁", "你是什么"}, "我是多智能体数据查询系统，可以帮助您：\n• 自然语言查询数据库\n• 生成SQL代码\n• 分析数据结构\n• 提供查询建议"},
	{[]string{"你能做什么", "功能"}, "我可以帮您：\n• 使用自然语言查询数据库数据\n• 生成和执行SQL语句\n• 分析数据库表结构\n• 提供数据查询建议\n• 支持多种查询类型（检索、分析、统计等）"},
	{[]string{"怎么用", "如何使用"}, "使用方法：\n1. 直接输入自然语言查询，如'显示所有客户信息'\n2. 使用'tables'命令查看所有表\n3. 使用'table <表名>'查看表结构\n4. 输入'help'查看更多帮助"},
	{[]string{"帮助", "help"}, "帮助信息：\n• 自然语言查询：直接输入问题\n• 查看表列表：tables\n• 查看表结构：table <表名>\n• 查看状态：status\n• 查看历史：history\n• 清除历史：clear\n• 退出：quit/exit"},
}

const fallbackAnswer = "我理解您的问题，但我主要专注于数据查询相关任务。您可以：\n• 询问数据库相关的问题\n• 请求生成SQL查询\n• 查看表结构和数据\n• 输入'help'查看更多功能"

type conversationHandler struct{}

func (conversationHandler) Name() string { return "conversation/assistant" }

func (conversationHandler) Handle(_ context.Context, req Request) *Response {
	lower := strings.ToLower(req.Text)
	answer := fallbackAnswer
	for _, c := range cannedAnswers {
		if containsAny(lower, c.keywords) {
			answer = c.answer
			break
		}
	}
	return &Response{
		Success:     true,
		Intent:      "conversation",
		Message:     answer,
		Suggestions: append([]string(nil), defaultSuggestions...),
		reply:       answer,
	}
}

const (
	generalMessage = "我不太确定您的查询意图，以下是一些建议："
	maxSuggestions = 5
)

var suggestionKeywords = []struct{ keyword, suggestion string }{
	{"客户", "查询客户信息"},
	{"订单", "查询订单信息"},
	{"统计", "统计数据汇总"},
}

type generalHandler struct{}

func (generalHandler) Name() string { return "general/assistant" }

func (generalHandler) Handle(_ context.Context, req Request) *Response {
	return &Response{
		Success:     true,
		Intent:      "general",
		Message:     generalMessage,
		Suggestions: Suggestions(req.Text),
		reply:       generalMessage,
	}
}

// Suggestions returns follow-up queries for text, at most five.
func Suggestions(text string) []string {
	out := append([]string(nil), defaultSuggestions...)
	for _, k := range suggestionKeywords {
		if strings.Contains(text, k.keyword) {
			out = append([]string{k.suggestion}, out...)
			break
		}
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
