// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Default recommendation limits.
const (
	DefaultTableLimit = 5
	DefaultFieldLimit = 10
)

// Keyword groups shared by table and query; order decides reasons.
var queryPatterns = [][]string{
	{"客户", "顾客", "用户", "cust", "customer"},
	{"产品", "商品", "服务", "prod", "product"},
	{"账户", "账号", "acct", "account"},
	{"交易", "流水", "记录", "trans", "transaction"},
	{"贷款", "借款", "loan"},
	{"存款", "储蓄", "deposit"},
	{"余额", "结余", "bal", "balance"},
	{"状态", "情况", "status", "state"},
}

var tableNameMapping = []struct{ word, table string }{
	{"客户", "customer_info"},
	{"顾客", "customer_info"},
	{"用户", "customer_info"},
	{"产品", "product_info"},
	{"商品", "product_info"},
	{"账户", "deposit_business"},
	{"账号", "deposit_business"},
	{"存款", "deposit_business"},
	{"贷款", "loan_business"},
	{"借款", "loan_business"},
}

var fieldNameMapping = []struct {
	word   string
	fields []string
}{
	{"姓名", []string{"name", "cust_name", "customer_name"}},
	{"电话", []string{"phone", "mobile", "tel", "telephone", "mobile_no"}},
	{"手机", []string{"mobile", "phone", "cell_phone", "mobile_no"}},
	{"号码", []string{"no", "number", "id", "code"}},
	{"地址", []string{"address", "addr"}},
	{"金额", []string{"amount", "amt", "balance", "bal"}},
	{"时间", []string{"time", "date", "created_at", "updated_at", "timestamp"}},
	{"状态", []string{"status", "state"}},
	{"类型", []string{"type", "category", "kind"}},
	{"编号", []string{"id", "no", "code", "number"}},
}

var (
	fieldKeywords    = []string{"name", "id", "no", "code", "status", "time", "date", "amt", "bal"}
	businessKeywords = []string{"cust", "prod", "acct", "loan", "deposit", "trans"}
)

// TableRecommendation is one scored table.
type TableRecommendation struct {
	Table  string         `json:"table_name"`
	Score  float64        `json:"relevance_score"`
	Reason string         `json:"reason"`
	Detail *TableAnalysis `json:"table_detail,omitempty"`
}

// TableRecommendations answers RecommendTables.
type TableRecommendations struct {
	Query           string                `json:"query"`
	TotalTables     int                   `json:"total_tables"`
	MatchedTables   int                   `json:"matched_tables"`
	Recommendations []TableRecommendation `json:"recommendations"`
	Message         string                `json:"message"`
}

// FieldRecommendation is one scored field.
type FieldRecommendation struct {
	Field  string  `json:"field_name"`
	Score  float64 `json:"relevance_score"`
	Info   Field   `json:"field_info"`
	Reason string  `json:"reason"`
}

// FieldRecommendations answers RecommendFields.
type FieldRecommendations struct {
	Table           string                `json:"table_name"`
	Query           string                `json:"query"`
	TotalFields     int                   `json:"total_fields"`
	MatchedFields   int                   `json:"matched_fields"`
	Recommendations []FieldRecommendation `json:"recommendations"`
	Message         string                `json:"message"`
}

// JoinSuggestion is a proposed join between two tables.
type JoinSuggestion struct {
	Table1       string  `json:"table1"`
	Table2       string  `json:"table2"`
	JoinType     string  `json:"join_type"`
	OnCondition  string  `json:"on_condition"`
	Relationship string  `json:"relationship"`
	Confidence   float64 `json:"confidence"`
}

// Recommender scores tables and fields against a question by keyword overlap.
type Recommender struct {
	assets *AssetUnderstanding
}

// NewRecommender creates a Recommender that reads through assets.
func NewRecommender(assets *AssetUnderstanding) *Recommender {
	return &Recommender{assets: assets}
}

// RecommendTables returns up to limit tables relevant to query, best first.
func (r *Recommender) RecommendTables(ctx context.Context, query string, limit int) (*TableRecommendations, error) {
	if limit <= 0 {
		limit = DefaultTableLimit
	}
	tables, err := r.assets.catalog.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("数据库中没有找到任何表: %w", ErrNotFound)
	}

	q := strings.ToLower(query)
	var scored []TableRecommendation
	for _, t := range tables {
		if score := tableScore(t, q); score > 0 {
			scored = append(scored, TableRecommendation{Table: t, Score: score, Reason: tableReason(t, q)})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	out := &TableRecommendations{
		Query:           query,
		TotalTables:     len(tables),
		MatchedTables:   len(scored),
		Recommendations: []TableRecommendation{},
	}
	for _, rec := range scored[:min(limit, len(scored))] {
		detail, err := r.assets.AnalyzeTable(ctx, rec.Table)
		if err != nil {
			r.assets.logger.Debug("skipping recommendation", zap.String("table", rec.Table), zap.Error(err))
			continue
		}
		rec.Detail = detail
		out.Recommendations = append(out.Recommendations, rec)
	}
	out.Message = fmt.Sprintf("找到 %d 个相关表推荐", len(out.Recommendations))
	return out, nil
}

func tableScore(table, q string) float64 {
	score := 0.0
	lower := strings.ToLower(table)
	if strings.Contains(q, lower) {
		score += 10
	}
	for _, m := range tableNameMapping {
		if strings.Contains(q, m.word) && m.table == table {
			score += 15
			break
		}
	}
	for _, group := range queryPatterns {
		for _, kw := range group {
			inTable, inQuery := strings.Contains(lower, kw), strings.Contains(q, kw)
			switch {
			case inTable && inQuery:
				score += 5
			case inTable:
				score += 2
			case inQuery:
				score += 1
			}
		}
	}
	for _, w := range strings.Fields(q) {
		if utf8.RuneCountInString(w) > 2 && strings.Contains(lower, w) {
			score += 1.5
		}
	}
	return score
}

func tableReason(table, q string) string {
	lower := strings.ToLower(table)
	for _, m := range tableNameMapping {
		if strings.Contains(q, m.word) && m.table == table {
			return fmt.Sprintf("中文关键词 '%s' 映射到表 '%s'", m.word, table)
		}
	}
	if strings.Contains(q, lower) {
		return fmt.Sprintf("表名 '%s' 直接匹配查询关键词", table)
	}
	var matched []string
	for _, group := range queryPatterns {
		for _, kw := range group {
			if strings.Contains(lower, kw) && strings.Contains(q, kw) {
				matched = append(matched, kw)
			}
		}
	}
	if len(matched) > 0 {
		return "包含相关关键词: " + strings.Join(matched, ", ")
	}
	if partial := partialWords(lower, q); len(partial) > 0 {
		return "部分匹配: " + strings.Join(partial, ", ")
	}
	return "基于语义相似度推荐"
}

func partialWords(name, q string) []string {
	var out []string
	for _, w := range strings.Fields(q) {
		if utf8.RuneCountInString(w) > 2 && strings.Contains(name, w) {
			out = append(out, w)
		}
	}
	return out
}

// RecommendFields returns up to limit fields of table relevant to query.
func (r *Recommender) RecommendFields(ctx context.Context, table, query string, limit int) (*FieldRecommendations, error) {
	if limit <= 0 {
		limit = DefaultFieldLimit
	}
	analysis, err := r.assets.AnalyzeTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("无法获取表 %s 的结构信息: %w", table, err)
	}

	q := strings.ToLower(query)
	var scored []FieldRecommendation
	for _, f := range analysis.Fields {
		if score := fieldScore(f, q); score > 0 {
			scored = append(scored, FieldRecommendation{Field: f.Name, Score: score, Info: f, Reason: fieldReason(f, q)})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	out := &FieldRecommendations{
		Table:           table,
		Query:           query,
		TotalFields:     len(analysis.Fields),
		MatchedFields:   len(scored),
		Recommendations: append([]FieldRecommendation{}, scored[:min(limit, len(scored))]...),
		Message:         fmt.Sprintf("在表 %s 中找到 %d 个相关字段", table, len(scored)),
	}
	return out, nil
}

// mappedWord returns the first Chinese keyword in q that maps onto name.
func mappedWord(name, q string) string {
	for _, m := range fieldNameMapping {
		if strings.Contains(q, m.word) && containsAny(name, m.fields) {
			return m.word
		}
	}
	return ""
}

func fieldScore(f Field, q string) float64 {
	score := 0.0
	name := strings.ToLower(f.Name)
	comment := strings.ToLower(f.Comment)

	for _, m := range fieldNameMapping {
		if strings.Contains(q, m.word) && containsAny(name, m.fields) {
			score += 10
		}
	}
	if strings.Contains(q, name) {
		score += 8
	}
	if comment != "" {
		for _, w := range strings.Fields(q) {
			if strings.Contains(comment, w) {
				score += 6
				break
			}
		}
	}
	for _, kw := range fieldKeywords {
		if strings.Contains(name, kw) && strings.Contains(q, kw) {
			score += 4
		}
	}
	for _, kw := range businessKeywords {
		if strings.Contains(name, kw) && strings.Contains(q, kw) {
			score += 5
		}
	}
	score += float64(len(partialWords(name, q)))
	if f.IsPrimaryKey {
		score += 2
	}
	return score
}

func fieldReason(f Field, q string) string {
	name := strings.ToLower(f.Name)
	comment := strings.ToLower(f.Comment)

	if word := mappedWord(name, q); word != "" {
		return fmt.Sprintf("中文关键词 '%s' 映射到字段 '%s'", word, f.Name)
	}
	if strings.Contains(q, name) {
		return fmt.Sprintf("字段名 '%s' 直接匹配查询关键词", f.Name)
	}
	if comment != "" {
		for _, w := range strings.Fields(q) {
			if strings.Contains(comment, w) {
				return fmt.Sprintf("字段注释 '%s' 包含相关关键词", f.Comment)
			}
		}
	}
	if f.IsPrimaryKey {
		return fmt.Sprintf("主键字段 '%s' 通常为重要查询条件", f.Name)
	}
	return "基于字段语义相关性推荐"
}

// SuggestJoins proposes joins for every pair of tables: declared foreign keys
// first, otherwise a join inferred from matching column names.
func (r *Recommender) SuggestJoins(ctx context.Context, tables []string) ([]JoinSuggestion, error) {
	if len(tables) < 2 {
		return nil, errors.New("至少需要两个表才能建议连接关系")
	}
	fks, err := r.assets.catalog.Relationships(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := []JoinSuggestion{}
	for i, t1 := range tables {
		for _, t2 := range tables[i+1:] {
			direct := false
			for _, fk := range fks {
				switch {
				case fk.Table == t1 && fk.RefTable == t2:
					suggestions = append(suggestions, foreignKeyJoin(t1, t2, fk.Column, fk.RefColumn))
					direct = true
				case fk.Table == t2 && fk.RefTable == t1:
					suggestions = append(suggestions, foreignKeyJoin(t1, t2, fk.RefColumn, fk.Column))
					direct = true
				}
			}
			if direct {
				continue
			}
			if j, ok := r.inferJoin(ctx, t1, t2); ok {
				suggestions = append(suggestions, j)
			}
		}
	}
	return suggestions, nil
}

func foreignKeyJoin(t1, t2, c1, c2 string) JoinSuggestion {
	return JoinSuggestion{
		Table1:       t1,
		Table2:       t2,
		JoinType:     "INNER JOIN",
		OnCondition:  fmt.Sprintf("%s.%s = %s.%s", t1, c1, t2, c2),
		Relationship: "foreign_key",
		Confidence:   1.0,
	}
}

func (r *Recommender) inferJoin(ctx context.Context, t1, t2 string) (JoinSuggestion, bool) {
	cols1, err := r.assets.catalog.Columns(ctx, t1)
	if err != nil {
		return JoinSuggestion{}, false
	}
	cols2, err := r.assets.catalog.Columns(ctx, t2)
	if err != nil {
		return JoinSuggestion{}, false
	}

	best := JoinSuggestion{}
	for _, c1 := range cols1 {
		for _, c2 := range cols2 {
			confidence := 0.0
			switch {
			case c1.Name == c2.Name:
				confidence = 0.8
			case similarFields(c1.Name, c2.Name):
				confidence = 0.6
			}
			if confidence > best.Confidence {
				best = JoinSuggestion{
					Table1:       t1,
					Table2:       t2,
					JoinType:     "LEFT JOIN",
					OnCondition:  fmt.Sprintf("%s.%s = %s.%s", t1, c1.Name, t2, c2.Name),
					Relationship: "inferred",
					Confidence:   confidence,
				}
			}
		}
	}
	return best, best.Confidence > 0
}

// similarFields matches xxx_id/yyy_id (and _no) pairs whose prefixes overlap.
func similarFields(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for _, suffix := range []string{"_id", "_no"} {
		if strings.HasSuffix(a, suffix) && strings.HasSuffix(b, suffix) {
			ba, bb := strings.TrimSuffix(a, suffix), strings.TrimSuffix(b, suffix)
			return ba == bb || strings.Contains(bb, ba) || strings.Contains(ba, bb)
		}
	}
	return false
}
