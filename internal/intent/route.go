// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package intent

import (
	"regexp"
	"strings"
)

var (
	tableNamePattern = regexp.MustCompile(`(?i)(?:table\s+|表\s*)([a-z_][a-z0-9_]*)|([a-z_][a-z0-9_]*)\s*表`)

	tableInfoKeywords = []string{"表结构", "的结构", "有哪些字段", "字段信息", "列信息", "describe", "desc "}
	schemaKeywords    = []string{"有哪些表", "所有表", "表列表", "数据库结构", "数据库模式", "schema"}
	metadataKeywords  = []string{"元数据", "推荐表", "推荐字段", "用哪个表", "哪张表", "数据资产", "字段含义", "字段语义"}

	customerKeywords = []struct {
		intent   Intent
		keywords []string
	}{
		{CustomerProfiling, []string{"客户画像", "用户画像", "画像"}},
		{CustomerRiskAnalysis, []string{"客户风险", "风险客户", "风险分析", "违约"}},
		{CustomerSegmentation, []string{"客户细分", "客群", "分群", "对照组", "高价值客户"}},
		{CustomerInsight, []string{"客户洞察", "客户特征", "客户行为", "客户偏好"}},
	}
)

// Route returns a routed classification when text names a metadata or
// customer analysis topic.
func Route(text string) (Parsed, bool) {
	lower := strings.ToLower(text)
	tables := TableNames(text)

	var in Intent
	switch {
	case len(tables) > 0 && containsAny(lower, tableInfoKeywords):
		in = TableInfo
	case containsAny(lower, schemaKeywords):
		in = SchemaQuery
	case containsAny(lower, metadataKeywords):
		in = MetadataQuery
	default:
		for _, c := range customerKeywords {
			if containsAny(lower, c.keywords) {
				in = c.intent
				break
			}
		}
	}
	if in == "" {
		return Parsed{}, false
	}

	p := ParseRules(text)
	p.Intent = in
	p.Tables = tables
	p.Source = "route"
	return p, true
}

// TableNames returns identifiers that text marks as tables.
func TableNames(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range tableNamePattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		name = strings.ToLower(name)
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
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

// Route targets for the group chat coordinator.
const (
	RouteText2SQL     = "text2sql"
	RouteSegmentation = "segmentation"
)

var segmentationKeywords = []string{
	"客户细分", "客户对比", "分析客群", "目标客群", "高价值客户",
	"普通客户", "客户特征", "年龄段客户", "对比不同", "年龄段",
	"客群特征", "客户行为", "存款行为",
}

// QueryClassifier decides between the text2sql and segmentation agents.
type QueryClassifier struct{}

// Classify returns RouteSegmentation or RouteText2SQL. Anything that is
// not clearly a segmentation question goes to text2sql.
func (QueryClassifier) Classify(text string) string {
	if strings.Contains(text, "对比") && strings.Contains(text, "年龄") {
		return RouteSegmentation
	}
	if containsAny(text, segmentationKeywords) {
		return RouteSegmentation
	}
	return RouteText2SQL
}
