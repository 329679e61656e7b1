// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package intent

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

type scored[T any] struct {
	value    T
	patterns []*regexp.Regexp
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Declaration order breaks ties.
var queryTypeRules = []scored[QueryType]{
	{QuerySelect, compileAll(`查询|显示|获取|找出|看看|查看|列出`, `什么|哪些|多少|几个`, `select|show|get|find|list`)},
	{QueryAggregate, compileAll(`统计|汇总|合计|平均|最大|最小|总和`, `count|sum|avg|max|min|total`, `总计|平均数|最大值|最小值`)},
	{QueryFilter, compileAll(`条件|筛选|过滤|满足|符合`, `where|filter|condition`, `大于|小于|等于|不等于|包含|不包含`)},
	{QueryJoin, compileAll(`关联|连接|联合|合并`, `join|union|combine`, `和.*一起|与.*相关`)},
	{QuerySort, compileAll(`排序|排列|升序|降序`, `order|sort|rank`, `从高到低|从低到高|按.*排序`)},
	{QueryLimit, compileAll(`前.*个|限制|只显示|最多`, `limit|top|first`, `前\d+|最多\d+|仅\d+`)},
}

var intentRules = []scored[Intent]{
	{DataRetrieval, compileAll(`查询|显示|获取|找出|看看|查看`, `什么|哪些|怎么|如何`, `select|show|get|find`)},
	{DataAnalysis, compileAll(`分析|解析|研究|探索`, `analyze|explore|study`, `趋势|模式|规律`)},
	{DataSummary, compileAll(`汇总|总结|概况|概览`, `summary|overview|profile`, `总体|整体|综合`)},
	{DataComparison, compileAll(`比较|对比|差异|区别`, `compare|difference|versus`, `比.*多|比.*少|超过|低于`)},
	{DataRanking, compileAll(`排名|排行|排序|等级`, `rank|rating|grade`, `第.*名|最高|最低|最佳|最差`)},
	{DataCount, compileAll(`多少|几个|数量|计数`, `count|number|quantity`, `总数|个数|数量`)},
	{DataValidation, compileAll(`验证|检查|确认|是否`, `validate|check|verify`, `正确|错误|异常|问题`)},
}

var (
	entityPatterns = compileAll(
		`(?i)客户表|顾客表|用户表|customer`,
		`(?i)产品表|商品表|服务表|product`,
		`(?i)账户表|账号表|account`,
		`(?i)贷款表|借款表|loan`,
		`(?i)存款表|储蓄表|deposit`,
	)
	attributePatterns = compileAll(
		`(?i)姓名|名字|name`,
		`(?i)编号|ID|号码|no`,
		`(?i)状态|情况|status`,
		`(?i)时间|日期|time|date`,
		`(?i)金额|数额|amount|balance`,
	)
	conditionPatterns = compileAll(
		`(.*?)(大于|超过|>)(\d+)`,
		`(.*?)(小于|低于|<)(\d+)`,
		`(.*?)(等于|是|=)(.+?)`,
		`(.*?)(包含|含有)(.+?)`,
	)
	operators = map[string]string{
		"大于": ">", "超过": ">", ">": ">",
		"小于": "<", "低于": "<", "<": "<",
		"等于": "=", "是": "=", "=": "=",
		"包含": "LIKE", "含有": "LIKE",
	}
	aggregationRules = []struct {
		function string
		pattern  *regexp.Regexp
	}{
		{"count", regexp.MustCompile(`(?i)计数|数量|个数|count`)},
		{"sum", regexp.MustCompile(`(?i)求和|总和|合计|sum`)},
		{"avg", regexp.MustCompile(`(?i)平均|平均值|mean|avg`)},
		{"max", regexp.MustCompile(`(?i)最大|最高|max`)},
		{"min", regexp.MustCompile(`(?i)最小|最低|min`)},
	}
	sortPattern     = regexp.MustCompile(`(?i)排序|排列|order|sort`)
	descPattern     = regexp.MustCompile(`(?i)降序|从高到低|desc`)
	limitPatterns   = compileAll(`前(\d+)个`, `限制(\d+)`, `最多(\d+)`, `(?i)top\s*(\d+)`, `(?i)limit\s*(\d+)`)
)

// ParseRules classifies text without a chat model.
func ParseRules(text string) Parsed {
	lower := strings.ToLower(text)
	qt := bestMatch(lower, queryTypeRules, QueryUnknown)
	in := bestMatch(lower, intentRules, Unknown)
	return Parsed{
		Intent:       in,
		QueryType:    qt,
		Entities:     collect(text, entityPatterns),
		Attributes:   collect(text, attributePatterns),
		Conditions:   extractConditions(text),
		Aggregations: extractAggregations(text),
		OrderBy:      extractOrderBy(text),
		Limit:        extractLimit(text),
		Confidence:   confidence(text, in, qt),
		RawQuery:     text,
		Source:       "rules",
	}
}

// bestMatch scores each candidate by total regex matches. Ties go to the
// earlier candidate; all zero yields fallback.
func bestMatch[T any](text string, rules []scored[T], fallback T) T {
	best, bestScore := fallback, 0
	for _, r := range rules {
		score := 0
		for _, p := range r.patterns {
			score += len(p.FindAllString(text, -1))
		}
		if score > bestScore {
			best, bestScore = r.value, score
		}
	}
	return best
}

func collect(text string, patterns []*regexp.Regexp) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range patterns {
		for _, m := range p.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func extractConditions(text string) []Condition {
	out := []Condition{}
	for _, p := range conditionPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			op, ok := operators[strings.TrimSpace(m[2])]
			if !ok {
				op = "="
			}
			out = append(out, Condition{
				Field:    strings.TrimSpace(m[1]),
				Operator: op,
				Value:    strings.TrimSpace(m[3]),
			})
		}
	}
	return out
}

func extractAggregations(text string) []Aggregation {
	out := []Aggregation{}
	for _, r := range aggregationRules {
		if r.pattern.MatchString(text) {
			out = append(out, Aggregation{Function: r.function, Field: "*"})
		}
	}
	return out
}

func extractOrderBy(text string) []OrderBy {
	if !sortPattern.MatchString(text) {
		return []OrderBy{}
	}
	dir := "asc"
	if descPattern.MatchString(text) {
		dir = "desc"
	}
	return []OrderBy{{Field: "id", Direction: dir}}
}

func extractLimit(text string) int {
	for _, p := range limitPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}

func confidence(text string, in Intent, qt QueryType) float64 {
	c := 0.5
	if utf8.RuneCountInString(text) > 10 {
		c += 0.1
	}
	if in != Unknown {
		c += 0.2
	}
	if qt != QueryUnknown {
		c += 0.2
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}
