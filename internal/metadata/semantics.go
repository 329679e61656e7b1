// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package metadata

import (
	"context"
	"fmt"
	"strings"
)

// NameSemantics is what a field name suggests.
type NameSemantics struct {
	Category string `json:"category"`
	Meaning  string `json:"meaning"`
	Format   string `json:"format"`
}

// TypeSemantics is what a data type implies.
type TypeSemantics struct {
	Category    string   `json:"category"`
	Usage       string   `json:"usage"`
	Constraints []string `json:"constraints"`
}

// FieldSemantics is the business reading of one field.
type FieldSemantics struct {
	Table         string        `json:"table_name"`
	Field         string        `json:"field_name"`
	DataType      string        `json:"data_type"`
	ChineseType   string        `json:"chinese_type"`
	Semantics     NameSemantics `json:"semantics"`
	TypeSemantics TypeSemantics `json:"type_semantics"`
	Usage         string        `json:"usage"`
	Comment       string        `json:"comment"`
	Nullable      bool          `json:"nullable"`
	IsPrimaryKey  bool          `json:"is_primary_key"`
}

// AnalyzeField reads the semantics of field in table.
func (a *AssetUnderstanding) AnalyzeField(ctx context.Context, table, field string) (*FieldSemantics, error) {
	cols, err := a.catalog.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c.Name != field {
			continue
		}
		return &FieldSemantics{
			Table:         table,
			Field:         field,
			DataType:      c.DataType,
			ChineseType:   ChineseType(c.DataType),
			Semantics:     nameSemantics(field),
			TypeSemantics: typeSemantics(c.DataType),
			Usage:         fieldUsage(field, c.Comment),
			Comment:       c.Comment,
			Nullable:      c.Nullable,
			IsPrimaryKey:  c.IsPrimaryKey(),
		}, nil
	}
	return nil, fmt.Errorf("字段 %s 在表 %s 中不存在: %w", field, table, ErrNotFound)
}

var fieldCategories = []struct {
	keywords []string
	category string
}{
	{[]string{"id", "no", "code", "key"}, "标识符"},
	{[]string{"name", "nm", "title"}, "名称"},
	{[]string{"amt", "amount", "bal", "balance"}, "金额"},
	{[]string{"date", "time", "dt", "tm"}, "时间"},
	{[]string{"phone", "mobile", "tel"}, "联系方式"},
	{[]string{"addr", "address"}, "地址"},
	{[]string{"status", "state", "flag"}, "状态"},
}

var fieldMeanings = []struct {
	keywords []string
	meaning  string
}{
	{[]string{"cust", "customer"}, "客户"},
	{[]string{"prod", "product"}, "产品"},
	{[]string{"acct", "account"}, "账户"},
	{[]string{"loan"}, "贷款"},
	{[]string{"deposit"}, "存款"},
}

var fieldFormats = []struct {
	suffixes []string
	format   string
}{
	{[]string{"_no", "_num"}, "编号"},
	{[]string{"_cd", "_code"}, "代码"},
	{[]string{"_nm", "_name"}, "名称"},
	{[]string{"_dt", "_date"}, "日期"},
	{[]string{"_tm", "_time"}, "时间"},
}

func nameSemantics(field string) NameSemantics {
	lower := strings.ToLower(field)
	s := NameSemantics{Category: "其他"}
	for _, c := range fieldCategories {
		if containsAny(lower, c.keywords) {
			s.Category = c.category
			break
		}
	}
	for _, m := range fieldMeanings {
		if containsAny(lower, m.keywords) {
			s.Meaning = m.meaning
			break
		}
	}
	for _, f := range fieldFormats {
		for _, suffix := range f.suffixes {
			if strings.HasSuffix(lower, suffix) {
				s.Format = f.format
				return s
			}
		}
	}
	return s
}

func typeSemantics(dataType string) TypeSemantics {
	upper := strings.ToUpper(dataType)
	switch {
	case strings.Contains(upper, "VARCHAR"), strings.Contains(upper, "TEXT"):
		return TypeSemantics{Category: "文本类型", Usage: "存储字符串信息", Constraints: []string{"长度限制"}}
	case strings.Contains(upper, "INT"):
		return TypeSemantics{Category: "整数类型", Usage: "存储数值信息", Constraints: []string{"数值范围"}}
	case strings.Contains(upper, "DECIMAL"), strings.Contains(upper, "FLOAT"), strings.Contains(upper, "DOUBLE"):
		return TypeSemantics{Category: "小数类型", Usage: "存储精确数值", Constraints: []string{"精度限制", "范围限制"}}
	case strings.Contains(upper, "DATE"), strings.Contains(upper, "TIMESTAMP"):
		return TypeSemantics{Category: "时间类型", Usage: "存储时间信息", Constraints: []string{"格式限制"}}
	case strings.Contains(upper, "BOOLEAN"):
		return TypeSemantics{Category: "布尔类型", Usage: "存储是/否信息", Constraints: []string{"值域限制"}}
	}
	return TypeSemantics{Constraints: []string{}}
}

func fieldUsage(field, comment string) string {
	lower := strings.ToLower(field)
	has := func(s string) bool { return strings.Contains(lower, s) }
	switch {
	case has("id") && has("cust"):
		return "客户唯一标识"
	case has("name") && has("cust"):
		return "客户姓名"
	case has("mobile") || has("phone"):
		return "联系电话"
	case has("status"):
		return "状态标识"
	case has("create") && has("time"):
		return "创建时间"
	case has("update") && has("time"):
		return "更新时间"
	case comment != "":
		return comment
	}
	return "通用数据字段"
}
