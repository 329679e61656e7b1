// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metadata explains tables and fields in business terms and
// recommends tables, fields and joins for a natural-language question.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"askbank/cli/internal/logging"
	"askbank/cli/internal/sqlexec"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a table or field does not exist.
var ErrNotFound = errors.New("not found")

// Catalog is the subset of *sqlexec.Inspector the metadata agents read.
type Catalog interface {
	TableNames(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]sqlexec.Column, error)
	Relationships(ctx context.Context) ([]sqlexec.ForeignKey, error)
}

var chineseTypes = map[string]string{
	"VARCHAR":   "文本",
	"INT":       "整数",
	"BIGINT":    "长整数",
	"DECIMAL":   "小数",
	"FLOAT":     "浮点数",
	"DOUBLE":    "双精度浮点数",
	"DATE":      "日期",
	"DATETIME":  "日期时间",
	"TIMESTAMP": "时间戳",
	"TEXT":      "长文本",
	"BOOLEAN":   "布尔值",
	"TINYINT":   "小整数",
}

// ChineseType names a column data type in Chinese, or returns it unchanged.
func ChineseType(dataType string) string {
	if name, ok := chineseTypes[strings.ToUpper(dataType)]; ok {
		return name
	}
	return dataType
}

// Field is a column annotated for display.
type Field struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	TypeChinese  string  `json:"type_chinese"`
	Nullable     bool    `json:"nullable"`
	Default      *string `json:"default,omitempty"`
	Comment      string  `json:"comment"`
	KeyType      string  `json:"key_type,omitempty"`
	IsPrimaryKey bool    `json:"is_primary_key"`
}

// ForeignKeyRef is a reference from a field of the analyzed table.
type ForeignKeyRef struct {
	Field           string `json:"field"`
	ReferencesTable string `json:"references_table"`
	ReferencesField string `json:"references_field"`
}

// TableAnalysis is the business view of one table.
type TableAnalysis struct {
	Table            string          `json:"table_name"`
	Description      string          `json:"description"`
	Fields           []Field         `json:"fields"`
	PrimaryKeys      []string        `json:"primary_keys"`
	ForeignKeys      []ForeignKeyRef `json:"foreign_keys"`
	FieldCount       int             `json:"field_count"`
	HasRelationships bool            `json:"has_relationships"`
}

// AssetUnderstanding derives business descriptions from catalog metadata.
type AssetUnderstanding struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewAssetUnderstanding creates an AssetUnderstanding over catalog.
func NewAssetUnderstanding(catalog Catalog, logger *zap.Logger) *AssetUnderstanding {
	return &AssetUnderstanding{catalog: catalog, logger: logging.OrNop(logger)}
}

// AnalyzeTable describes table: its fields, keys and a generated summary.
func (a *AssetUnderstanding) AnalyzeTable(ctx context.Context, table string) (*TableAnalysis, error) {
	cols, err := a.catalog.Columns(ctx, table)
	if err != nil {
		a.logger.Warn("analyze table failed", zap.String("table", table), zap.Error(err))
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("表 %s 不存在或无法访问: %w", table, ErrNotFound)
	}

	t := &TableAnalysis{Table: table, PrimaryKeys: []string{}, ForeignKeys: []ForeignKeyRef{}}
	for _, c := range cols {
		t.Fields = append(t.Fields, Field{
			Name:         c.Name,
			Type:         c.DataType,
			TypeChinese:  ChineseType(c.DataType),
			Nullable:     c.Nullable,
			Default:      c.Default,
			Comment:      c.Comment,
			KeyType:      c.Key,
			IsPrimaryKey: c.IsPrimaryKey(),
		})
		if c.IsPrimaryKey() {
			t.PrimaryKeys = append(t.PrimaryKeys, c.Name)
		}
	}

	fks, err := a.catalog.Relationships(ctx)
	if err != nil {
		return nil, err
	}
	for _, fk := range fks {
		if fk.Table == table {
			t.ForeignKeys = append(t.ForeignKeys, ForeignKeyRef{Field: fk.Column, ReferencesTable: fk.RefTable, ReferencesField: fk.RefColumn})
		}
	}

	t.FieldCount = len(t.Fields)
	t.HasRelationships = len(t.ForeignKeys) > 0
	t.Description = describe(t)
	return t, nil
}

func describe(t *TableAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s，包含%d个字段。", BusinessMeaning(t.Table), len(t.Fields))
	if len(t.PrimaryKeys) > 0 {
		fmt.Fprintf(&b, "主键为：%s。", strings.Join(t.PrimaryKeys, ", "))
	}
	if len(t.ForeignKeys) > 0 {
		refs := make([]string, len(t.ForeignKeys))
		for i, fk := range t.ForeignKeys {
			refs[i] = fk.Field + "关联" + fk.ReferencesTable
		}
		fmt.Fprintf(&b, "包含外键关系：%s。", strings.Join(refs, ", "))
	}

	var order []string
	counts := map[string]int{}
	for _, f := range t.Fields {
		if counts[f.TypeChinese] == 0 {
			order = append(order, f.TypeChinese)
		}
		counts[f.TypeChinese]++
	}
	if len(order) > 0 {
		types := make([]string, len(order))
		for i, name := range order {
			types[i] = fmt.Sprintf("%s(%d个)", name, counts[name])
		}
		fmt.Fprintf(&b, "主要字段类型：%s。", strings.Join(types, ", "))
	}
	return b.String()
}

var businessMeanings = []struct {
	keywords []string
	meaning  string
}{
	{[]string{"cust", "customer"}, "客户信息表"},
	{[]string{"user"}, "用户信息表"},
	{[]string{"prod", "product"}, "产品信息表"},
	{[]string{"account", "acct"}, "账户信息表"},
	{[]string{"deposit"}, "存款业务表"},
	{[]string{"loan"}, "贷款业务表"},
	{[]string{"trans", "transaction"}, "交易记录表"},
	{[]string{"order"}, "订单信息表"},
	{[]string{"log"}, "日志记录表"},
	{[]string{"history"}, "历史记录表"},
	{[]string{"config", "setting"}, "配置信息表"},
}

// BusinessMeaning infers what a table holds from its name.
func BusinessMeaning(table string) string {
	lower := strings.ToLower(table)
	for _, m := range businessMeanings {
		if containsAny(lower, m.keywords) {
			return m.meaning
		}
	}
	return table + "数据表"
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
