// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		valid bool
	}{
		{"select", "SELECT COUNT(*) FROM customers", true},
		{"lower case with padding", "  select * from t  ", true},
		{"show", "SHOW TABLES", true},
		{"describe", "DESCRIBE customers", true},
		{"delete", "DELETE FROM customers", false},
		{"update", "UPDATE t SET a = 1", false},
		{"explain not allowed", "EXPLAIN SELECT 1", false},
		{"hidden drop", "SELECT 1; DROP TABLE customers", false},
		{"create inside select", "SELECT create_time FROM t", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.sql)
			assert.Equal(t, tt.valid, v.Valid)
			if !tt.valid {
				assert.NotEmpty(t, v.Error)
			}
		})
	}
}

func TestCheckNamesKeyword(t *testing.T) {
	assert.Equal(t, "不支持包含DROP的查询", Check("SELECT 1; DROP TABLE t").Error)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sql fence", "```sql\nSELECT * FROM t;\n```", "SELECT * FROM t;"},
		{"plain fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"json payload", `{"sql": "SELECT id FROM customers", "note": "x"}`, "SELECT id FROM customers"},
		{"label prefix", "SQLQuery: SELECT 1", "SELECT 1"},
		{"label suffix", "SELECT 1 Answer:", "SELECT 1"},
		{"leading prose", "Here is the query: select name from t", "select name from t"},
		{"unterminated fence", "```sql\nSELECT 1", "SELECT 1"},
		{"no keyword", "I cannot answer", "I cannot answer"},
		{"select keyword searched before with", "WITH x AS (SELECT 1) SELECT * FROM x", "SELECT 1) SELECT * FROM x"},
		{"prose with runes that grow when upper-cased", "ɐɐɐɐɐɐɐɐ WITH", "WITH"},
		{"prose with runes that shrink when upper-cased", "ıſıſ SELECT COUNT(*) FROM customer_info", "SELECT COUNT(*) FROM customer_info"},
		{"chinese prose", "查询语句如下：select id from t", "select id from t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
