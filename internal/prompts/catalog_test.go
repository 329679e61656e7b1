// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package prompts

import (
	"context"
	"testing"

	apperrors "askbank/cli/internal/errors"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalogHasEveryPrompt(t *testing.T) {
	want := []string{
		"common.sql_validation",
		"conversation.rewrite_with_history",
		"intent_parsing.system_prompt",
		"text2sql.control_check",
		"text2sql.control_question",
		"text2sql.control_sql",
		"text2sql.empty_retry",
		"text2sql.error_correction",
		"text2sql.explanation",
		"text2sql.problem_analysis",
		"text2sql.response_generation",
		"text2sql.segment_explanation",
		"text2sql.sql_generation",
		"text2sql.sql_refinement",
		"text2sql.target_query",
	}
	assert.Equal(t, want, Names())
}

func TestGetMissing(t *testing.T) {
	_, err := Get("text2sql", "nope")
	require.Error(t, err)
	assert.Equal(t, apperrors.PromptMissing, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "text2sql.nope")
}

func TestMessagesRendersPlaceholdersAndBraces(t *testing.T) {
	msgs, err := Messages(context.Background(), CategoryCommon, SQLValidation, map[string]any{
		"table_info": "customers(id, name)",
		"sql":        "SELECT id FROM customers",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `{"valid": true/false`)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "待验证SQL: SELECT id FROM customers")
	assert.Contains(t, msgs[1].Content, "customers(id, name)")
}

func TestMessagesUserOnly(t *testing.T) {
	msgs, err := Messages(context.Background(), CategoryText2SQL, Explanation, map[string]any{
		"question":     "查询客户总数",
		"sql_query":    "SELECT COUNT(*) FROM customers",
		"query_result": "查询返回1行数据",
		"raw_result":   "[(42,)]",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "用户问题：查询客户总数")
}

func TestParseCustomCatalog(t *testing.T) {
	c, err := Parse([]byte("demo:\n  hello:\n    system: be brief\n    user: hi {name}\n"))
	require.NoError(t, err)

	text, err := c.Get("demo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "be brief\n\nhi {name}", text)

	msgs, err := c.Messages(context.Background(), "demo", "hello", map[string]any{"name": "bank"})
	require.NoError(t, err)
	assert.Equal(t, "hi bank", msgs[1].Content)
}
