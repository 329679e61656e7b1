// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/llm/llmtest"
	"askbank/cli/internal/prompts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(c *Client) *Client {
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestGenerateRetriesTransientOnce(t *testing.T) {
	m := llmtest.New().
		ThenError(errors.New("status code: 429, Too Many Requests")).
		Then("  SELECT 1  ")
	c := noSleep(NewClient(m))

	out, err := c.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
	assert.Equal(t, 2, m.CallCount())
}

func TestGenerateDoesNotRetryAuth(t *testing.T) {
	m := llmtest.New().
		ThenError(errors.New("status code: 401, Incorrect API key provided")).
		Then("never")
	c := noSleep(NewClient(m))

	_, err := c.Ask(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, apperrors.ProviderFailed, apperrors.KindOf(err))
	assert.Equal(t, 1, m.CallCount())
}

func TestGenerateGivesUpAfterSecondTransient(t *testing.T) {
	m := llmtest.New().
		ThenError(errors.New("503 service unavailable")).
		ThenError(errors.New("503 service unavailable")).
		Then("never")
	c := noSleep(NewClient(m))

	_, err := c.Ask(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, 2, m.CallCount())
}

func TestNilModel(t *testing.T) {
	c := NewClient(nil)
	assert.False(t, c.Available())
	_, err := c.Ask(context.Background(), "hi")
	assert.Equal(t, apperrors.ModelUnavailable, apperrors.KindOf(err))
}

func TestCompleteRendersCatalogPrompt(t *testing.T) {
	m := llmtest.New().On("目标查询: 高净值客户", "查询非高净值客户")
	c := NewClient(m)

	out, err := c.Complete(context.Background(), prompts.CategoryText2SQL, prompts.ControlQuestion,
		map[string]any{"target_question": "高净值客户"})
	require.NoError(t, err)
	assert.Equal(t, "查询非高净值客户", out)
}

func TestNewChatModelRequiresKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), Config{Model: "qwen-plus"})
	assert.Equal(t, apperrors.ModelUnavailable, apperrors.KindOf(err))

	_, err = NewChatModel(context.Background(), Config{APIKey: "k", Provider: "nope"})
	assert.Equal(t, apperrors.ConfigInvalid, apperrors.KindOf(err))

	m, err := NewChatModel(context.Background(), Config{APIKey: "k", Provider: "dashscope", Model: "qwen-plus"})
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Contains(t, Providers(), "deepseek")
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"valid\": true}\n```", &v))
	assert.True(t, v.Valid)
	assert.ErrorIs(t, DecodeJSON("no json here", &v), ErrNoJSON)
}
