// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package llm builds chat models for OpenAI-compatible endpoints and wraps
// them with prompt rendering and a single transient-error retry.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "askbank/cli/internal/errors"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config selects and configures a chat model.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// Factory builds a chat model from cfg.
type Factory func(ctx context.Context, cfg Config) (model.BaseChatModel, error)

var registry = map[string]Factory{}

func init() {
	registerOpenAICompatible("openai", "")
	registerOpenAICompatible("dashscope", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	registerOpenAICompatible("deepseek", "https://api.deepseek.com/v1")
}

// Register adds or replaces a provider factory.
func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = f
}

// Providers lists registered provider names.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func registerOpenAICompatible(name, defaultBaseURL string) {
	Register(name, func(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		temp := cfg.Temperature
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     baseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Temperature: &temp,
		})
	})
}

// NewChatModel builds a model for cfg.Provider ("openai" when empty).
func NewChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.New(apperrors.ModelUnavailable, "no API key configured (set OPENAI_API_KEY or run 'askbank login')")
	}
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = "openai"
	}
	create, ok := registry[provider]
	if !ok {
		return nil, apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("unsupported model provider: %s", cfg.Provider))
	}
	m, err := create(ctx, cfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ModelUnavailable, "create chat model", err)
	}
	return m, nil
}
