// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package prompts holds every model prompt used by askbank, keyed by
// (category, name). The catalog is an embedded YAML file loaded once.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "askbank/cli/internal/errors"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var embedded []byte

// Categories and names referenced by the pipelines.
const (
	CategoryText2SQL     = "text2sql"
	CategoryConversation = "conversation"
	CategoryIntent       = "intent_parsing"
	CategoryCommon       = "common"

	SQLGeneration      = "sql_generation"
	SQLRefinement      = "sql_refinement"
	Explanation        = "explanation"
	EmptyRetry         = "empty_retry"
	ErrorCorrection    = "error_correction"
	ProblemAnalysis    = "problem_analysis"
	ControlQuestion    = "control_question"
	ControlSQL         = "control_sql"
	ControlCheck       = "control_check"
	TargetQuery        = "target_query"
	SegmentExplanation = "segment_explanation"
	ResponseGeneration = "response_generation"
	RewriteWithHistory = "rewrite_with_history"
	IntentSystemPrompt = "system_prompt"
	SQLValidation      = "sql_validation"
)

// Template is one prompt. Either part may be empty.
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Text returns the system and user parts joined by a blank line.
func (t Template) Text() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(t.System); s != "" {
		parts = append(parts, s)
	}
	if u := strings.TrimSpace(t.User); u != "" {
		parts = append(parts, u)
	}
	return strings.Join(parts, "\n\n")
}

// Catalog maps category -> name -> template.
type Catalog struct {
	entries map[string]map[string]Template
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var entries map[string]map[string]Template
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigInvalid, "parse prompt catalog", err)
	}
	return &Catalog{entries: entries}, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embedded)
	})
	return defaultCatalog, defaultErr
}

// Lookup returns the template for (category, name).
func (c *Catalog) Lookup(category, name string) (Template, error) {
	if names, ok := c.entries[category]; ok {
		if t, ok := names[name]; ok {
			return t, nil
		}
	}
	return Template{}, apperrors.New(apperrors.PromptMissing, fmt.Sprintf("未找到提示词: %s.%s", category, name))
}

// Get returns the raw template text for (category, name).
func (c *Catalog) Get(category, name string) (string, error) {
	t, err := c.Lookup(category, name)
	if err != nil {
		return "", err
	}
	return t.Text(), nil
}

// Messages renders (category, name) with vars into chat messages: a system
// message when the template has a system part, then the user message.
func (c *Catalog) Messages(ctx context.Context, category, name string, vars map[string]any) ([]*schema.Message, error) {
	t, err := c.Lookup(category, name)
	if err != nil {
		return nil, err
	}

	var parts []schema.MessagesTemplate
	if strings.TrimSpace(t.System) != "" {
		parts = append(parts, schema.SystemMessage(strings.TrimSpace(t.System)))
	}
	if strings.TrimSpace(t.User) != "" {
		parts = append(parts, schema.UserMessage(strings.TrimSpace(t.User)))
	}

	msgs, err := prompt.FromMessages(schema.FString, parts...).Format(ctx, vars)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigInvalid, fmt.Sprintf("render prompt %s.%s", category, name), err)
	}
	return msgs, nil
}

// Names lists every key as "category.name", sorted.
func (c *Catalog) Names() []string {
	var out []string
	for category, names := range c.entries {
		for name := range names {
			out = append(out, category+"."+name)
		}
	}
	sort.Strings(out)
	return out
}

// Get looks up a template in the embedded catalog.
func Get(category, name string) (string, error) {
	c, err := Default()
	if err != nil {
		return "", err
	}
	return c.Get(category, name)
}

// Messages renders a template from the embedded catalog.
func Messages(ctx context.Context, category, name string, vars map[string]any) ([]*schema.Message, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	return c.Messages(ctx, category, name, vars)
}

// Names lists the embedded catalog keys.
func Names() []string {
	c, err := Default()
	if err != nil {
		return nil
	}
	return c.Names()
}
