// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package llm

import (
	"context"
	"strings"
	"time"

	apperrors "askbank/cli/internal/errors"
	"askbank/cli/internal/logging"
	"askbank/cli/internal/prompts"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// DefaultBackoff is the sleep before the single retry of a transient error.
const DefaultBackoff = time.Second

// Client renders catalog prompts and calls the chat model.
type Client struct {
	model   model.BaseChatModel
	name    string
	catalog *prompts.Catalog
	backoff time.Duration
	logger  *zap.Logger
	sleep   func(context.Context, time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff sets the retry sleep.
func WithBackoff(d time.Duration) Option { return func(c *Client) { c.backoff = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = logging.OrNop(l) } }

// WithCatalog replaces the embedded prompt catalog.
func WithCatalog(cat *prompts.Catalog) Option { return func(c *Client) { c.catalog = cat } }

// WithModelName records the model name for status output.
func WithModelName(name string) Option { return func(c *Client) { c.name = name } }

// NewClient wraps m. A nil model yields a client whose calls fail with model_unavailable.
func NewClient(m model.BaseChatModel, opts ...Option) *Client {
	c := &Client{
		model:   m,
		backoff: DefaultBackoff,
		logger:  zap.NewNop(),
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	if c.catalog == nil {
		if cat, err := prompts.Default(); err == nil {
			c.catalog = cat
		}
	}
	return c
}

// Available reports whether a model is configured.
func (c *Client) Available() bool { return c != nil && c.model != nil }

// ModelName returns the configured model name.
func (c *Client) ModelName() string { return c.name }

// Generate sends msgs and returns the trimmed reply text. A transient
// provider error is retried once after the backoff.
func (c *Client) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	if !c.Available() {
		return "", apperrors.New(apperrors.ModelUnavailable, "chat model is not configured")
	}

	out, err := c.model.Generate(ctx, msgs)
	if err != nil && logging.IsTransient(err) && ctx.Err() == nil {
		c.logger.Warn("transient model error, retrying",
			zap.String("class", logging.ClassifyProviderError(err).String()),
			logging.MaskedString("error", err.Error()))
		if serr := c.sleep(ctx, c.backoff); serr != nil {
			return "", apperrors.Wrap(apperrors.ProviderFailed, "model call", err)
		}
		out, err = c.model.Generate(ctx, msgs)
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ProviderFailed, "model call", err)
	}
	if out == nil {
		return "", apperrors.New(apperrors.ProviderFailed, "model returned no message")
	}
	return strings.TrimSpace(out.Content), nil
}

// Complete renders the catalog prompt (category, name) with vars and calls Generate.
func (c *Client) Complete(ctx context.Context, category, name string, vars map[string]any) (string, error) {
	if c.catalog == nil {
		return "", apperrors.New(apperrors.PromptMissing, "prompt catalog unavailable")
	}
	msgs, err := c.catalog.Messages(ctx, category, name, vars)
	if err != nil {
		return "", err
	}
	return c.Generate(ctx, msgs)
}

// Ask sends a single user message.
func (c *Client) Ask(ctx context.Context, text string) (string, error) {
	return c.Generate(ctx, []*schema.Message{schema.UserMessage(text)})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
