// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// ProviderErrorType represents the category of an LLM provider error.
type ProviderErrorType int

const (
	ProviderErrorUnknown ProviderErrorType = iota
	ProviderErrorNetwork
	ProviderErrorAuth
	ProviderErrorTimeout
	ProviderErrorRateLimit
	ProviderErrorUnavailable
)

func (t ProviderErrorType) String() string {
	switch t {
	case ProviderErrorNetwork:
		return "network"
	case ProviderErrorAuth:
		return "auth"
	case ProviderErrorTimeout:
		return "timeout"
	case ProviderErrorRateLimit:
		return "rate_limit"
	case ProviderErrorUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ClassifyProviderError categorizes an error returned by a chat completion call.
// Classification is substring based; the provider SDKs do not expose a stable
// error taxonomy across OpenAI-compatible vendors.
func ClassifyProviderError(err error) ProviderErrorType {
	if err == nil {
		return ProviderErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ProviderErrorTimeout
	}
	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "incorrect api key") || strings.Contains(lower, "invalid_api_key"):
		return ProviderErrorAuth
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") || strings.Contains(lower, "quota"):
		return ProviderErrorRateLimit
	case strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out"):
		return ProviderErrorTimeout
	case strings.Contains(lower, "502") || strings.Contains(lower, "503") ||
		strings.Contains(lower, "504") || strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "overloaded"):
		return ProviderErrorUnavailable
	case strings.Contains(lower, "connection reset") || strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") || strings.Contains(lower, "eof") ||
		strings.Contains(lower, "broken pipe"):
		return ProviderErrorNetwork
	}
	return ProviderErrorUnknown
}

// IsTransient reports whether a provider error is worth one more attempt.
func IsTransient(err error) bool {
	switch ClassifyProviderError(err) {
	case ProviderErrorNetwork, ProviderErrorTimeout, ProviderErrorRateLimit, ProviderErrorUnavailable:
		return true
	}
	return false
}

// IsProviderError reports whether the message looks like it came from the LLM API
// rather than from the database or the pipeline itself.
func IsProviderError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range []string{"api", "openai", "dashscope", "model", "completion", "rate limit", "429", "401"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FormatProviderError formats an LLM provider error in a user-friendly way.
func FormatProviderError(err error) string {
	errType := ClassifyProviderError(err)

	var builder strings.Builder
	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Model request failed"))
	builder.WriteString("\n\n")

	switch errType {
	case ProviderErrorNetwork:
		builder.WriteString("The connection to the model endpoint was interrupted.\n")
		builder.WriteString("Check OPENAI_BASE_URL and your network connection.\n")
	case ProviderErrorAuth:
		builder.WriteString("The model provider rejected the API key.\n")
		builder.WriteString("Run 'askbank login' or set OPENAI_API_KEY.\n")
	case ProviderErrorTimeout:
		builder.WriteString("The model did not answer in time.\n")
		builder.WriteString("Raise LLM_TIMEOUT_SECONDS or retry later.\n")
	case ProviderErrorRateLimit:
		builder.WriteString("The model provider is rate limiting requests.\n")
		builder.WriteString("Wait a moment and try again.\n")
	case ProviderErrorUnavailable:
		builder.WriteString("The model provider is temporarily unavailable.\n")
	default:
		builder.WriteString("The model returned an unexpected error.\n")
	}

	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	}
	return builder.String()
}

// PresentProviderError displays a formatted provider error.
func PresentProviderError(err error) {
	fmt.Println()
	fmt.Println(FormatProviderError(err))
	fmt.Println()
}
