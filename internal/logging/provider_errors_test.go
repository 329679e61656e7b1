// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      ProviderErrorType
		transient bool
	}{
		{"nil", nil, ProviderErrorUnknown, false},
		{"context deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), ProviderErrorTimeout, true},
		{"auth", errors.New("error, status code: 401, message: Incorrect API key provided"), ProviderErrorAuth, false},
		{"rate limit", errors.New("status code: 429, Too Many Requests"), ProviderErrorRateLimit, true},
		{"unavailable", errors.New("status code: 503, service unavailable"), ProviderErrorUnavailable, true},
		{"network", errors.New("read tcp 10.0.0.1:443: connection reset by peer"), ProviderErrorNetwork, true},
		{"other", errors.New("invalid character 'x' looking for beginning of value"), ProviderErrorUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyProviderError(tt.err))
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestIsProviderError(t *testing.T) {
	assert.True(t, IsProviderError("OpenAI API returned 429"))
	assert.False(t, IsProviderError("Error 1054: Unknown column 'x' in 'field list'"))
}

func TestFormatProviderErrorMasksKey(t *testing.T) {
	out := FormatProviderError(errors.New("401 Incorrect API key provided: sk-abcdef1234567"))
	assert.Contains(t, out, "askbank login")
	assert.NotContains(t, out, "sk-abcdef1234567")
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(Options{})
	require.NoError(t, err)
	l.Info("dropped")

	file := filepath.Join(t.TempDir(), "askbank.log")
	l, err = NewLogger(Options{Level: "debug", File: file})
	require.NoError(t, err)
	l.Debug("written")
	require.NoError(t, l.Sync())
	assert.FileExists(t, file)
}

func TestPresentFailure(t *testing.T) {
	assert.Equal(t, "", PresentFailure(nil))
	assert.Equal(t, "dial *:*@tcp(db:3306)/x", PresentFailure(errors.New("dial u:p@tcp(db:3306)/x")))
}
