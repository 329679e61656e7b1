// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package httperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"

	apperrors "askbank/cli/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("ping: %w", context.DeadlineExceeded), ClassTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "db.invalid"}, ClassDNS},
		{"refused op", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, ClassRefused},
		{"refused text", errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"), ClassRefused},
		{"tls", errors.New("x509: certificate signed by unknown authority"), ClassTLS},
		{"server", errors.New("status code: 502, Bad Gateway"), ClassServer},
		{"other", errors.New("Error 1045: Access denied for user 'root'"), ClassOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFormatNetworkError(t *testing.T) {
	assert.NoError(t, FormatNetworkError(nil, "connecting", "db"))

	base := errors.New("connection refused")
	err := FormatNetworkError(base, "connecting to the database", "db:3306")
	assert.ErrorIs(t, err, base)
}

func TestExtractHostFromURL(t *testing.T) {
	assert.Equal(t, "dashscope.aliyuncs.com", ExtractHostFromURL("https://dashscope.aliyuncs.com/compatible-mode/v1"))
	assert.Equal(t, "server", ExtractHostFromURL("::bad"))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusBadRequest, StatusCode(apperrors.New(apperrors.ConfigInvalid, "x")))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(fmt.Errorf("open: %w", apperrors.New(apperrors.DatabaseUnavailable, "x"))))
	assert.Equal(t, http.StatusBadGateway, StatusCode(apperrors.New(apperrors.ProviderFailed, "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
}
