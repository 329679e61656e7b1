// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns network and pipeline failures into user-facing
// messages and HTTP status codes.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	apperrors "askbank/cli/internal/errors"

	"github.com/pterm/pterm"
)

// Failure classes reported by Classify.
const (
	ClassTimeout = "timeout"
	ClassDNS     = "dns"
	ClassRefused = "refused"
	ClassTLS     = "tls"
	ClassServer  = "server"
	ClassOther   = "other"
)

// FormatNetworkError prints a troubleshooting message for err and returns it
// wrapped. context completes "while ..." and host names the endpoint.
func FormatNetworkError(err error, context, host string) error {
	if err == nil {
		return nil
	}
	displayErrorMessage(err, context, host)
	return fmt.Errorf("network error: %w", err)
}

// Classify buckets a connection error.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case isTimeoutError(err):
		return ClassTimeout
	case isDNSError(err):
		return ClassDNS
	case isConnectionRefusedError(err):
		return ClassRefused
	case isSSLError(err):
		return ClassTLS
	case isServerError(err.Error()):
		return ClassServer
	}
	return ClassOther
}

func displayErrorMessage(err error, context, host string) {
	switch Classify(err) {
	case ClassTimeout:
		showTimeoutError(context)
	case ClassDNS:
		showDNSError(context, host)
	case ClassRefused:
		showConnectionRefusedError(context, host)
	case ClassTLS:
		showSSLError(context)
	case ClassServer:
		showServerError(context)
	default:
		showGenericError(context, host, err.Error())
	}
}

func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such host")
}

func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "ssl") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// isServerError reports 5xx responses from the model endpoint.
func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	return strings.Contains(lower, "500") ||
		strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") ||
		strings.Contains(lower, "504") ||
		strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") ||
		strings.Contains(lower, "gateway timeout")
}

func showTimeoutError(context string) {
	pterm.Printf("⏱️  Connection timeout while %s\n", context)
	pterm.Println()
	pterm.Println("The endpoint took too long to respond. This could mean:")
	pterm.Println("  • The database or model service is under heavy load")
	pterm.Println("  • A firewall is silently dropping the connection")
	pterm.Println()
	pterm.Println("Raise SQL_TIMEOUT_SECONDS or LLM_TIMEOUT_SECONDS, or try again later.")
	pterm.Println()
}

func showDNSError(context, host string) {
	pterm.Printf("🌐 Cannot resolve %s while %s\n", host, context)
	pterm.Println()
	pterm.Println("Please check:")
	pterm.Println("  • The host name in DB_HOST or OPENAI_BASE_URL")
	pterm.Println("  • Your DNS settings")
	pterm.Println()
}

func showConnectionRefusedError(context, host string) {
	pterm.Printf("🚫 Connection refused by %s while %s\n", host, context)
	pterm.Println()
	pterm.Println("Nothing is accepting connections there. This could mean:")
	pterm.Println("  • MySQL is not running")
	pterm.Println("  • Wrong port in DB_PORT or the DSN")
	pterm.Println()
	pterm.Println("Verify the connection with: askbank connect")
	pterm.Println()
}

func showSSLError(context string) {
	pterm.Printf("🔒 Secure connection failed while %s\n", context)
	pterm.Println()
	pterm.Println("Try:")
	pterm.Println("  • Check your system date and time")
	pterm.Println("  • Verify network proxy settings")
	pterm.Println("  • Add tls=false or tls=skip-verify to a local MySQL DSN")
	pterm.Println()
}

func showServerError(context string) {
	pterm.Printf("⚠️  Model service error while %s\n", context)
	pterm.Println()
	pterm.Println("The chat model endpoint returned a server error.")
	pterm.Println("This is not a problem with your setup. Please try again in a few minutes.")
	pterm.Println()
}

func showGenericError(context, host, errDetails string) {
	pterm.Printf("❌ Cannot reach %s while %s\n", host, context)
	pterm.Println()

	if errDetails != "" {
		shortErr := errDetails
		if len(shortErr) > 100 {
			shortErr = shortErr[:100] + "..."
		}
		pterm.Debug.Printf("Technical details: %s\n", shortErr)
		pterm.Println()
	}
}

// ExtractHostFromURL extracts the host from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}

// StatusCode maps an error to the HTTP status the API answers with.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch apperrors.KindOf(err) {
	case apperrors.ConfigInvalid, apperrors.UnsafeSQL:
		return http.StatusBadRequest
	case apperrors.EmptyResult:
		return http.StatusNotFound
	case apperrors.DatabaseUnavailable, apperrors.ModelUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ProviderFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
