// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure in askbank ends up as one of a small set of kinds so callers can
// decide whether to retry, degrade, or report the problem to the user.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// ConfigInvalid indicates missing or malformed configuration.
	ConfigInvalid Kind = "config_invalid"
	// ModelUnavailable indicates the chat model could not be initialized.
	ModelUnavailable Kind = "model_unavailable"
	// DatabaseUnavailable indicates the database could not be opened or reached.
	DatabaseUnavailable Kind = "database_unavailable"
	// UnsafeSQL indicates a statement rejected by the read-only guard.
	UnsafeSQL Kind = "unsafe_sql"
	// ExecutionFailed indicates the database rejected a statement.
	ExecutionFailed Kind = "execution_failed"
	// EmptyResult indicates a statement ran but returned no rows.
	EmptyResult Kind = "empty_result"
	// ProviderFailed indicates the LLM provider returned an error.
	ProviderFailed Kind = "provider_failed"
	// PromptMissing indicates a prompt template lookup miss.
	PromptMissing Kind = "prompt_missing"
	// Internal is the catch-all kind.
	Internal Kind = "internal"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in the chain, or Internal.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *E
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
