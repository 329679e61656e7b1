// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"

	apperrors "askbank/cli/internal/errors"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// PresentFailure formats a failed response for display. Typed errors show their
// human message without the machine-readable kind prefix.
func PresentFailure(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*apperrors.E); ok {
		if e.Err != nil {
			return Mask(fmt.Sprintf("%s: %v", e.Message, e.Err))
		}
		return Mask(e.Message)
	}
	return Mask(err.Error())
}
