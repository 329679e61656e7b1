// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlguard cleans model-produced SQL and enforces the read-only rule
// before anything reaches the database.
package sqlguard

import (
	"fmt"
	"strings"
)

// Verdict is the outcome of a safety or model validation check.
type Verdict struct {
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

var (
	allowedPrefixes = []string{"SELECT", "SHOW", "DESCRIBE"}
	// Matched as plain substrings of the upper-cased statement.
	forbiddenKeywords = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE"}
)

// Check applies the read-only rule: the statement must start with SELECT,
// SHOW or DESCRIBE and must not contain any forbidden keyword.
func Check(sql string) Verdict {
	upper := strings.ToUpper(strings.TrimSpace(sql))

	allowed := false
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(upper, p) {
			allowed = true
			break
		}
	}
	if !allowed {
		return Verdict{Valid: false, Error: "只支持SELECT、SHOW、DESCRIBE查询"}
	}

	for _, kw := range forbiddenKeywords {
		if strings.Contains(upper, kw) {
			return Verdict{Valid: false, Error: fmt.Sprintf("不支持包含%s的查询", kw)}
		}
	}
	return Verdict{Valid: true, Message: "SQL语法检查通过"}
}

// IsSafe is Check(sql).Valid.
func IsSafe(sql string) bool {
	return Check(sql).Valid
}
