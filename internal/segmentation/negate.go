// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package segmentation

import "regexp"

var whereClause = regexp.MustCompile(`(?is)\bWHERE\s+(.*?)(\s+GROUP\s+BY\b|\s+HAVING\b|\s+ORDER\s+BY\b|\s+LIMIT\b|\s*;?\s*$)`)

// NegateWhere wraps the first WHERE clause of stmt in NOT (...). It reports
// false when stmt has no WHERE clause.
func NegateWhere(stmt string) (string, bool) {
	m := whereClause.FindStringSubmatchIndex(stmt)
	if m == nil || m[2] == m[3] {
		return stmt, false
	}
	return stmt[:m[2]] + "NOT (" + stmt[m[2]:m[3]] + ")" + stmt[m[3]:], true
}
