// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlguard

import (
	"encoding/json"
	"strings"
)

var (
	affixes = []string{"SQLQuery:", "SQL:", "Query:", "sql:", "SQLResult", "Result:", "Answer:"}
	// Order matters: the first keyword found wins, not the earliest position.
	statementKeywords = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "SHOW", "DESCRIBE"}
)

// Clean extracts a bare SQL statement from model output. It unwraps
// {"sql": ...} JSON, markdown code fences and common labels, then cuts
// everything before the first statement keyword.
func Clean(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "{") && strings.Contains(cleaned, `"sql":`) {
		var payload map[string]any
		if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
			if s, ok := payload["sql"].(string); ok {
				cleaned = strings.TrimSpace(s)
			}
		}
	}

	if start := strings.Index(cleaned, "```sql"); start != -1 {
		cleaned = unfence(cleaned, start+len("```sql"))
	} else if start := strings.Index(cleaned, "```"); start != -1 {
		cleaned = unfence(cleaned, start+len("```"))
	}

	for _, a := range affixes {
		if strings.HasPrefix(cleaned, a) {
			cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, a))
		}
		if strings.HasSuffix(cleaned, a) {
			cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, a))
		}
	}

	for _, kw := range statementKeywords {
		if pos := indexFold(cleaned, kw); pos != -1 {
			cleaned = strings.TrimSpace(cleaned[pos:])
			break
		}
	}
	return cleaned
}

// indexFold returns the byte offset in s of the first ASCII case-insensitive
// match of the upper-case ASCII keyword kw, or -1. Offsets always refer to s.
func indexFold(s, kw string) int {
	for i := 0; i+len(kw) <= len(s); i++ {
		match := true
		for j := 0; j < len(kw); j++ {
			c := s[i+j]
			if 'a' <= c && c <= 'z' {
				c -= 'a' - 'A'
			}
			if c != kw[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// unfence returns the text between body and the next closing fence, or s
// unchanged when the fence is never closed.
func unfence(s string, body int) string {
	end := strings.Index(s[body:], "```")
	if end == -1 {
		return s
	}
	return strings.TrimSpace(s[body : body+end])
}
