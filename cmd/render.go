// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"askbank/cli/internal/agent"
	"askbank/cli/internal/groupchat"
	"askbank/cli/internal/metadata"
	"askbank/cli/internal/segmentation"
	"askbank/cli/internal/text2sql"

	"github.com/pterm/pterm"
)

// maxTableRows caps rows printed in a result table.
const maxTableRows = 20

var (
	titleStyle = pterm.NewStyle(pterm.FgCyan, pterm.Bold)
	labelStyle = pterm.NewStyle(pterm.FgLightCyan)
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printSQL(title, stmt string) {
	if strings.TrimSpace(stmt) == "" {
		return
	}
	pterm.DefaultBox.WithTitle(titleStyle.Sprint(title)).WithPadding(1).Println(stmt)
}

func printRows(columns []string, rows []map[string]any) {
	if len(rows) == 0 {
		pterm.Println(pterm.FgGray.Sprint("  (no rows)"))
		return
	}
	if len(columns) == 0 {
		for k := range rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	data := pterm.TableData{columns}
	for i, r := range rows {
		if i == maxTableRows {
			break
		}
		line := make([]string, len(columns))
		for j, c := range columns {
			line[j] = formatCell(r[c])
		}
		data = append(data, line)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	if len(rows) > maxTableRows {
		pterm.Println(pterm.FgGray.Sprintf("  ... %d more rows", len(rows)-maxTableRows))
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func printFailure(msg string) {
	pterm.Println(pterm.FgRed.Sprint("❌ ") + msg)
}

func renderQuery(r *text2sql.Response) {
	if !r.Success {
		printFailure(r.Error)
		return
	}
	printSQL("SQL", r.SQLQuery)
	if ex := r.ExecutionResult; ex != nil {
		printRows(ex.Columns, ex.Data)
		if ex.CorrectedSQL != "" {
			pterm.Println(labelStyle.Sprint("→ Corrected SQL: ") + ex.CorrectedSQL)
		}
	}
	if r.RetryCount > 0 || r.EmptyRetryCount > 0 {
		pterm.Println(pterm.FgGray.Sprintf("  retries: %d after errors, %d after empty results", r.RetryCount, r.EmptyRetryCount))
	}
	pterm.Println()
	pterm.Println(r.Explanation)
}

func renderSegmentation(r *segmentation.Response) {
	if r.Analysis != nil && r.Analysis.AnalysisType != "" {
		pterm.Println(labelStyle.Sprint("→ Analysis: ") + r.Analysis.AnalysisType)
	}
	for _, g := range []struct {
		title string
		group *segmentation.Group
	}{{"Target group", r.Target}, {"Control group", r.Control}} {
		if g.group == nil {
			continue
		}
		pterm.Println()
		pterm.Println(titleStyle.Sprint(g.title) + pterm.FgGray.Sprint(" "+g.group.Question))
		printSQL("SQL", g.group.SQL)
		if g.group.Error != "" {
			printFailure(g.group.Error)
			continue
		}
		printRows(nil, g.group.Data)
	}
	pterm.Println()
	if !r.Success {
		printFailure(r.Error)
		return
	}
	pterm.Println(r.Explanation)
}

func renderTable(a *metadata.TableAnalysis, fields []*metadata.FieldSemantics) {
	pterm.Println(titleStyle.Sprint(a.Table))
	pterm.Println(a.Description)
	pterm.Println()

	usage := map[string]string{}
	for _, f := range fields {
		usage[f.Field] = f.Usage
	}
	data := pterm.TableData{{"Field", "Type", "Nullable", "Key", "Comment", "Usage"}}
	for _, f := range a.Fields {
		data = append(data, []string{f.Name, f.TypeChinese, fmt.Sprint(f.Nullable), f.KeyType, f.Comment, usage[f.Name]})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	for _, fk := range a.ForeignKeys {
		pterm.Println(labelStyle.Sprint("→ FK: ") + fmt.Sprintf("%s -> %s.%s", fk.Field, fk.ReferencesTable, fk.ReferencesField))
	}
}

func renderRecommendations(r *metadata.TableRecommendations) {
	if r == nil {
		return
	}
	if r.Message != "" {
		pterm.Println(r.Message)
	}
	for _, rec := range r.Recommendations {
		pterm.Println(fmt.Sprintf("  %s %s", pterm.FgCyan.Sprintf("%-24s", rec.Table), pterm.FgGray.Sprintf("%.1f  %s", rec.Score, rec.Reason)))
	}
}

func renderAgent(r *agent.Response) {
	switch {
	case r.Query != nil:
		renderQuery(r.Query)
		return
	case r.Segmentation != nil:
		renderSegmentation(r.Segmentation)
		return
	case !r.Success:
		printFailure(r.Error)
		return
	}

	if r.Table != nil {
		renderTable(r.Table, r.FieldSemantics)
	}
	for _, t := range r.Results {
		renderTable(t, nil)
		pterm.Println()
	}
	if len(r.Tables) > 0 {
		pterm.Println(titleStyle.Sprintf("%d tables", len(r.Tables)))
		for _, t := range r.Tables {
			pterm.Println("  • " + t)
		}
	}
	if r.Recommendations != nil {
		pterm.Println()
		renderRecommendations(r.Recommendations)
	}
	if r.Message != "" && r.Table == nil && r.Recommendations == nil {
		pterm.Println(r.Message)
	}
	for _, s := range r.Suggestions {
		pterm.Println("  • " + s)
	}
}

func renderTeam(r *groupchat.Result) {
	for _, m := range r.Transcript {
		pterm.Println(labelStyle.Sprintf("[%s] ", m.Name) + m.Content)
	}
	pterm.Println()
	if !r.Success {
		printFailure(r.Error)
	}
}
