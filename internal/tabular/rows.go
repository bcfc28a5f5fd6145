/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tabular

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"scriptcast/internal/domain"
)

type rowOptions struct {
	skipEmptyRole bool
}

// Option configures ParseScriptLinesFromStructuredData.
type Option func(*rowOptions)

// WithSkipEmptyRole controls whether rows without a role are dropped (the
// default) or kept with an empty role name.
func WithSkipEmptyRole(skip bool) Option {
	return func(o *rowOptions) { o.skipEmptyRole = skip }
}

// ParseScriptLinesFromStructuredData converts rows into dialogue lines using
// mapping. Line numbers are assigned sequentially over the emitted lines.
// Unmapped columns and empty cells leave the field empty.
func ParseScriptLinesFromStructuredData(res domain.StructuredParseResult, mapping ColumnMapping, opts ...Option) []domain.ScriptLineInput {
	o := rowOptions{skipEmptyRole: true}
	for _, opt := range opts {
		opt(&o)
	}
	out := make([]domain.ScriptLineInput, 0, len(res.Rows))
	for _, row := range res.Rows {
		role := cellText(row, mapping.Role)
		if role == "" && o.skipEmptyRole {
			continue
		}
		line := domain.ScriptLineInput{
			LineNumber:  len(out) + 1,
			RoleName:    role,
			SourceText:  cellText(row, mapping.SourceText),
			Translation: cellText(row, mapping.Translation),
			RecStatus:   NormalizeRecStatus(cellText(row, mapping.RecStatus)),
			Notes:       cellText(row, mapping.Notes),
		}
		if mapping.Timecode != "" {
			if v, ok := row.Get(mapping.Timecode); ok {
				line.Timecode = FormatTimecode(v)
			}
		}
		out = append(out, line)
	}
	return out
}

func cellText(row domain.Row, header string) string {
	if header == "" {
		return ""
	}
	v, ok := row.Get(header)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

var reTimecodeParts = regexp.MustCompile(`^\[?(\d{1,2}):(\d{2}):(\d{2})(?:[:;.,](\d{2,3}))?\]?$`)

// NormalizeTimecode renders HH:MM:SS[:FF] from common spellings
// ("[0:01:02]", "00:01:02;10", "00:01:02.500"). Millisecond suffixes are
// dropped; anything unrecognised is returned trimmed and unchanged.
func NormalizeTimecode(s string) string {
	s = strings.TrimSpace(s)
	m := reTimecodeParts.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	h, _ := strconv.Atoi(m[1])
	tc := fmt.Sprintf("%02d:%s:%s", h, m[2], m[3])
	if len(m[4]) == 2 {
		tc += ":" + m[4]
	}
	return tc
}

// FormatTimecode renders a timecode cell. Spreadsheet time cells arrive as a
// fraction of a day and are converted to HH:MM:SS.
func FormatTimecode(v domain.Value) string {
	if f, ok := v.Number(); ok && f >= 0 && f < 1 {
		secs := int(math.Round(f * 86400))
		if secs >= 86400 {
			secs = 86399
		}
		return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	}
	return NormalizeTimecode(v.String())
}

var recStatusSynonyms = map[string]domain.RecStatus{
	"הוקלט": domain.RecRecorded, "recorded": domain.RecRecorded, "done": domain.RecRecorded,
	"yes": domain.RecRecorded, "y": domain.RecRecorded, "v": domain.RecRecorded, "✓": domain.RecRecorded,
	"optional": domain.RecOptional, "אופציונלי": domain.RecOptional, "opt": domain.RecOptional,
	"לא הוקלט": domain.RecNotRecorded, "not recorded": domain.RecNotRecorded, "no": domain.RecNotRecorded,
	"n": domain.RecNotRecorded, "todo": domain.RecNotRecorded,
	"pending": "", "null": "", "-": "",
}

// NormalizeRecStatus maps recording-status synonyms onto the three canonical
// values; empty and "pending" mean null. Unknown values are returned
// verbatim so validation can reject them.
func NormalizeRecStatus(s string) domain.RecStatus {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if rs, ok := recStatusSynonyms[strings.ToLower(strings.Join(strings.Fields(s), " "))]; ok {
		return rs
	}
	return domain.RecStatus(s)
}

// CellValue converts extracted cell text to a Value: empty is null, plain
// decimals are numbers, everything else is a string. Numbers with leading
// zeros ("007") stay strings.
func CellValue(s string) domain.Value {
	t := strings.TrimSpace(s)
	if t == "" {
		return domain.Null()
	}
	if (len(t) > 1 && t[0] == '0' && t[1] != '.') || strings.ContainsAny(t, "xXeE_") {
		return domain.StringValue(t)
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return domain.NumberValue(f)
	}
	return domain.StringValue(t)
}

// BuildResult turns raw extracted rows into a structured result: the header
// row is detected, blank headers are named "Column N", fully empty data rows
// are dropped and at most maxRows data rows are kept (maxRows <= 0 means no
// cap).
func BuildResult(rows [][]string, source domain.TableSource, sheet string, maxRows int) (domain.StructuredParseResult, []domain.Diagnostic) {
	res := domain.StructuredParseResult{Headers: []string{}, Rows: []domain.Row{}, Source: source, Sheet: sheet}
	var diags []domain.Diagnostic
	hi := DetectHeaderRow(rows)
	if hi < 0 {
		return res, diags
	}
	for i, h := range rows[hi] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		res.Headers = append(res.Headers, h)
	}
	dropped := 0
	for _, r := range rows[hi+1:] {
		if emptyRow(r) {
			continue
		}
		if maxRows > 0 && len(res.Rows) >= maxRows {
			dropped++
			continue
		}
		vals := make([]domain.Value, len(r))
		for i, c := range r {
			vals[i] = CellValue(c)
		}
		res.Rows = append(res.Rows, domain.NewRow(res.Headers, vals))
	}
	res.TotalRows = len(res.Rows) + dropped
	if dropped > 0 {
		diags = append(diags, domain.Diagnostic{
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("row limit of %d reached, %d rows ignored", maxRows, dropped),
			Source:   "tabular",
			Context:  sheet,
		})
	}
	return res, diags
}

var reCellGap = regexp.MustCompile(`\t+|\s{3,}`)

// SplitTextTable splits tab- or wide-space-aligned text into rows of cells.
// Leading indentation is ignored and blank lines are skipped.
func SplitTextTable(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		cells := reCellGap.Split(t, -1)
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows = append(rows, cells)
	}
	return rows
}
