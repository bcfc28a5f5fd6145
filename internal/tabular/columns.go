/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tabular maps spreadsheet-like sources onto dialogue lines: column
// auto-detection, header-row detection, row conversion and a plain-text
// transcript fallback.
package tabular

import (
	"regexp"
	"strings"
)

// ColumnMapping names the source header used for each semantic field. An
// empty string means the field was not detected.
type ColumnMapping struct {
	Role        string `json:"role_column"`
	Timecode    string `json:"timecode_column,omitempty"`
	SourceText  string `json:"source_text_column,omitempty"`
	Translation string `json:"translation_column,omitempty"`
	RecStatus   string `json:"rec_status_column,omitempty"`
	Notes       string `json:"notes_column,omitempty"`
}

// Field identifies a semantic column.
type Field string

const (
	FieldRole        Field = "role"
	FieldTimecode    Field = "timecode"
	FieldSourceText  Field = "source_text"
	FieldTranslation Field = "translation"
	FieldRecStatus   Field = "rec_status"
	FieldNotes       Field = "notes"
)

// Columns lists the configured (non-empty) columns by field, in field order.
func (m ColumnMapping) Columns() []FieldColumn {
	var out []FieldColumn
	for _, f := range fieldOrder {
		if h := m.get(f); h != "" {
			out = append(out, FieldColumn{Field: f, Header: h})
		}
	}
	return out
}

// FieldColumn pairs a field with its mapped header.
type FieldColumn struct {
	Field  Field
	Header string
}

func (m ColumnMapping) get(f Field) string {
	switch f {
	case FieldRole:
		return m.Role
	case FieldTimecode:
		return m.Timecode
	case FieldSourceText:
		return m.SourceText
	case FieldTranslation:
		return m.Translation
	case FieldRecStatus:
		return m.RecStatus
	case FieldNotes:
		return m.Notes
	}
	return ""
}

func (m *ColumnMapping) set(f Field, h string) {
	switch f {
	case FieldRole:
		m.Role = h
	case FieldTimecode:
		m.Timecode = h
	case FieldSourceText:
		m.SourceText = h
	case FieldTranslation:
		m.Translation = h
	case FieldRecStatus:
		m.RecStatus = h
	case FieldNotes:
		m.Notes = h
	}
}

type fieldRule struct {
	field  Field
	weight int
	exact  *regexp.Regexp
	loose  *regexp.Regexp
}

// rule compiles a synonym alternation anchored to the whole header, and a
// second alternation bounded by non-letters so "English Text" or
// "Character Name (EN)" still match. An empty loose alternation reuses alt.
func rule(f Field, weight int, alt, loose string) fieldRule {
	if loose == "" {
		loose = alt
	}
	return fieldRule{
		field:  f,
		weight: weight,
		exact:  regexp.MustCompile(`(?i)^(?:` + alt + `)$`),
		loose:  regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + loose + `)(?:$|[^\p{L}\p{N}])`),
	}
}

// Header synonyms, English and Hebrew, matched against the trimmed header.
// Words such as "in", "time" and "line" only count as the whole header.
var fieldRules = []fieldRule{
	rule(FieldRole, 40, `character(?:\s?name)?|char|role(?:\s?name)?|speaker|actor role|דמות|תפקיד|שם דמות|דובר`, ""),
	rule(FieldTimecode, 10, `time\s?code|tc|tc\s?in|time|start(?:\s?time)?|in|זמן|טיימקוד`, `time\s?code|tc|tc\s?in|start\s?time|טיימקוד`),
	rule(FieldSourceText, 20, `dialogue|dialog|text|eng(?:lish)?|subtitles?|source(?:\s?text)?|original(?:\s?text)?|line|טקסט|מקור|אנגלית`,
		`dialogue|dialog|text|english|subtitles?|source|original|טקסט|מקור|אנגלית`),
	rule(FieldTranslation, 10, `עברית|heb(?:rew)?|תרגום|translation|translated(?:\s?text)?|dub(?:bing)?(?:\s?text)?`, ""),
	rule(FieldRecStatus, 10, `rec(?:ording)?[\s_-]?status|status|recorded|סטטוס(?:\sהקלטה)?`, ""),
	rule(FieldNotes, 10, `הערות|notes?|remarks?|comments?`, ""),
}

var fieldOrder = []Field{FieldRole, FieldTimecode, FieldSourceText, FieldTranslation, FieldRecStatus, FieldNotes}

// AutoDetectColumns maps each field to the first header (left to right)
// matching one of its synonyms, preferring whole-header matches. A header is
// claimed by at most one field.
func AutoDetectColumns(headers []string) ColumnMapping {
	return AutoDetectColumnsWithConfidence(headers).Mapping
}

// Detection is a column mapping plus a 0-100 confidence score.
type Detection struct {
	Mapping    ColumnMapping `json:"mapping"`
	Confidence int           `json:"confidence"`
	Detected   []Field       `json:"detected"`
}

// AutoDetectColumnsWithConfidence scores the detection: the role column
// weighs 40, source text 20 and every other field 10, so all six fields
// score 100, role plus one field lands in 50-60 and no match scores 0.
func AutoDetectColumnsWithConfidence(headers []string) Detection {
	var d Detection
	claimed := make([]bool, len(headers))
	found := map[Field]bool{}
	// whole-header matches win over headers that merely contain a synonym
	for _, loose := range []bool{false, true} {
		for _, r := range fieldRules {
			if found[r.field] {
				continue
			}
			re := r.exact
			if loose {
				re = r.loose
			}
			for i, h := range headers {
				if claimed[i] || !re.MatchString(strings.TrimSpace(h)) {
					continue
				}
				claimed[i], found[r.field] = true, true
				d.Mapping.set(r.field, h)
				d.Confidence += r.weight
				break
			}
		}
	}
	for _, f := range fieldOrder {
		if found[f] {
			d.Detected = append(d.Detected, f)
		}
	}
	return d
}

// headerScanRows is how many leading rows are considered as header candidates.
const headerScanRows = 10

// DetectHeaderRow returns the index of the first of the leading rows with a
// role header, whole-header matches first, falling back to the first
// non-empty row. It returns -1 when every row is empty.
func DetectHeaderRow(rows [][]string) int {
	role := fieldRules[0]
	for _, re := range []*regexp.Regexp{role.exact, role.loose} {
		for i := 0; i < len(rows) && i < headerScanRows; i++ {
			for _, c := range rows[i] {
				if re.MatchString(strings.TrimSpace(c)) {
					return i
				}
			}
		}
	}
	for i, r := range rows {
		if !emptyRow(r) {
			return i
		}
	}
	return -1
}

func emptyRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
