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
	"reflect"
	"testing"

	"scriptcast/internal/domain"
)

func TestAutoDetectColumnsShuffledHeaders(t *testing.T) {
	headers := []string{"Notes", "Dialogue", "Rec Status", "Character", "Timecode", "תרגום"}
	got := AutoDetectColumns(headers)
	want := ColumnMapping{
		Role:        "Character",
		Timecode:    "Timecode",
		SourceText:  "Dialogue",
		Translation: "תרגום",
		RecStatus:   "Rec Status",
		Notes:       "Notes",
	}
	if got != want {
		t.Fatalf("mapping = %+v, want %+v", got, want)
	}
}

func TestAutoDetectColumnsTrimsAndPrefersFirst(t *testing.T) {
	got := AutoDetectColumns([]string{"  ROLE NAME ", "Text", "English", "דמות"})
	if got.Role != "  ROLE NAME " || got.SourceText != "Text" {
		t.Fatalf("mapping = %+v", got)
	}
	if none := AutoDetectColumns([]string{"foo", "bar"}); none.Role != "" {
		t.Fatalf("role must be empty when undetected, got %q", none.Role)
	}
}

func TestAutoDetectColumnsDescriptiveHeaders(t *testing.T) {
	headers := []string{"Line #", "Character Name (EN)", "English Text", "Hebrew Translation", "Director's notes"}
	d := AutoDetectColumnsWithConfidence(headers)
	want := ColumnMapping{
		Role:        "Character Name (EN)",
		SourceText:  "English Text",
		Translation: "Hebrew Translation",
		Notes:       "Director's notes",
	}
	if d.Mapping != want {
		t.Fatalf("mapping = %+v, want %+v", d.Mapping, want)
	}
	if d.Confidence != 80 {
		t.Fatalf("confidence = %d", d.Confidence)
	}

	// a whole-header synonym beats one that only contains it
	got := AutoDetectColumns([]string{"Translated Text", "Speaker", "Text"})
	if got.SourceText != "Text" || got.Translation != "Translated Text" {
		t.Fatalf("mapping = %+v", got)
	}
	if tc := AutoDetectColumns([]string{"Role", "Lines in English"}); tc.Timecode != "" || tc.SourceText != "Lines in English" {
		t.Fatalf("mapping = %+v", tc)
	}
}

func TestDetectHeaderRowPrefersWholeHeaders(t *testing.T) {
	rows := [][]string{
		{"Character list for episode 2"},
		{"Role", "Dialogue"},
	}
	if got := DetectHeaderRow(rows); got != 1 {
		t.Fatalf("header row = %d", got)
	}
	if got := DetectHeaderRow([][]string{{"x"}, {"Speaker (EN)", "Line"}}); got != 1 {
		t.Fatalf("loose header row = %d", got)
	}
}

func TestConfidenceBands(t *testing.T) {
	all := AutoDetectColumnsWithConfidence([]string{"Character", "Timecode", "Dialogue", "תרגום", "Status", "Notes"})
	if all.Confidence <= 80 || len(all.Detected) != 6 {
		t.Fatalf("all fields: %+v", all)
	}
	partial := AutoDetectColumnsWithConfidence([]string{"Character", "Notes", "foo"})
	if partial.Confidence < 30 || partial.Confidence > 80 {
		t.Fatalf("partial: %+v", partial)
	}
	roleless := AutoDetectColumnsWithConfidence([]string{"Timecode", "Notes", "foo"})
	if roleless.Confidence >= partial.Confidence {
		t.Fatalf("role-having mapping must outscore role-less: %d vs %d", partial.Confidence, roleless.Confidence)
	}
	if none := AutoDetectColumnsWithConfidence([]string{"a", "b"}); none.Confidence >= 30 {
		t.Fatalf("no match: %+v", none)
	}
	if empty := AutoDetectColumnsWithConfidence(nil); empty.Confidence != 0 {
		t.Fatalf("empty headers: %+v", empty)
	}
}

func TestDuplicateHeaderUsesFirstOccurrence(t *testing.T) {
	headers := []string{"Character", "Dialogue", "Dialogue"}
	res := domain.StructuredParseResult{
		Headers: headers,
		Rows: []domain.Row{
			domain.NewRow(headers, []domain.Value{domain.StringValue("JOHN"), domain.StringValue("first"), domain.StringValue("second")}),
		},
		Source: domain.SourceExcel,
	}
	lines := ParseScriptLinesFromStructuredData(res, AutoDetectColumns(headers))
	if len(lines) != 1 || lines[0].SourceText != "first" {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestEmptyRoleRows(t *testing.T) {
	headers := []string{"Character", "Dialogue"}
	res := domain.StructuredParseResult{Headers: headers, Rows: []domain.Row{
		domain.NewRow(headers, []domain.Value{domain.StringValue("JOHN"), domain.StringValue("Hi")}),
		domain.NewRow(headers, []domain.Value{domain.Null(), domain.StringValue("(music)")}),
		domain.NewRow(headers, []domain.Value{domain.StringValue("  "), domain.StringValue("...")}),
		domain.NewRow(headers, []domain.Value{domain.StringValue("MARY"), domain.Null()}),
	}}
	m := AutoDetectColumns(headers)

	skipped := ParseScriptLinesFromStructuredData(res, m)
	if len(skipped) != 2 || skipped[0].LineNumber != 1 || skipped[1].LineNumber != 2 || skipped[1].RoleName != "MARY" {
		t.Fatalf("default must skip empty roles: %+v", skipped)
	}
	if skipped[1].SourceText != "" {
		t.Fatalf("null cell must stay empty, got %q", skipped[1].SourceText)
	}

	kept := ParseScriptLinesFromStructuredData(res, m, WithSkipEmptyRole(false))
	if len(kept) != 4 || kept[1].RoleName != "" || kept[1].SourceText != "(music)" {
		t.Fatalf("empty roles must be kept: %+v", kept)
	}
}

func TestRowConversionFields(t *testing.T) {
	headers := []string{"TC", "Role", "English", "Hebrew", "Status", "Remarks"}
	res := domain.StructuredParseResult{Headers: headers, Rows: []domain.Row{
		domain.NewRow(headers, []domain.Value{domain.NumberValue(0.5), domain.StringValue("JOHN"), domain.StringValue("Hi"), domain.StringValue("היי"), domain.StringValue("Done"), domain.StringValue("loud")}),
		domain.NewRow(headers, []domain.Value{domain.StringValue("[1:02:03;12]"), domain.StringValue("MARY"), domain.Null(), domain.Null(), domain.StringValue("pending"), domain.Null()}),
		domain.NewRow(headers, []domain.Value{domain.Null(), domain.StringValue("BEN"), domain.Null(), domain.Null(), domain.StringValue("maybe"), domain.Null()}),
	}}
	lines := ParseScriptLinesFromStructuredData(res, AutoDetectColumns(headers))
	want := []domain.ScriptLineInput{
		{LineNumber: 1, Timecode: "12:00:00", RoleName: "JOHN", SourceText: "Hi", Translation: "היי", RecStatus: domain.RecRecorded, Notes: "loud"},
		{LineNumber: 2, Timecode: "01:02:03:12", RoleName: "MARY"},
		{LineNumber: 3, RoleName: "BEN", RecStatus: "maybe"},
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines =\n%+v\nwant\n%+v", lines, want)
	}
}

func TestNormalizeRecStatus(t *testing.T) {
	cases := map[string]domain.RecStatus{
		"הוקלט":          domain.RecRecorded,
		"Recorded":       domain.RecRecorded,
		"optional":       domain.RecOptional,
		"Not  Recorded":  domain.RecNotRecorded,
		"לא הוקלט":       domain.RecNotRecorded,
		"":               "",
		"Pending":        "",
		"something else": "something else",
	}
	for in, want := range cases {
		if got := NormalizeRecStatus(in); got != want {
			t.Errorf("NormalizeRecStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCellValue(t *testing.T) {
	if !CellValue("  ").IsNull() {
		t.Fatalf("blank must be null")
	}
	if f, ok := CellValue("0.25").Number(); !ok || f != 0.25 {
		t.Fatalf("0.25 -> %v %v", f, ok)
	}
	for _, s := range []string{"007", "00:01:02", "JOHN", "1e3"} {
		if CellValue(s).Kind() != domain.KindString {
			t.Errorf("%q should stay a string", s)
		}
	}
}

func TestDetectHeaderRowAndBuildResult(t *testing.T) {
	rows := [][]string{
		{"Episode 4 - dubbing sheet"},
		{"", ""},
		{"Timecode", "Character", "Dialogue", ""},
		{"00:00:01", "JOHN", "Hi", ""},
		{"", "", "", ""},
		{"00:00:02", "MARY", "Hello", "x"},
		{"00:00:03", "JOHN", "Bye", ""},
	}
	if got := DetectHeaderRow(rows); got != 2 {
		t.Fatalf("header row = %d", got)
	}
	res, diags := BuildResult(rows, domain.SourceExcel, "Sheet1", 2)
	if !reflect.DeepEqual(res.Headers, []string{"Timecode", "Character", "Dialogue", "Column 4"}) {
		t.Fatalf("headers = %q", res.Headers)
	}
	if len(res.Rows) != 2 || res.TotalRows != 3 || res.Sheet != "Sheet1" || res.Source != domain.SourceExcel {
		t.Fatalf("result = %+v", res)
	}
	if v, _ := res.Rows[1].Get("Column 4"); v.String() != "x" {
		t.Fatalf("Column 4 = %q", v.String())
	}
	if len(diags) != 1 || diags[0].Severity != domain.SeverityWarning {
		t.Fatalf("diags = %+v", diags)
	}

	if got := DetectHeaderRow([][]string{{""}, {"a", "b"}}); got != 1 {
		t.Fatalf("fallback header row = %d", got)
	}
	if got := DetectHeaderRow(nil); got != -1 {
		t.Fatalf("no rows = %d", got)
	}
	empty, _ := BuildResult(nil, domain.SourceTextTabular, "", 0)
	if empty.Headers == nil || empty.Rows == nil {
		t.Fatalf("empty result must be well-formed: %+v", empty)
	}
}

func TestSplitTextTable(t *testing.T) {
	text := "  Character\tDialogue\n\nJOHN    Hello there\nMARY\t\tHi   again\n"
	got := SplitTextTable(text)
	want := [][]string{{"Character", "Dialogue"}, {"JOHN", "Hello there"}, {"MARY", "Hi", "again"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q", got)
	}
}

func TestExtractDialogueLinesSpeakerColon(t *testing.T) {
	lines := ExtractDialogueLines("PADDINGTON: Hello!\nMR. BROWN: Welcome.\n")
	want := []domain.ScriptLineInput{
		{LineNumber: 1, RoleName: "PADDINGTON", SourceText: "Hello!"},
		{LineNumber: 2, RoleName: "MR. BROWN", SourceText: "Welcome."},
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestExtractDialogueLinesVariants(t *testing.T) {
	text := "1\n00:00:01,000 --> 00:00:02,500\nדני: שלום לכולם\n\n[00:00:05] Sarah Jane: Where are you\ngoing tonight?\nNOTE: cut this\nHe said: nothing\n\nJOHN\n    I am here.\n    Still here.\n\nGHOST\n"
	lines := ExtractDialogueLines(text)
	want := []domain.ScriptLineInput{
		{LineNumber: 1, Timecode: "00:00:01", RoleName: "דני", SourceText: "שלום לכולם"},
		{LineNumber: 2, Timecode: "00:00:05", RoleName: "Sarah Jane", SourceText: "Where are you going tonight? NOTE: cut this He said: nothing"},
		{LineNumber: 3, RoleName: "JOHN", SourceText: "I am here. Still here."},
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines =\n%+v\nwant\n%+v", lines, want)
	}
	if got := ExtractDialogueLines(""); got == nil || len(got) != 0 {
		t.Fatalf("empty input = %+v", got)
	}
}

func TestLargeSheet(t *testing.T) {
	rows := [][]string{{"Character", "Dialogue", "Timecode"}}
	for i := 0; i < 1500; i++ {
		rows = append(rows, []string{fmt.Sprintf("ROLE %d", i%40), "line", "00:00:01"})
	}
	res, _ := BuildResult(rows, domain.SourceExcel, "", 1000)
	if res.TotalRows != 1500 {
		t.Fatalf("total rows = %d", res.TotalRows)
	}
	lines := ParseScriptLinesFromStructuredData(res, AutoDetectColumns(res.Headers))
	if len(lines) != 1000 || lines[999].LineNumber != 1000 {
		t.Fatalf("got %d lines", len(lines))
	}
}
