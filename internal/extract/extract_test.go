/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"scriptcast/internal/domain"
)

func TestRegistryResolvesByExtension(t *testing.T) {
	r := DefaultRegistry(DefaultLimits())
	for name, want := range map[string]Format{
		"a.TXT": FormatTXT, "b.csv": FormatCSV, "c.tsv": FormatTSV,
		"d.xlsx": FormatXLSX, "e.Pdf": FormatPDF, "f.docx": FormatDOCX,
	} {
		e, err := r.For(name)
		if err != nil || e.Format() != want {
			t.Errorf("For(%q) = %v, %v; want %s", name, e, err, want)
		}
	}
	for _, name := range []string{"legacy.doc", "noext", "x.rtf"} {
		if _, err := r.For(name); !errors.Is(err, ErrUnsupported) {
			t.Errorf("For(%q) err = %v, want ErrUnsupported", name, err)
		}
	}
	if _, err := r.Extract(context.Background(), "script.doc", nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Extract .doc err = %v", err)
	}
}

func TestDecodeText(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("שלום JOHN")
	if err != nil {
		t.Fatal(err)
	}
	legacyHebrew, err := charmap.Windows1255.NewEncoder().String("דני: שלום")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name   string
		in     []byte
		want   string
		legacy bool
	}{
		{"utf8", []byte("JOHN\n"), "JOHN\n", false},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "JOHN"...), "JOHN", false},
		{"utf16 bom", []byte(utf16), "שלום JOHN", false},
		{"windows-1255", []byte(legacyHebrew), "דני: שלום", true},
	}
	for _, c := range cases {
		got, legacy, err := DecodeText(c.in)
		if err != nil || got != c.want || legacy != c.legacy {
			t.Errorf("%s: got %q legacy=%v err=%v", c.name, got, legacy, err)
		}
	}
}

func TestTextExtractorWarnsOnLegacyEncoding(t *testing.T) {
	raw, _ := charmap.Windows1255.NewEncoder().String("דני: שלום\n")
	doc, err := TextExtractor{}.Extract(context.Background(), "he.txt", []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Text != "דני: שלום\n" || len(doc.Warnings) != 1 {
		t.Fatalf("doc = %+v", doc)
	}
}

func TestCSVExtractor(t *testing.T) {
	data := "\xEF\xBB\xBFCharacter,Dialogue,Timecode\nJOHN,\"Hello, you\",00:00:01\n,,\nMARY,Hi,0.5\n"
	doc, err := CSVExtractor{Comma: ',', MaxRows: 1000}.Extract(context.Background(), "s.csv", []byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("tables = %+v", doc.Tables)
	}
	tbl := doc.Tables[0]
	if tbl.Headers[0] != "Character" || len(tbl.Rows) != 2 || tbl.Source != domain.SourceTextTabular {
		t.Fatalf("table = %+v", tbl)
	}
	if v, _ := tbl.Rows[0].Get("Dialogue"); v.String() != "Hello, you" {
		t.Fatalf("quoted cell = %q", v.String())
	}
	if v, _ := tbl.Rows[1].Get("Timecode"); v.Kind() != domain.KindNumber {
		t.Fatalf("numeric cell kind = %v", v.Kind())
	}

	tsv, err := CSVExtractor{Comma: '\t'}.Extract(context.Background(), "s.tsv", []byte("Role\tText\nJOHN\tHi\n"))
	if err != nil || len(tsv.Tables) != 1 || tsv.Format != FormatTSV {
		t.Fatalf("tsv = %+v, %v", tsv, err)
	}
}

func TestXLSXExtractorPicksDialogueSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"Project notes"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Dialogue"); err != nil {
		t.Fatal(err)
	}
	rows := [][]any{
		{"Episode 1"},
		{"Character", "Dialogue", "Status"},
		{"JOHN", "Hello", "recorded"},
		{"MARY", "Hi", "optional"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Dialogue", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	doc, err := XLSXExtractor{MaxRows: 1000}.Extract(context.Background(), "book.xlsx", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("tables = %+v", doc.Tables)
	}
	tbl := doc.Tables[0]
	if tbl.Sheet != "Dialogue" || tbl.Source != domain.SourceExcel || len(tbl.Rows) != 2 {
		t.Fatalf("table = %+v", tbl)
	}
	if v, _ := tbl.Rows[1].Get("Character"); v.String() != "MARY" {
		t.Fatalf("row 2 role = %q", v.String())
	}
	if _, err := (XLSXExtractor{}).Extract(context.Background(), "bad.xlsx", []byte("not a zip")); err == nil {
		t.Fatalf("corrupt workbook must fail")
	}
}

func docxBytes(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func para(s string) string { return `<w:p><w:r><w:t xml:space="preserve">` + s + `</w:t></w:r></w:p>` }

func cellRow(cells ...string) string {
	var b strings.Builder
	b.WriteString("<w:tr>")
	for _, c := range cells {
		b.WriteString("<w:tc>" + para(c) + "</w:tc>")
	}
	b.WriteString("</w:tr>")
	return b.String()
}

func TestDOCXExtractor(t *testing.T) {
	body := para("INT. HOUSE - DAY") +
		`<w:p><w:r><w:tab/><w:t>JOHN</w:t></w:r></w:p>` +
		"<w:tbl>" + cellRow("Character", "Dialogue") + cellRow("JOHN", "Hi") + cellRow("MARY", "Hello") + "</w:tbl>" +
		para("THE END")
	doc, err := DOCXExtractor{MaxRows: 1000}.Extract(context.Background(), "s.docx", docxBytes(t, body))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Text != "INT. HOUSE - DAY\n\tJOHN\nTHE END" {
		t.Fatalf("text = %q", doc.Text)
	}
	if len(doc.Tables) != 1 || doc.Layout.DocxTableRows != 2 || doc.Tables[0].Source != domain.SourceDocxTable {
		t.Fatalf("tables = %+v layout = %+v", doc.Tables, doc.Layout)
	}
	if !reflectEqual(doc.Tables[0].Headers, []string{"Character", "Dialogue"}) {
		t.Fatalf("headers = %q", doc.Tables[0].Headers)
	}

	var missing bytes.Buffer
	zw := zip.NewWriter(&missing)
	_ = zw.Close()
	if _, err := (DOCXExtractor{}).Extract(context.Background(), "empty.docx", missing.Bytes()); err == nil {
		t.Fatalf("docx without document.xml must fail")
	}
}

func reflectEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPDFExtractorKeepsIndentation(t *testing.T) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.AddPage()
	pdf.SetFont("Courier", "", 12)
	pdf.Text(108, 100, "INT. HOUSE - DAY")
	pdf.Text(266, 140, "JOHN")
	pdf.Text(180, 155, "Hello there.")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}

	doc, err := PDFExtractor{MaxPages: 50, MaxRows: 1000}.Extract(context.Background(), "s.pdf", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(doc.Text, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if strings.TrimSpace(lines[0]) != "INT. HOUSE - DAY" || strings.TrimSpace(lines[1]) != "JOHN" {
		t.Fatalf("lines = %q", lines)
	}
	indent := func(s string) int { return len(s) - len(strings.TrimLeft(s, " ")) }
	if indent(lines[0]) != 0 || indent(lines[1]) <= indent(lines[2]) || indent(lines[2]) == 0 {
		t.Fatalf("indentation lost: %q", lines)
	}
	if doc.Layout.Pages != 1 {
		t.Fatalf("layout = %+v", doc.Layout)
	}
}

func TestColumnMetrics(t *testing.T) {
	l := layoutPage(nil)
	if l != nil {
		t.Fatalf("empty page = %+v", l)
	}
	cols, rows := columnMetrics([]pdfLine{
		{cells: []string{"a", "b", "c"}},
		{cells: []string{"a", "b", "c"}},
		{cells: []string{"a", "b"}},
		{cells: []string{"x"}},
	})
	if cols != 3 || rows != 2 {
		t.Fatalf("metrics = %d/%d", cols, rows)
	}
}
