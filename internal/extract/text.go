/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"scriptcast/internal/domain"
	"scriptcast/internal/tabular"
)

// DecodeText converts file bytes to UTF-8. A byte-order mark selects UTF-8
// or UTF-16; otherwise valid UTF-8 is kept and anything else is read as
// Windows-1255, the legacy Hebrew code page. legacy reports the fallback.
func DecodeText(data []byte) (text string, legacy bool, err error) {
	if hasBOM(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", false, fmt.Errorf("decode: %w", err)
		}
		return string(out), false, nil
	}
	if utf8.Valid(data) {
		return string(data), false, nil
	}
	out, _, err := transform.Bytes(charmap.Windows1255.NewDecoder(), data)
	if err != nil {
		return "", false, fmt.Errorf("decode windows-1255: %w", err)
	}
	return string(out), true, nil
}

func hasBOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(b, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(b, []byte{0xFE, 0xFF})
}

// TextExtractor reads plain text scripts.
type TextExtractor struct{}

func (TextExtractor) Format() Format       { return FormatTXT }
func (TextExtractor) Extensions() []string { return []string{".txt", ".text", ".fountain", ".srt"} }

func (TextExtractor) Extract(_ context.Context, name string, data []byte) (*Document, error) {
	doc := &Document{Name: name, Format: FormatTXT}
	text, legacy, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	if legacy {
		doc.warn("not valid UTF-8, decoded as Windows-1255")
	}
	doc.Text = text
	return doc, nil
}

// CSVExtractor reads comma- or tab-separated sheets.
type CSVExtractor struct {
	Comma   rune
	MaxRows int
}

func (e CSVExtractor) Format() Format {
	if e.Comma == '\t' {
		return FormatTSV
	}
	return FormatCSV
}

func (e CSVExtractor) Extensions() []string {
	if e.Comma == '\t' {
		return []string{".tsv", ".tab"}
	}
	return []string{".csv"}
}

func (e CSVExtractor) Extract(_ context.Context, name string, data []byte) (*Document, error) {
	doc := &Document{Name: name, Format: e.Format()}
	text, legacy, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	if legacy {
		doc.warn("not valid UTF-8, decoded as Windows-1255")
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = e.Comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read %s: %w", e.Format(), err)
			}
			doc.Diagnostics = append(doc.Diagnostics, domain.Diagnostic{
				Severity: domain.SeverityWarning,
				Message:  pe.Err.Error(),
				Source:   string(e.Format()),
				Line:     pe.Line,
				Column:   pe.Column,
			})
			continue
		}
		rows = append(rows, rec)
	}
	res, diags := tabular.BuildResult(rows, domain.SourceTextTabular, "", e.MaxRows)
	doc.Diagnostics = append(doc.Diagnostics, diags...)
	if len(res.Headers) > 0 {
		doc.Tables = append(doc.Tables, res)
	}
	return doc, nil
}
