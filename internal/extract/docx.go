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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"scriptcast/internal/domain"
	"scriptcast/internal/tabular"
)

// DOCXExtractor reads word/document.xml: paragraphs become text lines in
// document order, tables become docx-table results.
type DOCXExtractor struct {
	MaxRows int
}

func (DOCXExtractor) Format() Format       { return FormatDOCX }
func (DOCXExtractor) Extensions() []string { return []string{".docx"} }

// maxDocumentXML bounds the decompressed size of word/document.xml.
const maxDocumentXML = 64 << 20

func (e DOCXExtractor) Extract(_ context.Context, name string, data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	var body []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		body, err = io.ReadAll(io.LimitReader(rc, maxDocumentXML))
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
	}
	if body == nil {
		return nil, errors.New("docx: word/document.xml not found")
	}

	paras, tables, err := walkDocument(body)
	if err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}
	doc := &Document{Name: name, Format: FormatDOCX, Text: strings.Join(paras, "\n")}
	for i, rows := range tables {
		res, diags := tabular.BuildResult(rows, domain.SourceDocxTable, fmt.Sprintf("table %d", i+1), e.MaxRows)
		doc.Diagnostics = append(doc.Diagnostics, diags...)
		if len(res.Rows) == 0 {
			continue
		}
		if len(res.Rows) > doc.Layout.DocxTableRows {
			doc.Layout.DocxTableRows = len(res.Rows)
		}
		doc.Tables = append(doc.Tables, res)
	}
	return doc, nil
}

// walkDocument streams the WordprocessingML body. Paragraph text outside
// tables is returned line by line; each table is returned as rows of cell
// text. Nested tables are flattened into their enclosing cell.
func walkDocument(body []byte) (paras []string, tables [][][]string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		depth int // table nesting
		para  strings.Builder
		cell  strings.Builder
		row   []string
		rows  [][]string
		inT   bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
				if depth == 1 {
					rows = nil
				}
			case "tr":
				if depth == 1 {
					row = nil
				}
			case "tc":
				if depth == 1 {
					cell.Reset()
				}
			case "p":
				para.Reset()
			case "t":
				inT = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.CharData:
			if inT {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inT = false
			case "p":
				if depth == 0 {
					paras = append(paras, strings.Split(para.String(), "\n")...)
				} else {
					if cell.Len() > 0 {
						cell.WriteByte(' ')
					}
					cell.WriteString(strings.TrimSpace(para.String()))
				}
			case "tc":
				if depth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if depth == 1 {
					rows = append(rows, row)
				}
			case "tbl":
				if depth == 1 {
					tables = append(tables, rows)
				}
				depth--
			}
		}
	}
	return paras, tables, nil
}
