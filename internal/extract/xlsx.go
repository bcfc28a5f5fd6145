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
	"fmt"

	"github.com/xuri/excelize/v2"

	"scriptcast/internal/domain"
	"scriptcast/internal/tabular"
)

// XLSXExtractor reads the dialogue sheet of a workbook: the first sheet whose
// header row carries a role column, else the first non-empty sheet.
type XLSXExtractor struct {
	MaxRows int
}

func (XLSXExtractor) Format() Format       { return FormatXLSX }
func (XLSXExtractor) Extensions() []string { return []string{".xlsx", ".xlsm"} }

func (e XLSXExtractor) Extract(ctx context.Context, name string, data []byte) (*Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc := &Document{Name: name, Format: FormatXLSX}
	var fallback *domain.StructuredParseResult
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// raw values keep time cells as day fractions
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			doc.warn("sheet %q: %v", sheet, err)
			continue
		}
		res, diags := tabular.BuildResult(rows, domain.SourceExcel, sheet, e.MaxRows)
		if len(res.Rows) == 0 {
			continue
		}
		if tabular.AutoDetectColumns(res.Headers).Role != "" {
			doc.Diagnostics = append(doc.Diagnostics, diags...)
			doc.Tables = append(doc.Tables, res)
			return doc, nil
		}
		if fallback == nil {
			r := res
			fallback = &r
			doc.Diagnostics = append(doc.Diagnostics, diags...)
		}
	}
	if fallback != nil {
		doc.warn("no sheet has a recognisable role column, using %q", fallback.Sheet)
		doc.Tables = append(doc.Tables, *fallback)
	} else {
		doc.warn("workbook has no data rows")
	}
	return doc, nil
}
