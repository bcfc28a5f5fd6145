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
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"scriptcast/internal/domain"
	"scriptcast/internal/tabular"
)

// PDF layout constants, in points.
const (
	rowTolerance = 3.0
	columnGap    = 30.0
	// wordGap is the fraction of the font size treated as a word break when
	// no space glyph is present.
	wordGap = 0.15
	// charWidth approximates one monospaced column as a fraction of the font size.
	charWidth = 0.6
)

// PDFExtractor rebuilds page text from positioned glyphs. Leading
// indentation is reproduced from the glyph X offset so screenplay centering
// survives, and wide gaps become cell breaks so aligned tables can be
// detected.
type PDFExtractor struct {
	MaxPages int
	MaxRows  int
}

func (PDFExtractor) Format() Format       { return FormatPDF }
func (PDFExtractor) Extensions() []string { return []string{".pdf"} }

type pdfLine struct {
	text  string
	cells []string
}

func (e PDFExtractor) Extract(ctx context.Context, name string, data []byte) (*Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	doc := &Document{Name: name, Format: FormatPDF}
	n := r.NumPage()
	doc.Layout.Pages = n
	if e.MaxPages > 0 && n > e.MaxPages {
		doc.warn("%d pages, only the first %d were read", n, e.MaxPages)
		n = e.MaxPages
	}

	var lines []pdfLine
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		lines = append(lines, layoutPage(p.Content().Text)...)
	}

	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.text)
		sb.WriteByte('\n')
	}
	doc.Text = sb.String()
	if strings.TrimSpace(doc.Text) == "" {
		doc.warn("no extractable text (scanned pdf?)")
	}

	cols, rows := columnMetrics(lines)
	doc.Layout.PDFColumns, doc.Layout.PDFRows = cols, rows
	if cols >= 2 {
		var table [][]string
		for _, l := range lines {
			if len(l.cells) == cols {
				table = append(table, l.cells)
			}
		}
		res, diags := tabular.BuildResult(table, domain.SourcePDFTable, "", e.MaxRows)
		doc.Diagnostics = append(doc.Diagnostics, diags...)
		if len(res.Rows) > 0 {
			doc.Tables = append(doc.Tables, res)
		}
	}
	return doc, nil
}

// layoutPage groups glyphs into rows by baseline (top to bottom) and renders
// each row with indentation relative to the leftmost glyph on the page.
func layoutPage(glyphs []pdf.Text) []pdfLine {
	var ts []pdf.Text
	left := math.MaxFloat64
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		ts = append(ts, g)
		if strings.TrimSpace(g.S) != "" && g.X < left {
			left = g.X
		}
	}
	if len(ts) == 0 {
		return nil
	}

	type row struct {
		y  float64
		gs []pdf.Text
	}
	var rows []*row
	for _, g := range ts {
		var hit *row
		for _, r := range rows {
			if math.Abs(r.y-g.Y) <= rowTolerance {
				hit = r
				break
			}
		}
		if hit == nil {
			hit = &row{y: g.Y}
			rows = append(rows, hit)
		}
		hit.gs = append(hit.gs, g)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	out := make([]pdfLine, 0, len(rows))
	for _, r := range rows {
		sort.SliceStable(r.gs, func(i, j int) bool { return r.gs[i].X < r.gs[j].X })
		out = append(out, renderRow(r.gs, left))
	}
	return out
}

func renderRow(gs []pdf.Text, left float64) pdfLine {
	var (
		cells []string
		cur   strings.Builder
		end   = math.Inf(-1)
		first = true
		line  strings.Builder
	)
	for _, g := range gs {
		blank := strings.TrimSpace(g.S) == ""
		if first && blank {
			continue
		}
		if first {
			fs := g.FontSize
			if fs <= 0 {
				fs = 12
			}
			indent := int(math.Round((g.X - left) / (fs * charWidth)))
			line.WriteString(strings.Repeat(" ", max(indent, 0)))
			first = false
		} else if !blank {
			gap := g.X - end
			switch {
			case gap > columnGap:
				cells = append(cells, strings.TrimSpace(cur.String()))
				cur.Reset()
				line.WriteString("   ")
			case gap > g.FontSize*wordGap && !strings.HasSuffix(line.String(), " "):
				cur.WriteByte(' ')
				line.WriteByte(' ')
			}
		}
		if blank {
			if !strings.HasSuffix(line.String(), " ") {
				cur.WriteByte(' ')
				line.WriteByte(' ')
			}
		} else {
			cur.WriteString(g.S)
			line.WriteString(g.S)
		}
		if e := g.X + g.W; e > end {
			end = e
		}
	}
	cells = append(cells, strings.TrimSpace(cur.String()))
	return pdfLine{text: strings.TrimRight(line.String(), " "), cells: cells}
}

// columnMetrics returns the most common cell count among multi-cell rows and
// how many rows have it.
func columnMetrics(lines []pdfLine) (cols, rows int) {
	counts := map[int]int{}
	for _, l := range lines {
		if len(l.cells) >= 2 {
			counts[len(l.cells)]++
		}
	}
	for c, n := range counts {
		if n > rows || (n == rows && c > cols) {
			cols, rows = c, n
		}
	}
	return cols, rows
}
