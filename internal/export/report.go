/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes a parsed batch as a JSON bundle or as a printable
// casting report.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"scriptcast/internal/domain"
	applog "scriptcast/internal/log"
	"scriptcast/internal/version"
)

// WriteBundleJSON writes b as indented JSON.
func WriteBundleJSON(w io.Writer, b domain.ParsedScriptBundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return nil
}

// ReportOptions controls the casting report. Zero values fall back to an A4
// portrait page and the generation time.
type ReportOptions struct {
	Title     string
	Generated time.Time
	// MaxConflicts limits the conflicts table; 0 prints all of them.
	MaxConflicts int
}

const (
	reportFont   = "Helvetica"
	rowHeight    = 6.0
	headerHeight = 7.0
)

// WriteCastingReportPDF renders the roles table (replicas, parent role) and
// the conflicts table of proj, plus a file summary taken from b, to outPath.
// Text is mapped to cp1252; characters outside it (Hebrew names) print as
// "?" because only the built-in core fonts are used.
func WriteCastingReportPDF(outPath string, b domain.ParsedScriptBundle, proj domain.DbProjection, opt ReportOptions) error {
	l := applog.WithOperation(applog.WithComponent("export"), "casting_report")
	if opt.Title == "" {
		opt.Title = "Casting report"
	}
	if opt.Generated.IsZero() {
		opt.Generated = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(opt.Title, true)
	pdf.SetAuthor("ScriptCast "+version.String(), true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(reportFont, "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(reportFont, "B", 16)
	pdf.CellFormat(0, 10, tr(opt.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(reportFont, "", 9)
	meta := fmt.Sprintf("%s  |  %d roles  |  %d replicas  |  %d conflicts",
		opt.Generated.Format("2006-01-02 15:04"), len(proj.Roles), b.Result.Metadata.TotalReplicas, len(proj.Conflicts))
	pdf.CellFormat(0, 6, tr(meta), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(b.Files) > 0 {
		section(pdf, tr, "Files")
		rows := make([][]string, 0, len(b.Files))
		for _, f := range b.Files {
			detail := f.ContentType
			if f.Status != domain.StatusSuccess {
				detail = f.Error
			}
			rows = append(rows, []string{f.Name, string(f.Status), strconv.Itoa(f.Characters), detail})
		}
		table(pdf, tr, []string{"File", "Status", "Roles", "Detail"}, []float64{60, 20, 15, 85}, rows)
	}

	section(pdf, tr, "Roles")
	rows := make([][]string, 0, len(proj.Roles))
	for i, r := range proj.Roles {
		name := r.RoleName
		if r.ParentRoleID != "" {
			name = "  " + name
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), name, strconv.Itoa(r.ReplicasNeeded), r.ParentRoleID})
	}
	table(pdf, tr, []string{"#", "Role", "Replicas", "Parent"}, []float64{12, 88, 25, 55}, rows)

	conflicts := proj.Conflicts
	if opt.MaxConflicts > 0 && len(conflicts) > opt.MaxConflicts {
		conflicts = conflicts[:opt.MaxConflicts]
	}
	if len(conflicts) > 0 {
		section(pdf, tr, "Conflicts")
		rows = rows[:0]
		for _, c := range conflicts {
			rows = append(rows, []string{c.RoleNameA, c.RoleNameB, c.SceneReference})
		}
		table(pdf, tr, []string{"Role A", "Role B", "Scene"}, []float64{55, 55, 70}, rows)
	}

	if ws := b.Result.Warnings; len(ws) > 0 {
		section(pdf, tr, "Warnings")
		pdf.SetFont(reportFont, "", 9)
		for _, w := range ws {
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("[%s] %s", w.Type, w.Message)), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	l.Info("report written", slog.String("path", outPath), slog.Int("roles", len(proj.Roles)))
	return nil
}

func section(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.Ln(3)
	pdf.SetFont(reportFont, "B", 12)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
}

// table draws a simple grid; the header row repeats after page breaks.
func table(pdf *gofpdf.Fpdf, tr func(string) string, head []string, widths []float64, rows [][]string) {
	header := func() {
		pdf.SetFont(reportFont, "B", 9)
		pdf.SetFillColor(225, 225, 225)
		for i, h := range head {
			pdf.CellFormat(widths[i], headerHeight, tr(h), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(reportFont, "", 9)
	}
	header()
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, r := range rows {
		if pdf.GetY()+rowHeight > pageH-bottom {
			pdf.AddPage()
			header()
		}
		for i, cell := range r {
			pdf.CellFormat(widths[i], rowHeight, tr(clip(pdf, cell, widths[i]-2)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// clip shortens s with an ellipsis so it fits into width.
func clip(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return strings.TrimSpace(string(r)) + "..."
}
