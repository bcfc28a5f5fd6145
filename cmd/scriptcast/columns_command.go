/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scriptcast/internal/domain"
	"scriptcast/internal/tabular"
	"scriptcast/internal/validate"
)

// columnsReport is the JSON shape of the columns command, one per table.
type columnsReport struct {
	Source      string              `json:"source"`
	Sheet       string              `json:"sheetName,omitempty"`
	Headers     []string            `json:"headers"`
	Rows        int                 `json:"rows"`
	Detection   tabular.Detection   `json:"detection"`
	Lines       int                 `json:"validLines"`
	Rejected    int                 `json:"rejectedLines"`
	Diagnostics []domain.Diagnostic `json:"diagnostics"`
}

func newColumnsCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "columns <file>",
		Short: "Show the detected column mapping of a tabular script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p, err := ctx.pipeline()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			doc, err := p.Registry().Extract(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			tables := doc.Tables
			if len(tables) == 0 && strings.TrimSpace(doc.Text) != "" {
				tbl, _ := tabular.BuildResult(tabular.SplitTextTable(doc.Text), domain.SourceTextTabular, "", cfg.Pipeline.MaxTabularRows)
				tables = append(tables, tbl)
			}
			if len(tables) == 0 {
				return fmt.Errorf("%s: no tables found", args[0])
			}

			reports := make([]columnsReport, 0, len(tables))
			for _, tbl := range tables {
				det := tabular.AutoDetectColumnsWithConfidence(tbl.Headers)
				r := columnsReport{
					Source:      string(tbl.Source),
					Sheet:       tbl.Sheet,
					Headers:     tbl.Headers,
					Rows:        len(tbl.Rows),
					Detection:   det,
					Diagnostics: validate.ValidateColumnMapping(det.Mapping, tbl.Headers),
				}
				if det.Mapping.Role != "" {
					vr := validate.ValidateScriptLines(tabular.ParseScriptLinesFromStructuredData(tbl, det.Mapping))
					r.Lines, r.Rejected = len(vr.Data), len(vr.Rejected)
				}
				reports = append(reports, r)
			}

			f, err := resolveFormat(cmd, format)
			if err != nil {
				return err
			}
			if f == formatJSON {
				return writeJSON(cmd, reports)
			}
			out := cmd.OutOrStdout()
			for _, r := range reports {
				title := r.Source
				if r.Sheet != "" {
					title += " / " + r.Sheet
				}
				fmt.Fprintf(out, "%s: %d rows, confidence %d\n", title, r.Rows, r.Detection.Confidence)
				rows := make([][]string, 0, len(r.Detection.Mapping.Columns()))
				for _, fc := range r.Detection.Mapping.Columns() {
					rows = append(rows, []string{string(fc.Field), fc.Header})
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Column"}, rows, nil))
				if r.Detection.Mapping.Role != "" {
					fmt.Fprintf(out, "%s valid lines, %s rejected\n", strconv.Itoa(r.Lines), strconv.Itoa(r.Rejected))
				}
				for _, d := range r.Diagnostics {
					fmt.Fprintf(out, "%s: %s\n", d.Severity, d.Message)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table or json (default: table on a terminal)")
	return cmd
}
