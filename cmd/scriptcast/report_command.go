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
	"strings"

	"github.com/spf13/cobra"

	"scriptcast/internal/export"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var editsPath string
	var outPath string
	var title string

	cmd := &cobra.Command{
		Use:   "report <files...>",
		Short: "Write a PDF casting report for script files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outPath) == "" {
				return fmt.Errorf("--output is required")
			}
			p, b, err := parseBatch(cmd, ctx, args, editsPath)
			if err != nil {
				return err
			}
			if err := batchErr(b); err != nil {
				return err
			}
			if err := export.WriteCastingReportPDF(outPath, b, p.ConvertToDbFormat(b), export.ReportOptions{Title: title}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "PDF file to write")
	cmd.Flags().StringVar(&editsPath, "edits", "", "JSON file with user edits applied before reporting")
	cmd.Flags().StringVar(&title, "title", "", "Report title")
	return cmd
}
