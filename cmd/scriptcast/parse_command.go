/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scriptcast/internal/domain"
	"scriptcast/internal/export"
	"scriptcast/internal/pipeline"
)

// loadEdits reads a JSON array of edits, e.g.
// [{"type":"merge","characters":["JOHNNY","JOHN"],"newName":"JOHN"}].
func loadEdits(path string) ([]pipeline.Edit, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read edits: %w", err)
	}
	var edits []pipeline.Edit
	if err := json.Unmarshal(data, &edits); err != nil {
		return nil, fmt.Errorf("parse edits %s: %w", path, err)
	}
	return edits, nil
}

// parseBatch runs the pipeline over paths and applies the optional edits file.
func parseBatch(cmd *cobra.Command, ctx *commandContext, paths []string, editsPath string) (*pipeline.Pipeline, domain.ParsedScriptBundle, error) {
	p, err := ctx.pipeline()
	if err != nil {
		return nil, domain.ParsedScriptBundle{}, err
	}
	edits, err := loadEdits(editsPath)
	if err != nil {
		return nil, domain.ParsedScriptBundle{}, err
	}
	b := p.ParseScriptFiles(cmd.Context(), readFiles(paths))
	if len(edits) > 0 {
		b = pipeline.ApplyUserEdits(b, edits)
	}
	return p, b, nil
}

var errNothingParsed = errors.New("no file could be parsed")

// batchErr fails a command whose batch has no successfully parsed file.
// Partial failures stay per-file statuses.
func batchErr(b domain.ParsedScriptBundle) error {
	for _, f := range b.Files {
		if f.Status == domain.StatusSuccess {
			return nil
		}
	}
	return errNothingParsed
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var editsPath string
	var format string

	cmd := &cobra.Command{
		Use:   "parse <files...>",
		Short: "Parse script files and list roles, groups and warnings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, b, err := parseBatch(cmd, ctx, args, editsPath)
			if err != nil {
				return err
			}
			f, err := resolveFormat(cmd, format)
			if err != nil {
				return err
			}
			if f == formatJSON {
				if err := export.WriteBundleJSON(cmd.OutOrStdout(), b); err != nil {
					return err
				}
				return batchErr(b)
			}
			renderBundle(cmd, b)
			return batchErr(b)
		},
	}
	cmd.Flags().StringVar(&editsPath, "edits", "", "JSON file with user edits (merge, rename, delete, mark_group)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table or json (default: table on a terminal)")
	return cmd
}

func renderBundle(cmd *cobra.Command, b domain.ParsedScriptBundle) {
	out := cmd.OutOrStdout()

	fileRows := make([][]string, 0, len(b.Files))
	for _, f := range b.Files {
		detail := f.ContentType
		if f.Status != domain.StatusSuccess {
			detail = f.Error
		}
		fileRows = append(fileRows, []string{f.Name, f.Status, strconv.Itoa(f.Characters), detail})
	}
	fmt.Fprintln(out, renderTable([]string{"File", "Status", "Roles", "Detail"}, fileRows, []columnAlignment{alignLeft, alignLeft, alignRight}))

	charRows := make([][]string, 0, len(b.Result.Characters))
	for _, c := range b.Result.Characters {
		flags := ""
		if c.PossibleGroup {
			flags = "group"
		}
		if len(c.CombinedRole) > 0 {
			flags = strings.TrimSpace(flags + " combined:" + strings.Join(c.CombinedRole, "+"))
		}
		charRows = append(charRows, []string{c.Name, strconv.Itoa(c.ReplicaCount), strconv.Itoa(c.FirstAppearance), c.ParentName, flags})
	}
	fmt.Fprintln(out, renderTable([]string{"Role", "Replicas", "First line", "Parent", "Flags"}, charRows, []columnAlignment{alignLeft, alignRight, alignRight}))
	fmt.Fprintf(out, "%d roles, %d replicas, %d groups, %d interactions\n",
		len(b.Result.Characters), b.Result.Metadata.TotalReplicas, len(b.Groups), len(b.Result.Interactions))

	if len(b.Result.Warnings) > 0 {
		rows := make([][]string, 0, len(b.Result.Warnings))
		for _, w := range b.Result.Warnings {
			rows = append(rows, []string{string(w.Type), w.Message})
		}
		fmt.Fprintln(out, renderTable([]string{"Warning", "Message"}, rows, nil))
	}
	for _, d := range b.Diagnostics {
		if d.Severity == domain.SeverityInfo {
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [%s] %s\n", d.Severity, d.Source, d.Message)
	}
}
