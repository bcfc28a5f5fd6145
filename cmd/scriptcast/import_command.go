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
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"scriptcast/internal/domain"
	applog "scriptcast/internal/log"
	"scriptcast/internal/storage"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var editsPath string
	var list bool

	cmd := &cobra.Command{
		Use:   "import <files...>",
		Short: "Parse script files and store roles and conflicts in the database",
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := storage.Open(cmd.Context(), cfg.Storage.Driver, cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			if list {
				imps, err := store.Imports(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(imps))
				for _, imp := range imps {
					rows = append(rows, []string{imp.ID, imp.CreatedAt.Local().Format("2006-01-02 15:04"),
						fmt.Sprint(imp.Roles), fmt.Sprint(imp.Conflicts), fmt.Sprint(len(imp.Files))})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Import", "Created", "Roles", "Conflicts", "Files"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight}))
				return nil
			}

			p, b, err := parseBatch(cmd, ctx, args, editsPath)
			if err != nil {
				return err
			}
			if err := batchErr(b); err != nil {
				return err
			}
			names := make([]string, 0, len(args))
			for _, a := range args {
				names = append(names, filepath.Base(a))
			}
			imp, err := store.SaveProjection(cmd.Context(), names, p.ConvertToDbFormat(b))
			if err != nil {
				return err
			}
			applog.WithComponent("cli").Info("import stored", slog.String("import", imp.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d roles and %d conflicts as %s\n", imp.Roles, imp.Conflicts, imp.ID)
			for _, f := range b.Files {
				if f.Status != domain.StatusSuccess {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", f.Name, f.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&editsPath, "edits", "", "JSON file with user edits applied before storing")
	cmd.Flags().BoolVar(&list, "list", false, "List stored imports instead of importing")
	return cmd
}
