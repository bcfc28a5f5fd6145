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
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scriptcast/internal/config"
	applog "scriptcast/internal/log"
	"scriptcast/internal/pipeline"
	"scriptcast/internal/telemetry"
)

type commandContext struct {
	configFlag  *string
	workersFlag *int

	configOnce sync.Once
	config     config.AppConfig
	configErr  error
}

func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if *c.workersFlag > 0 {
			cfg.Pipeline.Workers = *c.workersFlag
		}
		applog.Init(applog.Options{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.Source,
			File:      cfg.Logging.File,
		})
		tcfg := telemetry.FromEnv()
		tcfg.OptIn = cfg.General.TelemetryOptIn
		telemetry.NewDefault(tcfg)
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) pipeline() (*pipeline.Pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg.Pipeline), nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var workersFlag int
	ctx := &commandContext{configFlag: &configFlag, workersFlag: &workersFlag}

	rootCmd := &cobra.Command{
		Use:           "scriptcast",
		Short:         "Extract cast roles, replica counts and scene conflicts from dubbing scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().IntVar(&workersFlag, "workers", 0, "Parse files concurrently with this many workers")

	rootCmd.AddCommand(newParseCommand(ctx))
	rootCmd.AddCommand(newColumnsCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// readFiles loads every path. A file that cannot be read is kept with its
// error so the pipeline reports it like any other failed file.
func readFiles(paths []string) []pipeline.File {
	l := applog.WithComponent("cli")
	files := make([]pipeline.File, 0, len(paths))
	for _, p := range paths {
		f := pipeline.File{Name: filepath.Base(p)}
		data, err := os.ReadFile(p)
		if err != nil {
			l.Warn("file not readable", slog.String("path", p), slog.Any("err", err))
			f.Err = fmt.Errorf("read %s: %w", f.Name, err)
		}
		f.Data = data
		files = append(files, f)
	}
	l.Debug("files loaded", slog.Int("count", len(files)))
	return files
}
