/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash contains panics: Recover ends the CLI with a report,
// Guard turns a panic inside one unit of work into an error.
package crash

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "scriptcast/internal/log"
	"scriptcast/internal/telemetry"
	"scriptcast/internal/version"
)

// ExitCode is the process status after a recovered panic.
const ExitCode = 2

// exitFn is swapped in tests.
var exitFn = os.Exit

// ErrPanic is wrapped by errors returned from Guard.
var ErrPanic = errors.New("panic")

// Report describes one unrecovered panic.
type Report struct {
	Time    time.Time
	Version string
	Args    []string
	Panic   any
	Stack   []byte
}

func newReport(v any, stack []byte) Report {
	return Report{Time: time.Now(), Version: version.String(), Args: os.Args, Panic: v, Stack: stack}
}

// Bytes renders the report as plain text. Arguments are included because
// they name the script files of the failed run.
func (r Report) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintln(&b, "ScriptCast Crash Report")
	fmt.Fprintf(&b, "Time:    %s\n", r.Time.Format(time.RFC3339))
	fmt.Fprintf(&b, "Version: %s (%s/%s, %s)\n", r.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	if len(r.Args) > 0 {
		fmt.Fprintf(&b, "Command: %s\n", strings.Join(r.Args, " "))
	}
	fmt.Fprintf(&b, "\nPanic: %v\n\n%s\n", r.Panic, r.Stack)
	return b.Bytes()
}

// Save writes the report as crash-<stamp>.log under dir, os.TempDir when
// empty, and returns the path.
func (r Report) Save(dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("crash dir: %w", err)
	}
	path := filepath.Join(dir, "crash-"+r.Time.Format("20060102-150405")+".log")
	if err := os.WriteFile(path, r.Bytes(), 0o644); err != nil {
		return path, fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Recover captures a panic, logs it, saves a Report into reportDir, hands it
// to telemetry and exits with ExitCode.
//
// Usage: defer crash.Recover(dir)
func Recover(reportDir string) {
	v := recover()
	if v == nil {
		return
	}
	l := applog.WithComponent("crash")
	rep := newReport(v, debug.Stack())
	l.Error("panic recovered", slog.Any("panic", v), slog.String("stack", string(rep.Stack)))

	path, err := rep.Save(reportDir)
	if err != nil {
		l.Error("crash report not saved", slog.Any("err", err))
		fmt.Fprintf(os.Stderr, "scriptcast %s crashed: %v\n", rep.Version, v)
	} else {
		fmt.Fprintf(os.Stderr, "scriptcast %s crashed: %v\nreport: %s\n", rep.Version, v, path)
	}
	telemetry.UploadCrash(rep.Bytes())
	exitFn(ExitCode)
}

// Guard runs fn and converts a panic into an error wrapping ErrPanic.
// The stack is logged, not returned.
func Guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			applog.WithComponent("crash").Error("panic contained",
				slog.String("unit", name), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: %w: %v", name, ErrPanic, r)
		}
	}()
	return fn()
}
