/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriptcast/internal/domain"
)

const officeScene = `INT. OFFICE - DAY

          JOHN
     Morning.

          SARAH
     Hi John.

          JOHN
     Coffee?
`

func setupCLI(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("SC_CONFIG", filepath.Join(base, "config.yaml"))
	t.Setenv("SC_STORAGE_DRIVER", "")
	t.Setenv("SC_STORAGE_DSN", filepath.Join(base, "db", "scriptcast.sqlite"))
	t.Setenv("SC_TELEMETRY_OPT_IN", "")
	t.Setenv("SC_LOG_LEVEL", "error")
	return base
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	setupCLI(t)
	out, _, err := runCLI(t, "version")
	if err != nil || !strings.HasPrefix(out, "scriptcast ") {
		t.Fatalf("version: %q, %v", out, err)
	}
}

func TestParseCommandJSON(t *testing.T) {
	base := setupCLI(t)
	script := writeFile(t, base, "office.txt", officeScene)
	out, _, err := runCLI(t, "parse", "--format", "json", script)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var b domain.ParsedScriptBundle
	if err := json.Unmarshal([]byte(out), &b); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(b.Result.Characters) != 2 || b.Result.Characters[0].Name != "JOHN" || b.Result.Characters[0].ReplicaCount != 2 {
		t.Fatalf("characters = %+v", b.Result.Characters)
	}
}

func TestParseCommandTableWithEdits(t *testing.T) {
	base := setupCLI(t)
	script := writeFile(t, base, "office.txt", officeScene)
	edits := writeFile(t, base, "edits.json", `[{"type":"rename","characters":["Sarah"],"newName":"SARA"}]`)
	out, _, err := runCLI(t, "parse", "--format", "table", "--edits", edits, script)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(out, "SARA ") || strings.Contains(out, "SARAH") {
		t.Fatalf("rename not applied:\n%s", out)
	}
	if !strings.Contains(out, "2 roles, 3 replicas") {
		t.Fatalf("summary missing:\n%s", out)
	}
}

func TestParseCommandRejectsUnknownFormat(t *testing.T) {
	base := setupCLI(t)
	script := writeFile(t, base, "office.txt", officeScene)
	if _, _, err := runCLI(t, "parse", "--format", "xml", script); err == nil {
		t.Fatalf("expected error")
	}
	if _, _, err := runCLI(t, "parse", "--format", "json", filepath.Join(base, "missing.txt")); err == nil {
		t.Fatalf("expected error when no file could be parsed")
	}
}

func TestParseCommandKeepsBatchWithUnreadableFile(t *testing.T) {
	base := setupCLI(t)
	script := writeFile(t, base, "office.txt", officeScene)
	out, _, err := runCLI(t, "parse", "--format", "json", filepath.Join(base, "missing.txt"), script)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var b domain.ParsedScriptBundle
	if err := json.Unmarshal([]byte(out), &b); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(b.Files) != 2 {
		t.Fatalf("files = %+v", b.Files)
	}
	if f := b.Files[0]; f.Name != "missing.txt" || f.Status != domain.StatusError || !strings.Contains(f.Error, "read missing.txt") {
		t.Fatalf("missing.txt status = %+v", f)
	}
	if b.Files[1].Status != domain.StatusSuccess || len(b.Result.Characters) != 2 {
		t.Fatalf("bundle = %+v", b)
	}
}

func TestColumnsCommand(t *testing.T) {
	base := setupCLI(t)
	sheet := writeFile(t, base, "cast.csv", "Character,Dialogue,Timecode\nJOHN,Hello,00:00:01\nMARY,Hi,00:00:02\n")
	out, _, err := runCLI(t, "columns", "--format", "json", sheet)
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	var reports []columnsReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(reports) != 1 || reports[0].Detection.Mapping.Role != "Character" || reports[0].Lines != 2 {
		t.Fatalf("reports = %+v", reports)
	}
}

func TestImportCommandStoresAndLists(t *testing.T) {
	base := setupCLI(t)
	script := writeFile(t, base, "office.txt", officeScene)
	out, _, err := runCLI(t, "import", script)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 2 roles and 1 conflicts") {
		t.Fatalf("import output: %q", out)
	}
	out, _, err = runCLI(t, "import", "--list")
	if err != nil {
		t.Fatalf("import --list: %v", err)
	}
	if !strings.Contains(out, "Import") || strings.Count(out, "\n") < 4 {
		t.Fatalf("list output:\n%s", out)
	}
}

func TestReportCommand(t *testing.T) {
	base := setupCLI(t)
	script := writeFile(t, base, "office.txt", officeScene)
	target := filepath.Join(base, "out", "cast.pdf")
	if _, _, err := runCLI(t, "report", script); err == nil {
		t.Fatalf("expected error without --output")
	}
	if _, _, err := runCLI(t, "report", "-o", target, script); err != nil {
		t.Fatalf("report: %v", err)
	}
	if st, err := os.Stat(target); err != nil || st.Size() == 0 {
		t.Fatalf("report file: %v", err)
	}
}
