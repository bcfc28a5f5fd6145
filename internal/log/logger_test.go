/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lastJSONLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	sc := bufio.NewScanner(bytes.NewReader(b))
	var last string
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

func TestInitJSONCarriesStaticAndContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Writer: &buf})

	l := WithOperation(WithComponent("pipeline"), "parse_files")
	ctx := ContextWithBatch(ContextWithFile(context.Background(), "ep01.pdf"), "b-1")
	l.InfoContext(ctx, "file parsed", slog.Int("characters", 4))

	m := lastJSONLine(t, buf.Bytes())
	if m["app"] != "scriptcast" {
		t.Fatalf("app attr = %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "pipeline" || m["op"] != "parse_files" {
		t.Fatalf("component/op mismatch: %v", m)
	}
	if m["file"] != "ep01.pdf" || m["batch"] != "b-1" {
		t.Fatalf("context attrs missing: %v", m)
	}
	if m["characters"] != float64(4) {
		t.Fatalf("record attr mismatch: %v", m["characters"])
	}
}

func TestInitWithFileWritesRotatedJSON(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "scriptcast.log")
	var console bytes.Buffer
	Init(Options{Level: "info", Format: "console", File: fpath, Writer: &console})
	WithComponent("test").Warn("disk check", slog.String("k", "v w"))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSONLine(t, b)
	if m["msg"] != "disk check" || m["k"] != "v w" {
		t.Fatalf("file record mismatch: %v", m)
	}
	line := console.String()
	if !strings.Contains(line, "WRN disk check") || !strings.Contains(line, `k="v w"`) {
		t.Fatalf("console line mismatch: %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Writer: &buf})
	L().Info("hidden")
	L().Error("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "ERR shown") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPrettyHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{level: slog.LevelDebug, w: &buf}
	l := slog.New(h).WithGroup("extract").With(slog.String("format", "pdf"))
	l.Debug("pages", slog.Int("n", 3))
	out := buf.String()
	if !strings.Contains(out, "extract.format=pdf") || !strings.Contains(out, "extract.n=3") {
		t.Fatalf("group prefix missing: %q", out)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SC_LOG_LEVEL", "warn")
	t.Setenv("SC_LOG_FORMAT", "json")
	t.Setenv("SC_LOG_SOURCE", "yes")
	t.Setenv("SC_LOG_FILE", "")
	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("SC_SOME_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARNING": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
