/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	events  []Event
	crashes []string
	ctypes  []string
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, req *http.Request) {
		var ev Event
		if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.crashes = append(r.crashes, string(b))
		r.ctypes = append(r.ctypes, req.Header.Get("Content-Type"))
		r.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (r *recorder) wait(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		ok := cond()
		r.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for upload")
}

func TestBatchParsedSendsCounters(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 2 * time.Second})
	defer c.Close()

	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}
	c.BatchParsed(BatchStats{Files: 3, Failed: 1, Roles: 7, Warnings: 2})
	c.Flush(context.Background())
	rec.wait(t, func() bool { return len(rec.events) == 1 })

	ev := rec.events[0]
	if ev.Name != EventBatchParsed || ev.TS.IsZero() || ev.OS == "" || ev.Version == "" {
		t.Fatalf("event = %+v", ev)
	}
	want := map[string]int{"files": 3, "failed": 1, "roles": 7, "warnings": 2}
	for k, v := range want {
		if ev.Counts[k] != v {
			t.Fatalf("counts[%s] = %d, want %d", k, ev.Counts[k], v)
		}
	}
}

func TestUploadCrash(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()

	// crash upload does not need an events endpoint
	if c.Enabled() {
		t.Fatalf("events should be disabled without EventsURL")
	}
	report := []byte("panic: boom\n")
	c.UploadCrash(report)
	report[0] = 'X'
	rec.wait(t, func() bool { return len(rec.crashes) == 1 })
	if rec.crashes[0] != "panic: boom\n" {
		t.Fatalf("crash body = %q", rec.crashes[0])
	}
	if !strings.HasPrefix(rec.ctypes[0], "text/plain") {
		t.Fatalf("content type = %q", rec.ctypes[0])
	}
}

func TestFromEnvAndDefaultClient(t *testing.T) {
	t.Setenv("SC_TELEMETRY_OPT_IN", "Yes")
	t.Setenv("SC_TELEMETRY_URL", " http://127.0.0.1:0 ")
	t.Setenv("SC_CRASH_UPLOAD_URL", "")
	t.Setenv("SC_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "http://127.0.0.1:0" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv = %+v", cfg)
	}
	NewDefault(cfg)
	if !Enabled() {
		t.Fatalf("default client should be enabled")
	}
	NewDefault(Config{})
	if Enabled() {
		t.Fatalf("default client should be disabled after reset")
	}

	t.Setenv("SC_TELEMETRY_TIMEOUT_MS", "nope")
	if got := FromEnv().Timeout; got != defaultTimeout {
		t.Fatalf("timeout fallback = %v", got)
	}
}

func TestDisabledClientSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	off := New(Config{EventsURL: srv.URL, CrashURL: srv.URL})
	defer off.Close()
	off.BatchParsed(BatchStats{Files: 1})
	off.UploadCrash([]byte("ignored"))

	on := New(Config{OptIn: true, EventsURL: srv.URL})
	defer on.Close()
	on.Count("", map[string]int{"files": 1})
	on.Flush(context.Background())

	var nilClient *Client
	nilClient.BatchParsed(BatchStats{})
	nilClient.UploadCrash(nil)

	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestUnreachableEndpointIsSilent(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	c.BatchParsed(BatchStats{Files: 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	time.Sleep(100 * time.Millisecond)
}
