/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous ingestion counters and crash
// reports. Nothing leaves the machine unless SC_TELEMETRY_OPT_IN is set and an
// endpoint is configured; no script text, file names or role names are sent.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "scriptcast/internal/log"
	"scriptcast/internal/version"
)

// Config holds runtime configuration for telemetry and crash uploads.
//
// Environment variables (read by FromEnv):
// - SC_TELEMETRY_OPT_IN: "1", "true", "yes" to enable
// - SC_TELEMETRY_URL: events endpoint
// - SC_CRASH_UPLOAD_URL: crash report endpoint
// - SC_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
// - SC_TELEMETRY_DEBUG: log every send attempt
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

const defaultTimeout = 1500 * time.Millisecond

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("SC_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("SC_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("SC_CRASH_UPLOAD_URL")),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv("SC_TELEMETRY_DEBUG") != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv("SC_TELEMETRY_TIMEOUT_MS"))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Event is the wire form of one counter event. Counts is the only payload.
type Event struct {
	Name    string         `json:"name"`
	TS      time.Time      `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Counts  map[string]int `json:"counts,omitempty"`
}

// EventBatchParsed is emitted once per ParseScriptFiles call.
const EventBatchParsed = "batch_parsed"

// BatchStats are the anonymous counters of one ingestion batch.
type BatchStats struct {
	Files    int
	Failed   int
	Roles    int
	Warnings int
}

func (s BatchStats) counts() map[string]int {
	return map[string]int{"files": s.Files, "failed": s.Failed, "roles": s.Roles, "warnings": s.Warnings}
}

// Client is an async sender with a bounded queue. Send errors are dropped.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan Event
	once   sync.Once
	closed chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

func current() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// NewDefault replaces the package-level client used by BatchParsed and
// UploadCrash. The previous client is closed.
func NewDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if old != nil {
		old.Close()
	}
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan Event, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent: opt-in and an endpoint.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

func Enabled() bool { return current().Enabled() }

// Count queues a counter event. A full queue drops the event.
func (c *Client) Count(name string, counts map[string]int) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		TS:      time.Now().UTC(),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Counts:  counts,
	}
	select {
	case c.q <- ev:
	default:
		c.debug("event dropped", slog.String("name", name))
	}
}

// BatchParsed reports the counters of a finished batch.
func (c *Client) BatchParsed(s BatchStats) { c.Count(EventBatchParsed, s.counts()) }

func BatchParsed(s BatchStats) { current().BatchParsed(s) }

// Flush waits up to 500ms for queued events to be handed to the sender.
func (c *Client) Flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for len(c.q) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// Close stops the sender; queued events are discarded.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.q:
			body, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.post(c.cfg.EventsURL, "application/json", body); err != nil {
				c.debug("event send failed", slog.String("name", ev.Name), slog.Any("err", err))
				continue
			}
			c.debug("event sent", slog.String("name", ev.Name))
		}
	}
}

func (c *Client) post(url, contentType string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) debug(msg string, attrs ...any) {
	if c.cfg.DebugLogging {
		c.log.Debug(msg, attrs...)
	}
}

// UploadCrash posts a rendered crash report in the background when opted in
// and a crash endpoint is set.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	body := append([]byte(nil), report...)
	go func() {
		if err := c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", body); err != nil {
			c.debug("crash upload failed", slog.Any("err", err))
			return
		}
		c.debug("crash report uploaded")
	}()
}

func UploadCrash(report []byte) { current().UploadCrash(report) }
