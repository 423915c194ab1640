/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in usage events about parsed and stored scripts
// and uploads crash reports. Events carry counts and outcomes only, never
// script text or names.
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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "callscript/internal/log"
	"callscript/internal/version"
)

// Event names.
const (
	ScriptChecked = "script_checked"
	ScriptSaved   = "script_saved"
	ScriptStored  = "script_stored"
	ScriptDeleted = "script_deleted"
)

// Config is read from the environment by FromEnv:
//   - CSP_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" enables sending
//   - CSP_TELEMETRY_URL: endpoint that receives JSON events
//   - CSP_CRASH_UPLOAD_URL: endpoint that receives crash reports
//   - CSP_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - CSP_TELEMETRY_DEBUG: log send attempts
//
// Nothing is sent unless OptIn is set and the matching URL is present.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("CSP_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("CSP_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("CSP_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("CSP_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("CSP_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Payload is the JSON body of one event.
type Payload struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events and sends them from one goroutine. A full queue drops events.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan Payload
	pending atomic.Int64
	once    sync.Once
	closed  chan struct{}
}

// New starts a client; call Close to stop its sender.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan Payload, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues an event. It never blocks.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	p := Payload{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		p.Props = make(map[string]any, len(props))
		for k, v := range props {
			p.Props[k] = v
		}
	}
	c.pending.Add(1)
	select {
	case c.q <- p:
	default:
		c.pending.Add(-1)
	}
}

// Flush waits until queued events were sent or ctx is done.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops the sender goroutine. Queued events are dropped.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case p := <-c.q:
			c.send(p)
			c.pending.Add(-1)
		}
	}
}

func (c *Client) send(p Payload) {
	buf, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.post(context.Background(), c.cfg.EventsURL, "application/json", buf); err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.String("event", p.Name), slog.Any("err", err))
		}
		return
	}
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry event sent", slog.String("event", p.Name))
	}
}

func (c *Client) post(ctx context.Context, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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

// UploadCrash posts a crash report and waits for the result, since the
// process exits right after a crash. It is a no-op without opt-in.
func (c *Client) UploadCrash(ctx context.Context, report []byte) error {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return nil
	}
	err := c.post(ctx, c.cfg.CrashURL, "text/plain; charset=utf-8", report)
	if c.cfg.DebugLogging {
		c.log.Debug("crash upload", slog.Any("err", err))
	}
	return err
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// InitDefault installs the package-level client from the environment on first use.
func InitDefault() { defaultOnce.Do(func() { defaultClient = New(FromEnv()) }) }

// NewDefault replaces the package-level client.
func NewDefault(cfg Config) {
	defaultOnce.Do(func() {})
	if defaultClient != nil {
		defaultClient.Close()
	}
	defaultClient = New(cfg)
}

func Enabled() bool { InitDefault(); return defaultClient.Enabled() }

// Event queues an event on the package-level client.
func Event(name string, props map[string]any) { InitDefault(); defaultClient.Event(name, props) }

// Flush drains the package-level client.
func Flush(ctx context.Context) { InitDefault(); defaultClient.Flush(ctx) }

// UploadCrash posts a report with the package-level client.
func UploadCrash(ctx context.Context, report []byte) error {
	InitDefault()
	return defaultClient.UploadCrash(ctx, report)
}
