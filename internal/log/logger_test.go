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
	"sync"
	"testing"
	"time"
)

func TestInitWritesJSONFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "callscript.log")
	var console bytes.Buffer
	install(Options{Level: "debug", Format: "json", File: fpath}, &console)

	l := WithOperation(WithComponent("testcomp"), "op1")
	l.Info("hello world", slog.String("k", "v"))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log %q: %v", last, err)
	}
	for k, want := range map[string]string{"app": "callscript", "component": "testcomp", "op": "op1", "msg": "hello world", "k": "v"} {
		if m[k] != want {
			t.Fatalf("%s = %v, want %q", k, m[k], want)
		}
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if !strings.Contains(console.String(), `"msg":"hello world"`) {
		t.Fatalf("console sink missing record: %q", console.String())
	}
}

func TestContextAttrsAreAppended(t *testing.T) {
	var buf bytes.Buffer
	l := install(Options{Level: "info", Format: "json"}, &buf)
	ctx := ContextWith(context.Background(), slog.String("workspace", "acme"))
	ctx = ContextWith(ctx, slog.String("req", "r-1"))
	l.InfoContext(ctx, "parsed")

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["workspace"] != "acme" || m["req"] != "r-1" {
		t.Fatalf("context attrs missing: %v", m)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CSP_LOG_LEVEL", "warn")
	t.Setenv("CSP_LOG_FORMAT", "")
	t.Setenv("CSP_LOG_SOURCE", "true")
	t.Setenv("CSP_LOG_FILE", "")

	old := stderrIsTerminal
	t.Cleanup(func() { stderrIsTerminal = old })

	stderrIsTerminal = func() bool { return false }
	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	stderrIsTerminal = func() bool { return true }
	if got := FromEnv().Format; got != "console" {
		t.Fatalf("terminal format = %q, want console", got)
	}
	t.Setenv("CSP_LOG_FORMAT", "json")
	if got := FromEnv().Format; got != "json" {
		t.Fatalf("explicit format = %q, want json", got)
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	var h slog.Handler = &consoleHandler{level: slog.LevelWarn, w: &buf, mu: new(sync.Mutex)}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be filtered at warn")
	}
	h = h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")

	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.String("say", "hi there"))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ERR boom", " k=v", "grp.n=42", "grp.pi=3.14", `grp.say="hi there"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "WARNING": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "bogus": slog.LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
