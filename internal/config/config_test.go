/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memTokens) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memTokens) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config file at a temp dir and stubs the keychain.
func isolate(t *testing.T) (string, memTokens) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	for _, k := range []string{EnvLibraryRoot, EnvKeepRevisions, EnvBackendURL, EnvBackendTimeMs, EnvWorkspace,
		EnvAddr, EnvDatabaseURL, "DATABASE_URL", "PORT", EnvLogLevel, EnvLogFormat, EnvLogSource, EnvLogFile} {
		t.Setenv(k, "")
	}
	mem := memTokens{}
	old := tokenStore
	tokenStore = mem
	t.Cleanup(func() { tokenStore = old })
	return path, mem
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected no token, got %q", tok)
	}
	if cfg.Library.KeepRevisions != 20 || cfg.Server.Addr != ":8080" {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
}

func TestSaveThenLoadRoundTripsFileAndToken(t *testing.T) {
	path, mem := isolate(t)
	cfg := Defaults()
	cfg.Library.Root = "/srv/scripts"
	cfg.Backend.Workspace = "acme"
	cfg.Logging.Level = "debug"
	if err := Save(cfg, "tok-123"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if mem["callscript/backend_token"] != "tok-123" {
		t.Fatalf("token not stored in keychain stub: %v", mem)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Library.Root != "/srv/scripts" || got.Backend.Workspace != "acme" || got.Logging.Level != "debug" || tok != "tok-123" {
		t.Fatalf("round trip mismatch: %#v token=%q", got, tok)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken() error: %v", err)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("second ClearToken() should ignore missing entry: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	t.Setenv(EnvKeepRevisions, "5")
	t.Setenv("DATABASE_URL", "postgres://a")
	t.Setenv(EnvDatabaseURL, "postgres://b")
	t.Setenv("PORT", "9090")
	t.Setenv(EnvLogSource, "yes")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.BaseURL != "https://example.test:8443" || cfg.Library.KeepRevisions != 5 {
		t.Fatalf("overrides not applied: %#v", cfg)
	}
	if cfg.Server.DatabaseURL != "postgres://b" || cfg.Server.Addr != ":9090" || !cfg.Logging.Source {
		t.Fatalf("server/logging overrides not applied: %#v", cfg)
	}
	if env, ok := EnvOverrideFor("backend.base_url"); !ok || env != EnvBackendURL {
		t.Fatalf("EnvOverrideFor mismatch: %q %v", env, ok)
	}
	if _, ok := EnvOverrideFor("backend.workspace"); ok {
		t.Fatalf("workspace is not overridden")
	}
}

func TestMergeKeepsDefaultsForEmptyFields(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Logging: LoggingConfig{Level: "WARN", Source: true}}
	mergeInto(&dst, &src)
	if dst.Logging.Level != "warn" || !dst.Logging.Source || dst.Server.Addr != ":8080" || dst.Library.KeepRevisions != 20 {
		t.Fatalf("merge mismatch: %#v", dst)
	}
}

func TestBackendTimeout(t *testing.T) {
	if got := (BackendConfig{}).Timeout().Milliseconds(); got != 15000 {
		t.Fatalf("default timeout = %d", got)
	}
	if got := (BackendConfig{TimeoutMs: 250}).Timeout().Milliseconds(); got != 250 {
		t.Fatalf("timeout = %d", got)
	}
}

func TestSaveTokenAndClear(t *testing.T) {
	path, mem := isolate(t)
	if err := SaveToken(""); err == nil {
		t.Fatal("expected error for empty token")
	}
	if err := SaveToken("tok"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("config file written by SaveToken: %v", err)
	}
	_, tok, err := Load()
	if err != nil || tok != "tok" {
		t.Fatalf("Load token = %q, %v", tok, err)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if len(mem) != 0 {
		t.Fatalf("token still stored: %v", mem)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("second ClearToken: %v", err)
	}
}
