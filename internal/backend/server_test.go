/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callscript/internal/script"
	"callscript/internal/storage"
	"callscript/internal/telemetry"
	"callscript/internal/version"
)

type harness struct {
	t     *testing.T
	srv   *Server
	store *memStore
	h     http.Handler
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "test-secret"
	}
	st := newMemStore()
	srv := NewServer(cfg, st)
	return &harness{t: t, srv: srv, store: st, h: srv.Handler()}
}

func (h *harness) token(ws string) string {
	h.t.Helper()
	tok, err := signToken(h.srv.cfg.AuthSecret, ws, time.Now().Add(time.Hour))
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthVersionAndReady(t *testing.T) {
	h := newHarness(t, Config{})
	rr := h.do("GET", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = h.do("GET", "/version", "", "")
	assert.Equal(t, version.String(), rr.Body.String())

	assert.Equal(t, http.StatusOK, h.do("GET", "/readyz", "", "").Code)
	h.store.pingErr = errors.New("down")
	assert.Equal(t, http.StatusServiceUnavailable, h.do("GET", "/readyz", "", "").Code)

	assert.Equal(t, http.StatusMethodNotAllowed, h.do("POST", "/healthz", "", "").Code)
}

func TestIssueToken(t *testing.T) {
	h := newHarness(t, Config{})
	rr := h.do("POST", "/api/auth/token", "", `{"workspace":"acme","ttl_seconds":60}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[TokenResponse](t, rr)
	sess, err := verifyToken("test-secret", resp.Token, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "acme", sess.Workspace)
	exp, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/auth/token", "", `{"workspace":"a/b"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/auth/token", "", `not json`).Code)
}

func TestIssueTokenClampsTTL(t *testing.T) {
	h := newHarness(t, Config{})
	resp := decode[TokenResponse](t, h.do("POST", "/api/auth/token", "", `{"workspace":"acme","ttl_seconds":999999}`))
	exp, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
}

func TestIssueTokenRequiresIssuerKey(t *testing.T) {
	h := newHarness(t, Config{IssuerKey: "issuer"})
	assert.Equal(t, http.StatusUnauthorized, h.do("POST", "/api/auth/token", "", `{"workspace":"acme"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do("POST", "/api/auth/token", "wrong", `{"workspace":"acme"}`).Code)
	assert.Equal(t, http.StatusOK, h.do("POST", "/api/auth/token", "issuer", `{"workspace":"acme"}`).Code)
}

func TestParseEndpoint(t *testing.T) {
	h := newHarness(t, Config{})
	assert.Equal(t, http.StatusUnauthorized, h.do("POST", "/api/parse", "", sampleScript).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do("POST", "/api/parse", "garbage", sampleScript).Code)

	rr := h.do("POST", "/api/parse", h.token("acme"), sampleScript)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ps := decode[script.ParsedScript](t, rr)
	assert.True(t, ps.IsStructured)
	require.Len(t, ps.Beats, 4)
	require.Len(t, ps.Beats[0].Branches, 1)
	require.NotNil(t, ps.Beats[0].Branches[0].TargetBeat)
	assert.Equal(t, 4, *ps.Beats[0].Branches[0].TargetBeat)

	rr = h.do("POST", "/api/parse", h.token("acme"), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"beats":[],"isStructured":false}`, rr.Body.String())
}

func TestParseBodyTooLarge(t *testing.T) {
	h := newHarness(t, Config{MaxBodyBytes: 16})
	rr := h.do("POST", "/api/parse", h.token("acme"), sampleScript)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestScriptLifecycleIsWorkspaceScoped(t *testing.T) {
	h := newHarness(t, Config{})
	acme, globex := h.token("acme"), h.token("globex")

	rr := h.do("PUT", "/api/scripts/cold-open", acme, sampleScript)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decode[ScriptRecord](t, rr)
	assert.Equal(t, "acme", rec.Workspace)
	assert.True(t, rec.Structured)
	assert.Equal(t, 4, rec.BeatCount)

	list := decode[[]ScriptRecord](t, h.do("GET", "/api/scripts", acme, ""))
	require.Len(t, list, 1)
	assert.Equal(t, "cold-open", list[0].Name)
	assert.Empty(t, decode[[]ScriptRecord](t, h.do("GET", "/api/scripts", globex, "")))

	got := decode[ScriptRecord](t, h.do("GET", "/api/scripts/cold-open", acme, ""))
	require.NotNil(t, got.Parsed)
	assert.Equal(t, "Opener", got.Parsed.Beats[0].Title)
	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/scripts/cold-open", globex, "").Code)

	hits := decode[[]storage.SearchResult](t, h.do("GET", "/api/search?q=scheduling", acme, ""))
	require.Len(t, hits, 1)
	assert.Equal(t, 2, hits[0].Beat)

	assert.Equal(t, http.StatusNoContent, h.do("DELETE", "/api/scripts/cold-open", acme, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do("DELETE", "/api/scripts/cold-open", acme, "").Code)
}

func TestSearchValidation(t *testing.T) {
	h := newHarness(t, Config{})
	tok := h.token("acme")
	assert.Equal(t, http.StatusBadRequest, h.do("GET", "/api/search?beat=x", tok, "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do("GET", "/api/search?limit=-1", tok, "").Code)
	rr := h.do("GET", "/api/search?q=explode", tok, "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, Config{})
	h.do("POST", "/api/parse", h.token("acme"), sampleScript)
	rr := h.do("GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), "callscript_parse_total")
	assert.Contains(t, string(body), "callscript_http_requests_total")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://a")
	t.Setenv("CSP_PG_DSN", "")
	t.Setenv("PORT", "9000")
	t.Setenv("ADDR", "")
	t.Setenv("CSP_AUTH_SECRET", "k")
	t.Setenv("CSP_ISSUER_KEY", "")
	cfg := ConfigFromEnv()
	assert.Equal(t, "postgres://a", cfg.DatabaseURL)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "k", cfg.AuthSecret)

	t.Setenv("CSP_PG_DSN", "postgres://b")
	t.Setenv("ADDR", "127.0.0.1:1")
	cfg = ConfigFromEnv()
	assert.Equal(t, "postgres://b", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:1", cfg.Addr)
}

func TestStoreAndDeleteEmitEvents(t *testing.T) {
	var mu sync.Mutex
	var names []string
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p telemetry.Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		names = append(names, p.Name)
		mu.Unlock()
	}))
	defer sink.Close()

	h := newHarness(t, Config{})
	h.srv.events = telemetry.New(telemetry.Config{OptIn: true, EventsURL: sink.URL, Timeout: time.Second})
	defer h.srv.events.Close()
	tok := h.token("acme")

	require.Equal(t, http.StatusOK, h.do("PUT", "/api/scripts/cold", tok, sampleScript).Code)
	require.Equal(t, http.StatusNoContent, h.do("DELETE", "/api/scripts/cold", tok, "").Code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.srv.events.Flush(ctx)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{telemetry.ScriptStored, telemetry.ScriptDeleted}, names)
}

func TestRevokeToken(t *testing.T) {
	h := newHarness(t, Config{})
	tok := h.token("acme")

	rr := h.do("POST", "/api/auth/revoke", tok, "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)

	h.srv.revoker = newMemRevoker()
	require.Equal(t, http.StatusOK, h.do("GET", "/api/scripts", tok, "").Code)
	require.Equal(t, http.StatusNoContent, h.do("POST", "/api/auth/revoke", tok, "").Code)

	rr = h.do("GET", "/api/scripts", tok, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "revoked")

	// Other tokens of the same workspace stay valid.
	assert.Equal(t, http.StatusOK, h.do("GET", "/api/scripts", h.token("acme"), "").Code)
}

func TestRevocationStoreFailureIsUnavailable(t *testing.T) {
	h := newHarness(t, Config{})
	h.srv.revoker = failingRevoker{}
	assert.Equal(t, http.StatusServiceUnavailable, h.do("GET", "/api/scripts", h.token("acme"), "").Code)
}
