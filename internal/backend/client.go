/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"callscript/internal/script"
	"callscript/internal/storage"
)

// Client is a typed HTTP client for the backend API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, dest any) error {
	return c.doAs(ctx, c.Token, method, path, body, contentType, dest)
}

func (c *Client) doAs(ctx context.Context, token, method, path string, body io.Reader, contentType string, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env struct {
			Error string `json:"error"`
		}
		if b, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(b, &env) == nil {
			apiErr.Message = env.Error
		}
		return apiErr
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IssueToken requests a workspace token. issuerKey may be empty when the server does not require one.
func (c *Client) IssueToken(ctx context.Context, issuerKey, workspace string, ttl time.Duration) (TokenResponse, error) {
	body, err := json.Marshal(map[string]any{"workspace": workspace, "ttl_seconds": int64(ttl / time.Second)})
	if err != nil {
		return TokenResponse{}, err
	}
	var out TokenResponse
	err = c.doAs(ctx, issuerKey, http.MethodPost, "/api/auth/token", bytes.NewReader(body), "application/json", &out)
	return out, err
}

// RevokeToken revokes the client's own token on the server.
func (c *Client) RevokeToken(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/revoke", nil, "", nil)
}

// Parse sends raw script text to the server parser.
func (c *Client) Parse(ctx context.Context, text string) (script.ParsedScript, error) {
	var ps script.ParsedScript
	err := c.do(ctx, http.MethodPost, "/api/parse", strings.NewReader(text), "text/plain; charset=utf-8", &ps)
	return ps, err
}

// ListScripts returns the scripts of the token's workspace.
func (c *Client) ListScripts(ctx context.Context) ([]ScriptRecord, error) {
	var list []ScriptRecord
	if err := c.do(ctx, http.MethodGet, "/api/scripts", nil, "", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PutScript stores text under name.
func (c *Client) PutScript(ctx context.Context, name, text string) (ScriptRecord, error) {
	var rec ScriptRecord
	err := c.do(ctx, http.MethodPut, "/api/scripts/"+url.PathEscape(name), strings.NewReader(text), "text/plain; charset=utf-8", &rec)
	return rec, err
}

// GetScript fetches a script with its parsed beats.
func (c *Client) GetScript(ctx context.Context, name string) (ScriptRecord, error) {
	var rec ScriptRecord
	err := c.do(ctx, http.MethodGet, "/api/scripts/"+url.PathEscape(name), nil, "", &rec)
	return rec, err
}

func (c *Client) DeleteScript(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/scripts/"+url.PathEscape(name), nil, "", nil)
}

// Search queries the workspace's documents.
func (c *Client) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Script != "" {
		v.Set("script", q.Script)
	}
	if q.Beat > 0 {
		v.Set("beat", strconv.Itoa(q.Beat))
	}
	for _, k := range q.Kinds {
		v.Add("kind", k)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/api/search"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}
	var out []storage.SearchResult
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}
