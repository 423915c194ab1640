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
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"callscript/internal/script"
	"callscript/internal/storage"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu      sync.Mutex
	scripts map[string]ScriptRecord // key: workspace + "/" + name
	pingErr error
}

func newMemStore() *memStore { return &memStore{scripts: map[string]ScriptRecord{}} }

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) ListScripts(_ context.Context, ws string) ([]ScriptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ScriptRecord{}
	for _, r := range m.scripts {
		if r.Workspace == ws {
			r.Text, r.Parsed = "", nil
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) PutScript(_ context.Context, ws, name, text string) (ScriptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := script.Parse(text)
	key := ws + "/" + name
	now := time.Now().UTC()
	rec, ok := m.scripts[key]
	if !ok {
		rec = ScriptRecord{ID: uuid.New(), Workspace: ws, Name: name, CreatedAt: now}
	}
	rec.Text, rec.Structured, rec.BeatCount, rec.Parsed, rec.UpdatedAt = text, ps.IsStructured, len(ps.Beats), &ps, now
	m.scripts[key] = rec
	return rec, nil
}

func (m *memStore) GetScript(_ context.Context, ws, name string) (ScriptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.scripts[ws+"/"+name]
	if !ok {
		return ScriptRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *memStore) DeleteScript(_ context.Context, ws, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scripts[ws+"/"+name]; !ok {
		return ErrNotFound
	}
	delete(m.scripts, ws+"/"+name)
	return nil
}

func (m *memStore) Search(_ context.Context, ws string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	if q.Text == "explode" {
		return nil, errors.New("boom")
	}
	list, _ := m.ListScripts(context.Background(), ws)
	out := []storage.SearchResult{}
	for _, r := range list {
		full, _ := m.GetScript(context.Background(), ws, r.Name)
		for i, d := range storage.Documents(*full.Parsed) {
			if q.Beat > 0 && d.Beat != q.Beat {
				continue
			}
			if q.Text != "" && !strings.Contains(strings.ToLower(d.Text), strings.ToLower(q.Text)) {
				continue
			}
			out = append(out, storage.SearchResult{DocID: int64(i + 1), Script: r.Name, Beat: d.Beat, Kind: d.Kind, Text: d.Text})
		}
	}
	return out, nil
}

const sampleScript = `1. Opener
Hi, this is Sam from Acme.
If they say busy: totally understand → Beat 4
2. Discovery
How do you handle scheduling today?
3. Pitch
We cut no-shows in half.
4. Close
Can we book fifteen minutes?
`

// memRevoker is an in-memory Revoker.
type memRevoker struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func newMemRevoker() *memRevoker { return &memRevoker{ids: map[string]time.Time{}} }

func (m *memRevoker) Revoke(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[id] = until
	return nil
}

func (m *memRevoker) Revoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[id]
	return ok, nil
}

type failingRevoker struct{}

func (failingRevoker) Revoke(context.Context, string, time.Time) error { return errors.New("down") }
func (failingRevoker) Revoked(context.Context, string) (bool, error)   { return false, errors.New("down") }
