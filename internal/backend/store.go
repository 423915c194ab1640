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
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"callscript/internal/script"
	"callscript/internal/storage"
)

// ErrNotFound is returned when a script does not exist in the caller's workspace.
var ErrNotFound = errors.New("script not found")

// ScriptRecord is a stored script of one workspace.
type ScriptRecord struct {
	ID         uuid.UUID           `json:"id" db:"id"`
	Workspace  string              `json:"workspace" db:"workspace"`
	Name       string              `json:"name" db:"name"`
	Text       string              `json:"text,omitempty" db:"text"`
	Structured bool                `json:"structured" db:"structured"`
	BeatCount  int                 `json:"beatCount" db:"beat_count"`
	Parsed     *script.ParsedScript `json:"parsed,omitempty" db:"parsed"`
	CreatedAt  time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time           `json:"updatedAt" db:"updated_at"`
}

// Store persists scripts per workspace. Every method is scoped to one workspace.
type Store interface {
	Ping(ctx context.Context) error
	ListScripts(ctx context.Context, workspace string) ([]ScriptRecord, error)
	PutScript(ctx context.Context, workspace, name, text string) (ScriptRecord, error)
	GetScript(ctx context.Context, workspace, name string) (ScriptRecord, error)
	DeleteScript(ctx context.Context, workspace, name string) error
	Search(ctx context.Context, workspace string, q storage.SearchQuery) ([]storage.SearchResult, error)
}

// PGStore is the Postgres Store backed by a pgx pool.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{pool: pool} }

func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// dialect=PostgreSQL
const listScriptsSQL = `SELECT id, workspace, name, structured, beat_count, created_at, updated_at
FROM scripts WHERE workspace = $1 ORDER BY name`

// dialect=PostgreSQL
const getScriptSQL = `SELECT id, workspace, name, text, structured, beat_count, parsed, created_at, updated_at
FROM scripts WHERE workspace = $1 AND name = $2`

// dialect=PostgreSQL
const upsertScriptSQL = `INSERT INTO scripts (id, workspace, name, text, structured, beat_count, parsed)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (workspace, name) DO UPDATE SET
	text = EXCLUDED.text,
	structured = EXCLUDED.structured,
	beat_count = EXCLUDED.beat_count,
	parsed = EXCLUDED.parsed,
	updated_at = now()
RETURNING id, workspace, name, text, structured, beat_count, parsed, created_at, updated_at`

func (s *PGStore) ListScripts(ctx context.Context, workspace string) ([]ScriptRecord, error) {
	out := []ScriptRecord{}
	if err := pgxscan.Select(ctx, s.pool, &out, listScriptsSQL, workspace); err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	return out, nil
}

func (s *PGStore) GetScript(ctx context.Context, workspace, name string) (ScriptRecord, error) {
	var rec ScriptRecord
	if err := pgxscan.Get(ctx, s.pool, &rec, getScriptSQL, workspace, name); err != nil {
		if pgxscan.NotFound(err) {
			return ScriptRecord{}, ErrNotFound
		}
		return ScriptRecord{}, fmt.Errorf("get script: %w", err)
	}
	return rec, nil
}

// PutScript parses text, upserts the script and replaces its documents in one transaction.
func (s *PGStore) PutScript(ctx context.Context, workspace, name, text string) (ScriptRecord, error) {
	ps := script.Parse(text)
	var rec ScriptRecord
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := pgxscan.Get(ctx, tx, &rec, upsertScriptSQL,
			uuid.New(), workspace, name, text, ps.IsStructured, len(ps.Beats), ps); err != nil {
			return fmt.Errorf("upsert script: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE script_id = $1`, rec.ID); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		docs := storage.Documents(ps)
		if len(docs) == 0 {
			return nil
		}
		rows := make([][]any, 0, len(docs))
		for _, d := range docs {
			rows = append(rows, []any{rec.ID, d.Beat, d.Kind, d.Text})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"documents"},
			[]string{"script_id", "beat_number", "kind", "text"}, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("insert documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return ScriptRecord{}, err
	}
	return rec, nil
}

func (s *PGStore) DeleteScript(ctx context.Context, workspace, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scripts WHERE workspace = $1 AND name = $2`, workspace, name)
	if err != nil {
		return fmt.Errorf("delete script: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type searchRow struct {
	DocID   int64  `db:"doc_id"`
	Script  string `db:"script"`
	Beat    int    `db:"beat"`
	Kind    string `db:"kind"`
	Text    string `db:"text"`
	Snippet string `db:"snippet"`
}

// Search runs a tsvector search (or a plain scan when Text is empty) over the
// documents of one workspace, mirroring the local library's filters.
func (s *PGStore) Search(ctx context.Context, workspace string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	useFTS := strings.TrimSpace(q.Text) != ""
	b.WriteString("SELECT d.id AS doc_id, s.name AS script, d.beat_number AS beat, d.kind, d.text, ")
	if useFTS {
		tsq := "plainto_tsquery('simple', " + place(q.Text) + ")"
		b.WriteString("COALESCE(ts_headline('simple', d.text, " + tsq + ", 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12, MinWords=3'), '') AS snippet ")
		b.WriteString("FROM documents d JOIN scripts s ON s.id = d.script_id ")
		b.WriteString("WHERE s.workspace = " + place(workspace) + " AND d.search_vector @@ " + tsq + " ")
	} else {
		b.WriteString("'' AS snippet FROM documents d JOIN scripts s ON s.id = d.script_id ")
		b.WriteString("WHERE s.workspace = " + place(workspace) + " ")
	}
	if name := strings.TrimSpace(q.Script); name != "" {
		b.WriteString(" AND s.name = " + place(name) + " ")
	}
	if q.Beat > 0 {
		b.WriteString(" AND d.beat_number = " + place(q.Beat) + " ")
	}
	if len(q.Kinds) > 0 {
		kinds := make([]string, 0, len(q.Kinds))
		for _, k := range q.Kinds {
			kinds = append(kinds, strings.ToLower(strings.TrimSpace(k)))
		}
		b.WriteString(" AND d.kind = ANY (" + place(kinds) + ") ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY s.name, d.beat_number, d.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	var rows []searchRow
	if err := pgxscan.Select(ctx, s.pool, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	out := make([]storage.SearchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, storage.SearchResult(r))
	}
	return out, nil
}
