/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "callscript/internal/log"
	"callscript/internal/script"
)

// ErrNotFound is returned when a named script does not exist.
var ErrNotFound = errors.New("script not found")

// ErrInvalidName is returned for blank or oversized script names.
var ErrInvalidName = errors.New("invalid script name")

const maxNameLen = 200

// Library is an open script library. It is safe for concurrent use.
type Library struct {
	Root string
	// KeepRevisions prunes each script's history after a save when > 0.
	KeepRevisions int

	db *sql.DB
}

// Record is a stored script with the parse facts recorded at save time.
type Record struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Text       string    `json:"text,omitempty"`
	Structured bool      `json:"structured"`
	BeatCount  int       `json:"beatCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Parsed runs the parser over the stored text.
func (r Record) Parsed() script.ParsedScript { return script.Parse(r.Text) }

// Revision is one historical version of a script's text.
type Revision struct {
	ID   int64     `json:"id"`
	TS   time.Time `json:"ts"`
	Text string    `json:"text"`
}

// Open initializes or opens the library under root.
func Open(root string) (*Library, error) {
	db, err := openDB(root)
	if err != nil {
		return nil, err
	}
	return &Library{Root: root, db: db}, nil
}

// Close closes the underlying database.
func (l *Library) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// language=SQL
// dialect=SQLite
const upsertScriptSQL = `INSERT INTO scripts(id, name, text, structured, beat_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	text = excluded.text,
	structured = excluded.structured,
	beat_count = excluded.beat_count,
	updated_at = excluded.updated_at`

// language=SQL
// dialect=SQLite
const selectScriptSQL = `SELECT id, name, text, structured, beat_count, created_at, updated_at FROM scripts WHERE name = ?`

// language=SQL
// dialect=SQLite
const listScriptsSQL = `SELECT id, name, '', structured, beat_count, created_at, updated_at FROM scripts ORDER BY name`

// language=SQL
// dialect=SQLite
const latestRevisionTextSQL = `SELECT text FROM script_revisions WHERE script_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, ts, text FROM script_revisions WHERE script_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM script_revisions WHERE script_id = ? AND id NOT IN (
	SELECT id FROM script_revisions WHERE script_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

// SaveScript stores text under name, creating the script on first save. The text is
// parsed, a revision is recorded when the text changed, and the script's search
// documents are rebuilt, all in one transaction.
func (l *Library) SaveScript(ctx context.Context, name, text string) (Record, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Record{}, err
	}
	lg := applog.WithOperation(applog.WithComponent("storage"), "save_script").With(slog.String("name", name))
	ps := script.Parse(text)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanRecord(tx.QueryRowContext(ctx, selectScriptSQL, name))
	switch {
	case errors.Is(err, ErrNotFound):
		now := time.Now().UTC()
		rec = Record{ID: uuid.NewString(), Name: name, CreatedAt: now}
	case err != nil:
		return Record{}, err
	}
	rec.Text = text
	rec.Structured = ps.IsStructured
	rec.BeatCount = len(ps.Beats)
	rec.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, upsertScriptSQL, rec.ID, rec.Name, rec.Text, rec.Structured, rec.BeatCount,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
		return Record{}, fmt.Errorf("upsert script: %w", err)
	}

	var lastRev string
	err = tx.QueryRowContext(ctx, latestRevisionTextSQL, rec.ID).Scan(&lastRev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("read latest revision: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) || lastRev != text {
		if _, err := tx.ExecContext(ctx, `INSERT INTO script_revisions(script_id, ts, text) VALUES (?, ?, ?)`,
			rec.ID, rec.UpdatedAt.Format(time.RFC3339Nano), text); err != nil {
			return Record{}, fmt.Errorf("insert revision: %w", err)
		}
	}
	if err := writeDocuments(ctx, tx, rec.ID, ps); err != nil {
		return Record{}, err
	}
	if l.KeepRevisions > 0 {
		if _, err := tx.ExecContext(ctx, pruneRevisionsSQL, rec.ID, rec.ID, l.KeepRevisions); err != nil {
			return Record{}, fmt.Errorf("prune revisions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	lg.Info("script saved", slog.String("id", rec.ID), slog.Bool("structured", rec.Structured), slog.Int("beats", rec.BeatCount))
	return rec, nil
}

// GetScript loads a script with its text.
func (l *Library) GetScript(ctx context.Context, name string) (Record, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Record{}, err
	}
	return scanRecord(l.db.QueryRowContext(ctx, selectScriptSQL, name))
}

// ListScripts returns all scripts ordered by name, without their text.
func (l *Library) ListScripts(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, listScriptsSQL)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteScript removes a script with its revisions and documents.
func (l *Library) DeleteScript(ctx context.Context, name string) error {
	rec, err := l.GetScript(ctx, name)
	if err != nil {
		return err
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{
		`DELETE FROM documents WHERE script_id = ?`,
		`DELETE FROM script_revisions WHERE script_id = ?`,
		`DELETE FROM scripts WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, rec.ID); err != nil {
			return fmt.Errorf("delete script: %w", err)
		}
	}
	return tx.Commit()
}

// Revisions returns up to limit revisions of a script, newest first.
func (l *Library) Revisions(ctx context.Context, name string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rec, err := l.GetScript(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, listRevisionsSQL, rec.ID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []Revision{}
	for rows.Next() {
		var r Revision
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.Text); err != nil {
			return nil, err
		}
		r.TS = parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRevisions keeps at most keepLast revisions of a script and deletes older ones.
func (l *Library) PruneRevisions(ctx context.Context, name string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	rec, err := l.GetScript(ctx, name)
	if err != nil {
		return 0, err
	}
	res, err := l.db.ExecContext(ctx, pruneRevisionsSQL, rec.ID, rec.ID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reindex rebuilds every script's documents from its stored text.
func (l *Library) Reindex(ctx context.Context) error {
	rows, err := l.db.QueryContext(ctx, `SELECT id, text FROM scripts`)
	if err != nil {
		return fmt.Errorf("read scripts: %w", err)
	}
	type item struct{ id, text string }
	var items []item
	for rows.Next() {
		var it item
		if err := rows.Scan(&it.id, &it.text); err != nil {
			_ = rows.Close()
			return err
		}
		items = append(items, it)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	for _, it := range items {
		if err := writeDocuments(ctx, tx, it.id, script.Parse(it.text)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO fts_documents(fts_documents) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("rebuild fts: %w", err)
	}
	return tx.Commit()
}

// writeDocuments replaces the search documents of one script.
func writeDocuments(ctx context.Context, tx *sql.Tx, scriptID string, ps script.ParsedScript) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE script_id = ?`, scriptID); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO documents(script_id, beat_number, kind, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = ins.Close() }()
	for _, d := range Documents(ps) {
		if _, err := ins.ExecContext(ctx, scriptID, d.Beat, d.Kind, d.Text); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var created, updated string
	if err := row.Scan(&r.ID, &r.Name, &r.Text, &r.Structured, &r.BeatCount, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("scan script: %w", err)
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}
