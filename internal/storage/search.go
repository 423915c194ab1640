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
	"fmt"
	"strings"
)

// SearchQuery describes a library search.
// Text is split into terms that must all match (FTS5, unicode61 tokenizer); an empty
// Text falls back to a plain scan with the filters applied.
// Script restricts to one script name, Beat to one beat number (0 means any), Kinds
// to document kinds such as say, condition, response or title.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text   string
	Script string
	Beat   int
	Kinds  []string
	Limit  int
	Offset int
}

// SearchResult represents a single match row.
// Snippet highlights matched terms with [ ] markers when Text was given.
type SearchResult struct {
	DocID   int64  `json:"docId"`
	Script  string `json:"script"`
	Beat    int    `json:"beat"`
	Kind    string `json:"kind"`
	Text    string `json:"text"`
	Snippet string `json:"snippet,omitempty"`
}

// Search performs full-text search with optional filters over the library.
func (l *Library) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	match := ftsMatch(q.Text)
	if match != "" {
		sb.WriteString("SELECT d.doc_id, s.name, d.beat_number, d.kind, d.text, snippet(fts_documents, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("JOIN scripts s ON s.id = d.script_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, match)
	} else {
		sb.WriteString("SELECT d.doc_id, s.name, d.beat_number, d.kind, d.text, ''\n")
		sb.WriteString("FROM documents d JOIN scripts s ON s.id = d.script_id\nWHERE 1=1\n")
	}
	if s := strings.TrimSpace(q.Script); s != "" {
		sb.WriteString(" AND s.name = ?\n")
		args = append(args, s)
	}
	if q.Beat > 0 {
		sb.WriteString(" AND d.beat_number = ?\n")
		args = append(args, q.Beat)
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND d.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, strings.ToLower(strings.TrimSpace(k)))
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if match != "" {
		sb.WriteString("ORDER BY bm25(fts_documents), d.doc_id\n")
	} else {
		sb.WriteString("ORDER BY s.name, d.beat_number, d.doc_id\n")
	}
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := l.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocID, &r.Script, &r.Beat, &r.Kind, &r.Text, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsMatch quotes each whitespace-separated term so user punctuation never
// reaches the FTS5 query parser.
func ftsMatch(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
