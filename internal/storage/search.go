/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SearchQuery describes a full-text lookup over text blocks and graph
// expressions. Every whitespace-separated term must match. Kinds and PageID
// narrow the result; Limit defaults to 100.
type SearchQuery struct {
	Text   string
	Kinds  []string
	PageID string
	Limit  int
	Offset int
}

// SearchResult is one matching element. Snippet marks hits with [ ].
type SearchResult struct {
	PageID    string
	PageIndex int
	ElementID string
	Kind      string
	Snippet   string
}

// Search queries the FTS table. An empty Text lists indexed rows in page order.
func (ix *Index) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	match := ftsQuery(q.Text)
	if match != "" {
		sb.WriteString("SELECT e.page_id, e.page_index, e.element_id, e.kind, snippet(fts_elements, 0, '[', ']', '...', 10)\n")
		sb.WriteString("FROM fts_elements JOIN elements e ON fts_elements.rowid = e.id\n")
		sb.WriteString("WHERE fts_elements MATCH ?\n")
		args = append(args, match)
	} else {
		sb.WriteString("SELECT e.page_id, e.page_index, e.element_id, e.kind, e.text\n")
		sb.WriteString("FROM elements e\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND e.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	if q.PageID != "" {
		sb.WriteString(" AND e.page_id = ?\n")
		args = append(args, q.PageID)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	sb.WriteString("ORDER BY e.page_index, e.id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := ix.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.PageID, &r.PageIndex, &r.ElementID, &r.Kind, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsQuery quotes each term so expressions such as "sin(x)" are matched as
// phrases instead of being parsed as FTS5 syntax.
func ftsQuery(text string) string {
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
