package storage

import (
	"fmt"
	"strings"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// DraftSummary is one search hit.
type DraftSummary struct {
	ObjectID          models.ObjectID   `json:"object_id"`
	ObjectType        models.ObjectType `json:"object_type"`
	ObjectName        string            `json:"object_name"`
	ObjectDescription string            `json:"object_description"`
	UpdatedAt         string            `json:"updated_at"`
}

// Search performs FTS5 full-text search over draft names and descriptions.
// Every word of query must match as a prefix. An empty query lists all
// drafts, most recently updated first.
func (s *DraftStore) Search(query string, limit int) ([]DraftSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	match := ftsQuery(query)

	const columns = `e.object_id, e.object_type, e.object_name, e.object_description, e.updated_at`
	var (
		q    string
		args []any
	)
	if match == "" {
		q = `SELECT ` + columns + ` FROM edited_objects e ORDER BY e.updated_at DESC, e.object_id LIMIT ?`
		args = []any{limit}
	} else {
		q = `SELECT ` + columns + ` FROM edited_objects e
		     JOIN edited_objects_fts ON edited_objects_fts.rowid = e.rowid
		     WHERE edited_objects_fts MATCH ?
		     ORDER BY rank LIMIT ?`
		args = []any{match, limit}
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("search drafts fts: %w", err)
	}
	defer rows.Close()

	var out []DraftSummary
	for rows.Next() {
		var (
			d    DraftSummary
			wire int
		)
		if err := rows.Scan(&wire, &d.ObjectType, &d.ObjectName, &d.ObjectDescription, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		d.ObjectID = models.FromWire(wire)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ftsQuery turns free text into an FTS5 expression of quoted prefix terms,
// so punctuation in the input is never parsed as query syntax.
func ftsQuery(text string) string {
	var terms []string
	for _, w := range strings.Fields(text) {
		w = strings.ReplaceAll(w, `"`, `""`)
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}
