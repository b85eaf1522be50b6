package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/phonebridge/internal/diag"
)

// Entry is a stored diagnostic with its row id.
type Entry struct {
	ID int64 `json:"id"`
	diag.Diagnostic
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Kind     diag.Kind
	Opcode   string
	Instance string
	// Limit caps the number of rows; 0 means no cap.
	Limit int
}

// List returns diagnostics matching f in insertion order.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Opcode != "" {
		where = append(where, "opcode = ?")
		args = append(args, f.Opcode)
	}
	if f.Instance != "" {
		where = append(where, "instance = ?")
		args = append(args, f.Instance)
	}

	query := `
		SELECT id, kind, at, opcode, request_id, trace_id, instance, tag, detail
		FROM diagnostics`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}

	return entries, nil
}

// CountByKind returns the number of stored diagnostics per kind.
func (s *Store) CountByKind(ctx context.Context) (map[diag.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM diagnostics GROUP BY kind ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("count diagnostics: %w", err)
	}
	defer rows.Close()

	counts := make(map[diag.Kind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[diag.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e         Entry
		kind, at  string
		requestID int64
	)
	err := rows.Scan(&e.ID, &kind, &at, &e.Opcode, &requestID, &e.TraceID, &e.Instance, &e.Tag, &e.Detail)
	if err != nil {
		return Entry{}, fmt.Errorf("scan diagnostic: %w", err)
	}

	e.Kind = diag.Kind(kind)
	e.RequestID = uint64(requestID)
	e.At, err = time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Entry{}, fmt.Errorf("parse timestamp of diagnostic %d: %w", e.ID, err)
	}
	return e, nil
}
