package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/phonebridge/internal/diag"
)

// WriteDiagnostic appends one diagnostic and returns its row id.
func (s *Store) WriteDiagnostic(ctx context.Context, d diag.Diagnostic) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics
		(kind, at, opcode, request_id, trace_id, instance, tag, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(d.Kind),
		d.At.UTC().Format(time.RFC3339Nano),
		d.Opcode,
		int64(d.RequestID),
		d.TraceID,
		d.Instance,
		d.Tag,
		d.Detail,
	)
	if err != nil {
		return 0, fmt.Errorf("write diagnostic: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write diagnostic: %w", err)
	}
	return id, nil
}
