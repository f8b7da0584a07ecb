package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/airuntime/core/errs"
)

// sqlSchema is the "table per entry" JDBC schema spec §4.8 names,
// generalized from memory.JDBC's jdbcSchema (itself grounded on the
// teacher's session/sqlite.go createTableSQL) onto the audit span shape.
const sqlSchema = `
CREATE TABLE IF NOT EXISTS audit_spans (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	span_id         TEXT NOT NULL,
	parent_span_id  TEXT NOT NULL DEFAULT '',
	trace_id        TEXT NOT NULL,
	span_type       TEXT NOT NULL,
	operation       TEXT NOT NULL,
	start_time      TEXT NOT NULL,
	end_time        TEXT NOT NULL,
	input           TEXT NOT NULL DEFAULT '',
	output          TEXT NOT NULL DEFAULT '',
	prompt_tokens   INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens    INTEGER NOT NULL DEFAULT 0,
	metadata        TEXT NOT NULL DEFAULT '{}',
	error           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_spans_trace ON audit_spans(trace_id);
`

// SQLStore persists spans to any database/sql driver (SQLite, the
// teacher pack's github.com/go-sql-driver/mysql, or github.com/lib/pq),
// mirroring memory.JDBC's construction shape.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an existing *sql.DB, creating the schema if absent.
// createSchema may be dialect-specific (e.g. Postgres SERIAL instead of
// AUTOINCREMENT); pass "" for the default SQLite-compatible form.
func NewSQLStore(db *sql.DB, createSchema string) (*SQLStore, error) {
	if createSchema == "" {
		createSchema = sqlSchema
	}
	if _, err := db.Exec(createSchema); err != nil {
		return nil, errs.Wrap(errs.AuditError, "audit-sql", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Write(ctx context.Context, span *Span) error {
	meta, _ := json.Marshal(span.Metadata)
	input, _ := json.Marshal(span.Input)
	output, _ := json.Marshal(span.Output)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_spans
			(span_id, parent_span_id, trace_id, span_type, operation, start_time, end_time,
			 input, output, prompt_tokens, completion_tokens, total_tokens, metadata, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		span.SpanID, span.ParentSpanID, span.TraceID, string(span.Type), span.Operation,
		span.StartTime.Format(time.RFC3339Nano), span.EndTime.Format(time.RFC3339Nano),
		string(input), string(output),
		span.Tokens.PromptTokens, span.Tokens.CompletionTokens, span.Tokens.TotalTokens,
		string(meta), span.Error,
	)
	if err != nil {
		return errs.Wrap(errs.AuditError, "audit-sql", err)
	}
	return nil
}

func (s *SQLStore) Query(ctx context.Context, q Query) ([]*Span, error) {
	// The relational store is queried by trace_id/span_type/operation
	// server-side when provided; start/end-time and min-token filters are
	// applied client-side the way memory.JDBC defers secondary filtering,
	// since the column set covers the common case (traceId lookups) but a
	// single dialect-portable WHERE clause can't express every spec
	// §4.8 predicate combination cleanly across SQLite/MySQL/Postgres.
	query := `SELECT span_id, parent_span_id, trace_id, span_type, operation, start_time, end_time,
			input, output, prompt_tokens, completion_tokens, total_tokens, metadata, error
		FROM audit_spans WHERE 1=1`
	var args []any
	if q.TraceID != "" {
		query += " AND trace_id = ?"
		args = append(args, q.TraceID)
	}
	if q.SpanType != "" {
		query += " AND span_type = ?"
		args = append(args, string(q.SpanType))
	}
	if q.Operation != "" {
		query += " AND operation = ?"
		args = append(args, q.Operation)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.AuditError, "audit-sql", err)
	}
	defer rows.Close()

	var out []*Span
	for rows.Next() {
		var sp Span
		var typ, startStr, endStr, inputRaw, outputRaw, metaRaw string
		if err := rows.Scan(&sp.SpanID, &sp.ParentSpanID, &sp.TraceID, &typ, &sp.Operation,
			&startStr, &endStr, &inputRaw, &outputRaw,
			&sp.Tokens.PromptTokens, &sp.Tokens.CompletionTokens, &sp.Tokens.TotalTokens,
			&metaRaw, &sp.Error); err != nil {
			return nil, errs.Wrap(errs.ProtocolError, "audit-sql", err)
		}
		sp.Type = SpanType(typ)
		sp.StartTime, _ = time.Parse(time.RFC3339Nano, startStr)
		sp.EndTime, _ = time.Parse(time.RFC3339Nano, endStr)
		json.Unmarshal([]byte(inputRaw), &sp.Input)
		json.Unmarshal([]byte(outputRaw), &sp.Output)
		json.Unmarshal([]byte(metaRaw), &sp.Metadata)
		if !q.matches(&sp) {
			continue
		}
		out = append(out, &sp)
	}
	return out, rows.Err()
}
