package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
)

// jdbcSchema is the relational schema spec §4.5 specifies:
// (id, user_id, conversation_id, role, content, metadata, created_at)
// with a composite index, adapted directly from the teacher's
// sqlite.go createTableSQL (a single "CREATE TABLE IF NOT EXISTS" plus a
// named index, run once at construction).
const jdbcSchema = `
CREATE TABLE IF NOT EXISTS memory_entries (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         TEXT NOT NULL DEFAULT '',
	conversation_id TEXT NOT NULL DEFAULT '',
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '{}',
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_entries_tenant ON memory_entries(user_id, conversation_id);
`

// JDBC persists entries to any database/sql-compatible relational store
// (spec §4.5 table). Grounded on the teacher's session/sqlite.go
// SQLiteStore (schema-on-construct, sql.DB wrapping, JSON-serialized
// message bodies), generalized from a session-scoped single-row table
// onto one-row-per-entry with the tenant composite index spec §4.5
// requires.
type JDBC struct {
	db   *sql.DB
	meta *store
}

// NewJDBC wraps an existing *sql.DB (SQLite, Postgres, MySQL — any
// database/sql driver), creating the schema if it does not exist.
// createSchema is the CREATE TABLE/INDEX statement to run; pass
// jdbcSchema for the default SQLite-compatible form, or a
// dialect-specific equivalent for Postgres/MySQL (e.g. SERIAL instead of
// AUTOINCREMENT).
func NewJDBC(db *sql.DB, createSchema string) (*JDBC, error) {
	if createSchema == "" {
		createSchema = jdbcSchema
	}
	if _, err := db.Exec(createSchema); err != nil {
		return nil, errs.Wrap(errs.ConfigMissing, "memory-jdbc", err)
	}
	return &JDBC{db: db, meta: newStore()}, nil
}

func (j *JDBC) Add(ctx context.Context, tenant Tenant, msg chat.Message) error {
	meta, _ := json.Marshal(map[string]any{})
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO memory_entries (user_id, conversation_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tenant.UserID, tenant.ConversationID, string(msg.Role), msg.Content(), string(meta), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "memory-jdbc", err)
	}
	return nil
}

func (j *JDBC) GetAll(ctx context.Context, tenant Tenant) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT role, content, metadata, created_at FROM memory_entries WHERE user_id = ? AND conversation_id = ? ORDER BY id ASC`,
		tenant.UserID, tenant.ConversationID,
	)
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "memory-jdbc", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var role, content, metaRaw, createdAt string
		if err := rows.Scan(&role, &content, &metaRaw, &createdAt); err != nil {
			return nil, errs.Wrap(errs.ProtocolError, "memory-jdbc", err)
		}
		var meta map[string]any
		json.Unmarshal([]byte(metaRaw), &meta)
		ts, _ := time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, Entry{
			Message:        chat.Message{Role: chat.Role(role), Text: content},
			UserID:         tenant.UserID,
			ConversationID: tenant.ConversationID,
			Metadata:       meta,
			Timestamp:      ts.Unix(),
		})
	}
	return entries, rows.Err()
}

func (j *JDBC) Clear(ctx context.Context, tenant Tenant) error {
	_, err := j.db.ExecContext(ctx,
		`DELETE FROM memory_entries WHERE user_id = ? AND conversation_id = ?`,
		tenant.UserID, tenant.ConversationID,
	)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "memory-jdbc", err)
	}
	return nil
}

// Metadata is kept in-process per JDBC instance; the relational schema
// spec §4.5 names carries only message entries, not arbitrary memory
// metadata.
func (j *JDBC) GetMetadata(ctx context.Context, tenant Tenant, key string) (any, bool) {
	return j.meta.getMetadata(tenant, key)
}

func (j *JDBC) SetMetadata(ctx context.Context, tenant Tenant, key string, value any) {
	j.meta.setMetadata(tenant, key, value)
}

func (j *JDBC) Export(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return j.GetAll(ctx, tenant)
}

func (j *JDBC) Import(ctx context.Context, tenant Tenant, entries []Entry) error {
	if err := j.Clear(ctx, tenant); err != nil {
		return err
	}
	for _, e := range entries {
		if err := j.Add(ctx, tenant, e.Message); err != nil {
			return err
		}
	}
	return nil
}

// Retrieve returns the full persisted history for tenant.
func (j *JDBC) Retrieve(ctx context.Context, tenant Tenant, query string) ([]chat.Message, error) {
	entries, err := j.GetAll(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out, nil
}
