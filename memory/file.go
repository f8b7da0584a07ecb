package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
)

// File persists entries as append-only NDJSON, compacted on demand by
// Compact, one file per tenant (spec §4.5 table: "JSON/NDJSON file, append-only
// with compaction"). Grounded directly on the teacher's memory_backend.go
// FileBackend: atomic writes via temp-file-then-rename, directory
// auto-creation, JSON-per-memory-ID file layout — generalized from a
// single JSON document per save into an append-only NDJSON log with a
// Compact method performing the same atomic-rename rewrite FileBackend's
// Save does.
type File struct {
	mu       sync.Mutex
	basePath string
	meta     *store
}

// NewFile creates a File memory rooted at basePath, creating the
// directory if needed (mirrors FileBackend's NewFileBackend).
func NewFile(basePath string) (*File, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errs.Wrap(errs.ConfigMissing, "memory-file", err)
		}
		basePath = filepath.Join(home, ".airuntime", "memories")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	return &File{basePath: basePath, meta: newStore()}, nil
}

func (f *File) path(tenant Tenant) string {
	id := tenant.UserID + "_" + tenant.ConversationID
	if id == "_" {
		id = "default"
	}
	return filepath.Join(f.basePath, id+".ndjson")
}

func (f *File) Add(ctx context.Context, tenant Tenant, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path(tenant), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	defer fh.Close()

	entry := Entry{Message: msg, UserID: tenant.UserID, ConversationID: tenant.ConversationID}
	raw, err := json.Marshal(entry)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "memory-file", err)
	}
	if _, err := fh.Write(append(raw, '\n')); err != nil {
		return errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	return nil
}

func (f *File) readAll(tenant Tenant) ([]Entry, error) {
	fh, err := os.Open(f.path(tenant))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	defer fh.Close()

	var entries []Entry
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func (f *File) GetAll(ctx context.Context, tenant Tenant) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readAll(tenant)
}

func (f *File) Clear(ctx context.Context, tenant Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(tenant)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	return nil
}

// Compact rewrites the tenant's NDJSON log atomically (temp file + rename,
// exactly FileBackend.Save's strategy), keeping every entry that parses
// and dropping lines that do not.
func (f *File) Compact(ctx context.Context, tenant Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.readAll(tenant)
	if err != nil {
		return err
	}
	path := f.path(tenant)
	tmp := path + ".tmp"

	fh, err := os.Create(tmp)
	if err != nil {
		return errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	w := bufio.NewWriter(fh)
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			continue
		}
		w.Write(raw)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	fh.Close()
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	return nil
}

// Metadata is stored in-process only; File's durable state is the message
// log, matching FileBackend's scope (conversation history only).
func (f *File) GetMetadata(ctx context.Context, tenant Tenant, key string) (any, bool) {
	return f.meta.getMetadata(tenant, key)
}

func (f *File) SetMetadata(ctx context.Context, tenant Tenant, key string, value any) {
	f.meta.setMetadata(tenant, key, value)
}

func (f *File) Export(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return f.GetAll(ctx, tenant)
}

func (f *File) Import(ctx context.Context, tenant Tenant, entries []Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := f.path(tenant)
	fh, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.ConfigMissing, "memory-file", err)
	}
	defer fh.Close()
	w := bufio.NewWriter(fh)
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			continue
		}
		w.Write(raw)
		w.WriteByte('\n')
	}
	return w.Flush()
}

// Retrieve returns the full history, unbounded (callers typically pair
// File with an explicit windowing step if bounding is desired).
func (f *File) Retrieve(ctx context.Context, tenant Tenant, query string) ([]chat.Message, error) {
	entries, err := f.GetAll(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out, nil
}
