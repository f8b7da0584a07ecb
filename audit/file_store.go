package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/airuntime/core/errs"
)

// FileStore persists spans as append-only NDJSON, one line per span,
// generalized directly from memory.File's atomic-append pattern (itself
// grounded on the teacher's memory_backend.go FileBackend) applied to
// audit spans instead of conversation entries.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore appending to path, creating it if
// necessary.
func NewFileStore(path string) (*FileStore, error) {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.AuditError, "audit-file", err)
	}
	fh.Close()
	return &FileStore{path: path}, nil
}

func (f *FileStore) Write(ctx context.Context, span *Span) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.AuditError, "audit-file", err)
	}
	defer fh.Close()

	raw, err := json.Marshal(span)
	if err != nil {
		return errs.Wrap(errs.AuditError, "audit-file", err)
	}
	if _, err := fh.Write(append(raw, '\n')); err != nil {
		return errs.Wrap(errs.AuditError, "audit-file", err)
	}
	return nil
}

func (f *FileStore) Query(ctx context.Context, q Query) ([]*Span, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.AuditError, "audit-file", err)
	}
	defer fh.Close()

	var out []*Span
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var s Span
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			continue
		}
		if q.matches(&s) {
			out = append(out, &s)
		}
	}
	return out, scanner.Err()
}
