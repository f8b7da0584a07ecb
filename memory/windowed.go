package memory

import (
	"context"

	"github.com/airuntime/core/chat"
)

// Windowed retains the last N messages per tenant, FIFO-evicting the
// oldest non-system entry while preserving the system message across
// trims (spec §4.5 table). Grounded on the teacher's short-memory ring
// buffer described in builder_memory.go, generalized onto tenant scoping.
type Windowed struct {
	*store
	size int
}

// NewWindowed creates a Windowed memory retaining at most size non-system
// messages per tenant, plus the most recent system message.
func NewWindowed(size int) *Windowed {
	if size <= 0 {
		size = 20
	}
	return &Windowed{store: newStore(), size: size}
}

func (w *Windowed) Add(ctx context.Context, tenant Tenant, msg chat.Message) error {
	w.store.add(Entry{Message: msg, UserID: tenant.UserID, ConversationID: tenant.ConversationID})
	w.trim(tenant)
	return nil
}

// trim evicts the oldest non-system entries for tenant until at most
// w.size non-system entries remain, keeping the most recent system message
// regardless of age in addition to them.
func (w *Windowed) trim(tenant Tenant) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var sys *Entry
	var rest []Entry
	for i := range w.entries {
		e := w.entries[i]
		if !tenant.matches(e) {
			continue
		}
		if e.Message.Role == chat.RoleSystem {
			sys = &e
			continue
		}
		rest = append(rest, e)
	}
	if len(rest) <= w.size {
		return
	}
	overflow := len(rest) - w.size
	keep := rest[overflow:]

	kept := w.entries[:0:0]
	for _, e := range w.entries {
		if !tenant.matches(e) {
			kept = append(kept, e)
		}
	}
	if sys != nil {
		kept = append(kept, *sys)
	}
	kept = append(kept, keep...)
	w.entries = kept
}

func (w *Windowed) GetAll(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return w.store.all(tenant), nil
}

func (w *Windowed) Clear(ctx context.Context, tenant Tenant) error {
	w.store.clear(tenant)
	return nil
}

func (w *Windowed) GetMetadata(ctx context.Context, tenant Tenant, key string) (any, bool) {
	return w.store.getMetadata(tenant, key)
}

func (w *Windowed) SetMetadata(ctx context.Context, tenant Tenant, key string, value any) {
	w.store.setMetadata(tenant, key, value)
}

func (w *Windowed) Export(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return w.store.all(tenant), nil
}

func (w *Windowed) Import(ctx context.Context, tenant Tenant, entries []Entry) error {
	w.store.replaceAll(tenant, entries)
	return nil
}

// Retrieve returns the N most-recent messages for tenant, per spec §4.4's
// Prepare-state rule for windowed memories ("the N most-recent messages
// in the tenant's conversation are prepended").
func (w *Windowed) Retrieve(ctx context.Context, tenant Tenant, query string) ([]chat.Message, error) {
	entries := w.store.all(tenant)
	if len(entries) > w.size {
		entries = entries[len(entries)-w.size:]
	}
	out := make([]chat.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out, nil
}
