// Package memory implements spec §4.5's Memory subsystem: an ordered,
// tenant-scoped message store with Windowed/Summary/Session/Cache/File/
// JDBC variants sharing one Memory interface, plus the memory/vector
// subpackage for embedding-indexed backends and Hybrid (hybrid.go) for the
// recent+semantic composite. Grounded on the teacher's memory_backend.go
// (MemoryBackend interface, FileBackend atomic-write pattern) and
// builder_memory.go (short/long memory composition), generalized from a
// single-agent-scoped store onto the spec's explicit (userId,
// conversationId) multi-tenant isolation requirement.
package memory

import (
	"context"
	"sync"

	"github.com/airuntime/core/chat"
)

// Entry is one stored conversation entry (spec §3's MemoryEntry).
type Entry struct {
	Message        chat.Message
	UserID         string
	ConversationID string
	Metadata       map[string]any
	Timestamp      int64
}

// Tenant scopes an Entry for multi-tenant isolation (spec §4.5). The zero
// value matches every entry (non-multi-tenant memories).
type Tenant struct {
	UserID         string
	ConversationID string
}

func (t Tenant) matches(e Entry) bool {
	if t.UserID != "" && t.UserID != e.UserID {
		return false
	}
	if t.ConversationID != "" && t.ConversationID != e.ConversationID {
		return false
	}
	return true
}

// Memory is the interface spec §4.5 requires every variant to implement.
type Memory interface {
	// Add appends an entry. Atomic per spec invariant (1).
	Add(ctx context.Context, tenant Tenant, msg chat.Message) error

	// GetAll returns every entry visible to tenant, in insertion order.
	GetAll(ctx context.Context, tenant Tenant) ([]Entry, error)

	// Clear removes every entry visible to tenant.
	Clear(ctx context.Context, tenant Tenant) error

	// Metadata gets or sets an arbitrary metadata value scoped to tenant.
	GetMetadata(ctx context.Context, tenant Tenant, key string) (any, bool)
	SetMetadata(ctx context.Context, tenant Tenant, key string, value any)

	// Export/Import support round-trip persistence (spec invariant 3).
	Export(ctx context.Context, tenant Tenant) ([]Entry, error)
	Import(ctx context.Context, tenant Tenant, entries []Entry) error
}

// Retriever is implemented by memories the agent loop can query for
// context injection during Prepare (spec §4.4): windowed memories return
// their N most-recent messages; vector/hybrid memories perform a
// semantic search over query.
type Retriever interface {
	Retrieve(ctx context.Context, tenant Tenant, query string) ([]chat.Message, error)
}

// store is the shared, mutex-protected entry list + metadata map every
// in-process variant (Windowed, Summary, Session) embeds, the
// generalized form of the teacher's MemoryBackend-backed slice.
type store struct {
	mu       sync.RWMutex
	entries  []Entry
	metadata map[string]map[string]any // keyed by tenant key
}

func newStore() *store {
	return &store{metadata: make(map[string]map[string]any)}
}

func tenantKey(t Tenant) string {
	return t.UserID + "\x00" + t.ConversationID
}

func (s *store) add(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *store) all(t Tenant) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if t.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *store) clear(t Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if !t.matches(e) {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

func (s *store) getMetadata(t Tenant, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metadata[tenantKey(t)]
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func (s *store) setMetadata(t Tenant, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantKey(t)
	if s.metadata[k] == nil {
		s.metadata[k] = make(map[string]any)
	}
	s.metadata[k][key] = value
}

// replaceAll overwrites the full entry list for tenant (used by Import).
func (s *store) replaceAll(t Tenant, entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !t.matches(e) {
			kept = append(kept, e)
		}
	}
	s.entries = append(kept, entries...)
}
