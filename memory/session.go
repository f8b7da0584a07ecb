package memory

import (
	"context"
	"sync"

	"github.com/airuntime/core/chat"
)

// Session behaves like Windowed, keeping one Windowed memory per
// "userId/conversationId" key in a process-level map. It takes no
// separate web session key; the key is always derived from the Tenant.
// Generalizes the teacher's
// process-level session handling implied by builder_memory.go's
// short-memory-per-agent-instance default.
type Session struct {
	mu       sync.Mutex
	sessions map[string]*Windowed
	size     int
}

// NewSession creates a process-level session store where each session
// key owns its own Windowed memory of the given size.
func NewSession(size int) *Session {
	return &Session{sessions: make(map[string]*Windowed), size: size}
}

func (s *Session) windowFor(key string) *Windowed {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.sessions[key]
	if !ok {
		w = NewWindowed(s.size)
		s.sessions[key] = w
	}
	return w
}

func sessionKey(tenant Tenant) string {
	return tenant.UserID + "/" + tenant.ConversationID
}

func (s *Session) Add(ctx context.Context, tenant Tenant, msg chat.Message) error {
	return s.windowFor(sessionKey(tenant)).Add(ctx, tenant, msg)
}

func (s *Session) GetAll(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return s.windowFor(sessionKey(tenant)).GetAll(ctx, tenant)
}

func (s *Session) Clear(ctx context.Context, tenant Tenant) error {
	return s.windowFor(sessionKey(tenant)).Clear(ctx, tenant)
}

func (s *Session) GetMetadata(ctx context.Context, tenant Tenant, key string) (any, bool) {
	return s.windowFor(sessionKey(tenant)).GetMetadata(ctx, tenant, key)
}

func (s *Session) SetMetadata(ctx context.Context, tenant Tenant, key string, value any) {
	s.windowFor(sessionKey(tenant)).SetMetadata(ctx, tenant, key, value)
}

func (s *Session) Export(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return s.windowFor(sessionKey(tenant)).Export(ctx, tenant)
}

func (s *Session) Import(ctx context.Context, tenant Tenant, entries []Entry) error {
	return s.windowFor(sessionKey(tenant)).Import(ctx, tenant, entries)
}

func (s *Session) Retrieve(ctx context.Context, tenant Tenant, query string) ([]chat.Message, error) {
	return s.windowFor(sessionKey(tenant)).Retrieve(ctx, tenant, query)
}
