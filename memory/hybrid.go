package memory

import (
	"context"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/memory/vector"
)

// Hybrid composes a recency-based Memory with a vector.Store: Retrieve
// returns the recentLimit most-recent messages, in temporal order,
// followed by semanticLimit vector hits in relevance order. A hit whose
// text matches a recent message is dropped; since Add derives a stored
// document's id from the tenant and the message text, this removes the
// same hits an id comparison would. The teacher has no precedent for this composite; it is
// built from the Windowed/vector.Store primitives already grounded
// elsewhere in this package.
type Hybrid struct {
	recent        Memory
	store         vector.Store
	collection    string
	recentLimit   int
	semanticLimit int
}

// NewHybrid composes recent (typically a *Windowed) with a vector.Store
// collection, bounding each side of Retrieve's result independently.
func NewHybrid(recent Memory, store vector.Store, collection string, recentLimit, semanticLimit int) *Hybrid {
	if recentLimit <= 0 {
		recentLimit = 10
	}
	if semanticLimit <= 0 {
		semanticLimit = 5
	}
	return &Hybrid{recent: recent, store: store, collection: collection, recentLimit: recentLimit, semanticLimit: semanticLimit}
}

func (h *Hybrid) Add(ctx context.Context, tenant Tenant, msg chat.Message) error {
	if err := h.recent.Add(ctx, tenant, msg); err != nil {
		return err
	}
	return h.store.Store(ctx, h.collection, vector.Document{
		ID:       tenantDocID(tenant, msg),
		Text:     msg.Content(),
		Metadata: map[string]any{"user_id": tenant.UserID, "conversation_id": tenant.ConversationID},
	})
}

func tenantDocID(tenant Tenant, msg chat.Message) string {
	return tenant.UserID + "/" + tenant.ConversationID + "/" + msg.Content()
}

func (h *Hybrid) GetAll(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return h.recent.GetAll(ctx, tenant)
}

func (h *Hybrid) Clear(ctx context.Context, tenant Tenant) error {
	if err := h.recent.Clear(ctx, tenant); err != nil {
		return err
	}
	return h.store.DeleteByFilter(ctx, h.collection, vector.Filter{
		"user_id": tenant.UserID, "conversation_id": tenant.ConversationID,
	})
}

func (h *Hybrid) GetMetadata(ctx context.Context, tenant Tenant, key string) (any, bool) {
	return h.recent.GetMetadata(ctx, tenant, key)
}

func (h *Hybrid) SetMetadata(ctx context.Context, tenant Tenant, key string, value any) {
	h.recent.SetMetadata(ctx, tenant, key, value)
}

func (h *Hybrid) Export(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return h.recent.Export(ctx, tenant)
}

func (h *Hybrid) Import(ctx context.Context, tenant Tenant, entries []Entry) error {
	return h.recent.Import(ctx, tenant, entries)
}

// Retrieve returns recentLimit recent messages followed by semanticLimit
// vector search hits, with any hit whose text duplicates a recent message
// dropped.
func (h *Hybrid) Retrieve(ctx context.Context, tenant Tenant, query string) ([]chat.Message, error) {
	recentMsgs, err := recentRetrieve(ctx, h.recent, tenant, query)
	if err != nil {
		return nil, err
	}
	if len(recentMsgs) > h.recentLimit {
		recentMsgs = recentMsgs[len(recentMsgs)-h.recentLimit:]
	}

	seen := make(map[string]bool, len(recentMsgs))
	for _, m := range recentMsgs {
		seen[m.Content()] = true
	}

	filter := vector.Filter{"user_id": tenant.UserID, "conversation_id": tenant.ConversationID}
	hits, err := h.store.Search(ctx, h.collection, query, h.semanticLimit, filter, 0)
	if err != nil {
		return nil, err
	}

	out := append([]chat.Message(nil), recentMsgs...)
	for _, hit := range hits {
		if seen[hit.Document.Text] {
			continue
		}
		seen[hit.Document.Text] = true
		out = append(out, chat.Message{Role: chat.RoleAssistant, Text: hit.Document.Text})
	}
	return out, nil
}

// recentRetrieve calls Retrieve on the underlying recency memory if it
// implements Retriever (e.g. *Windowed), otherwise falls back to GetAll.
func recentRetrieve(ctx context.Context, m Memory, tenant Tenant, query string) ([]chat.Message, error) {
	if r, ok := m.(Retriever); ok {
		return r.Retrieve(ctx, tenant, query)
	}
	entries, err := m.GetAll(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out, nil
}
