package memory

import (
	"context"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/providers"
)

// Summary wraps an in-process entry list like Windowed, but instead of
// FIFO-evicting on overflow it invokes a summarizer model over the oldest
// half of the conversation and replaces them with one synthetic assistant
// summary message (spec §4.5 table). No teacher file implements
// conversation summarization; grounded on the teacher's memory_backend.go
// store shape plus the agent loop's own model-invocation pattern reused
// here as the summarizer call.
type Summary struct {
	*store
	threshold  int
	summarizer providers.Service
	model      string
}

// NewSummary creates a Summary memory that triggers summarization once a
// tenant's entry count exceeds threshold, using summarizer to condense.
func NewSummary(threshold int, summarizer providers.Service, model string) *Summary {
	if threshold <= 0 {
		threshold = 40
	}
	return &Summary{store: newStore(), threshold: threshold, summarizer: summarizer, model: model}
}

func (s *Summary) Add(ctx context.Context, tenant Tenant, msg chat.Message) error {
	s.store.add(Entry{Message: msg, UserID: tenant.UserID, ConversationID: tenant.ConversationID})
	return s.maybeSummarize(ctx, tenant)
}

func (s *Summary) maybeSummarize(ctx context.Context, tenant Tenant) error {
	entries := s.store.all(tenant)
	if len(entries) <= s.threshold {
		return nil
	}

	half := len(entries) / 2
	oldest := entries[:half]
	rest := entries[half:]

	var cm chat.ChatMessage
	cm.System("Summarize the following conversation segment concisely, preserving facts and decisions.")
	for _, e := range oldest {
		cm.User(e.Message.Content())
	}
	req := &chat.Request{Model: s.model, Messages: cm.Messages()}

	resp, err := s.summarizer.Invoke(ctx, req)
	if err != nil {
		return err
	}

	summaryEntry := Entry{
		Message:        chat.Message{Role: chat.RoleAssistant, Text: resp.FirstContent()},
		UserID:         tenant.UserID,
		ConversationID: tenant.ConversationID,
	}

	s.mu.Lock()
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if !tenant.matches(e) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, summaryEntry)
	kept = append(kept, rest...)
	s.entries = kept
	s.mu.Unlock()
	return nil
}

func (s *Summary) GetAll(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return s.store.all(tenant), nil
}

func (s *Summary) Clear(ctx context.Context, tenant Tenant) error {
	s.store.clear(tenant)
	return nil
}

func (s *Summary) GetMetadata(ctx context.Context, tenant Tenant, key string) (any, bool) {
	return s.store.getMetadata(tenant, key)
}

func (s *Summary) SetMetadata(ctx context.Context, tenant Tenant, key string, value any) {
	s.store.setMetadata(tenant, key, value)
}

func (s *Summary) Export(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return s.store.all(tenant), nil
}

func (s *Summary) Import(ctx context.Context, tenant Tenant, entries []Entry) error {
	s.store.replaceAll(tenant, entries)
	return nil
}

// Retrieve returns the full current (possibly summarized) history.
func (s *Summary) Retrieve(ctx context.Context, tenant Tenant, query string) ([]chat.Message, error) {
	entries := s.store.all(tenant)
	out := make([]chat.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out, nil
}
