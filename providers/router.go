package providers

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/events"
)

// RouteStrategy selects which member a Router tries first, generalizing the
// teacher's multiprovider.go SelectionStrategy enum.
type RouteStrategy int

const (
	StrategyPriority RouteStrategy = iota
	StrategyRoundRobin
	StrategyRandom
)

// circuitState tracks a member's health the way the teacher's
// multiprovider.go CircuitBreaker does: trip open after a run of failures,
// half-open after a cooldown.
type circuitState struct {
	mu        sync.Mutex
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
}

func (c *circuitState) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return false
	}
	if time.Since(c.openedAt) > c.cooldown {
		// half-open: allow a trial request
		return false
	}
	return true
}

func (c *circuitState) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
}

func (c *circuitState) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openedAt = time.Now()
	}
}

// Member is one entry in a Router's provider list.
type Member struct {
	Name    string
	Service Service
	Weight  float64
}

// Router fans a single logical request out across multiple Service
// instances with fallback, generalizing the teacher's multiprovider.go
// MultiProvider.executeWithFallback into the provider.Service contract
// (spec §4.1's "multi-provider router" domain-stack component).
type Router struct {
	mu       sync.Mutex
	members  []Member
	circuits map[string]*circuitState
	strategy RouteStrategy
	rrIndex  int
	bus      *events.Bus
}

// RouterOption configures a Router at construction.
type RouterOption func(*Router)

// WithStrategy sets the member-selection strategy.
func WithStrategy(s RouteStrategy) RouterOption {
	return func(r *Router) { r.strategy = s }
}

// NewRouter builds a Router over members, each tracked with its own circuit
// breaker (3 consecutive failures trips it, 30s cooldown before retry).
func NewRouter(members []Member, opts ...RouterOption) *Router {
	r := &Router{
		members:  members,
		circuits: make(map[string]*circuitState, len(members)),
		bus:      events.Default,
	}
	for _, m := range members {
		r.circuits[m.Name] = &circuitState{threshold: 3, cooldown: 30 * time.Second}
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// order returns member indices in try-order for one call, per the router's
// strategy, skipping nothing yet (open circuits are skipped by the
// caller loop).
func (r *Router) order() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := make([]int, len(r.members))
	for i := range idx {
		idx[i] = i
	}
	switch r.strategy {
	case StrategyRoundRobin:
		start := r.rrIndex
		r.rrIndex = (r.rrIndex + 1) % max(1, len(r.members))
		rotated := make([]int, 0, len(idx))
		for i := 0; i < len(idx); i++ {
			rotated = append(rotated, (start+i)%len(idx))
		}
		return rotated
	case StrategyRandom:
		rand.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		return idx
	default:
		return idx
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Invoke tries each member in order, falling through on error until one
// succeeds or all are exhausted.
func (r *Router) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	var lastErr error
	for _, i := range r.order() {
		m := r.members[i]
		cb := r.circuits[m.Name]
		if cb.isOpen() {
			continue
		}
		resp, err := m.Service.Invoke(ctx, req)
		if err != nil {
			cb.recordFailure()
			lastErr = err
			r.bus.Emit(events.OnAIProviderFallback, events.Payload{"provider": m.Name, "error": err.Error()})
			continue
		}
		cb.recordSuccess()
		return resp, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no healthy provider available")
	}
	return nil, errs.Wrap(errs.ProviderError, "router", lastErr)
}

// InvokeStream streams from the first healthy member; streaming responses
// are not retried mid-stream once a chunk has been delivered (spec §4.1:
// partial output cannot be silently replayed to a different provider).
func (r *Router) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	var lastErr error
	for _, i := range r.order() {
		m := r.members[i]
		cb := r.circuits[m.Name]
		if cb.isOpen() {
			continue
		}
		delivered := false
		err := m.Service.InvokeStream(ctx, req, func(c chat.StreamChunk) {
			if c.Error == nil {
				delivered = true
			}
			onChunk(c)
		})
		if err != nil {
			cb.recordFailure()
			lastErr = err
			if delivered {
				return errs.Wrap(errs.ProviderError, "router", err)
			}
			r.bus.Emit(events.OnAIProviderFallback, events.Payload{"provider": m.Name, "error": err.Error()})
			continue
		}
		cb.recordSuccess()
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no healthy provider available")
	}
	return errs.Wrap(errs.ProviderError, "router", lastErr)
}
